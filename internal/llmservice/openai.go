package llmservice

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"askdocs/internal/config"
	"askdocs/internal/models"
)

const systemPrompt = "You are a careful assistant that answers strictly from the supplied evidence."

// OpenAIGenerator uses the official OpenAI client for chat completions.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAIGenerator(llmConfig *config.LLMConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(llmConfig.Key) == "" {
		return nil, models.Wrap(models.ErrConfiguration, nil, "generator.key is required for provider openai")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		// Exactly one request per Generate call.
		option.WithMaxRetries(0),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(llmConfig.BaseURL))
	}
	return &OpenAIGenerator{client: openai.NewClient(opts...), model: llmConfig.Model}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	log.Debug().Str("model", g.model).Int("prompt_len", len(prompt)).Msg("Requesting chat completion")
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Model: g.model,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return cleanResponse(resp.Choices[0].Message.Content), nil
}
