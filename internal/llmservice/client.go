package llmservice

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"askdocs/internal/config"
	"askdocs/internal/models"
)

const defaultOpenRouterBase = "https://openrouter.ai/api/v1"

// LangChainGenerator sends prompts through a langchaingo model.
type LangChainGenerator struct {
	llm      llms.Model
	provider string
}

func NewOllamaGenerator(llmConfig *config.LLMConfig) (*LangChainGenerator, error) {
	opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, models.Wrap(models.ErrConfiguration, err, "initialize ollama generator")
	}
	return &LangChainGenerator{llm: llm, provider: "ollama"}, nil
}

// NewOpenRouterGenerator talks to OpenRouter, or any OpenAI compatible base URL.
func NewOpenRouterGenerator(llmConfig *config.LLMConfig) (*LangChainGenerator, error) {
	baseURL := llmConfig.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBase
	}
	llm, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, models.Wrap(models.ErrConfiguration, err, "initialize openrouter generator")
	}
	return &LangChainGenerator{llm: llm, provider: "openrouter"}, nil
}

func (g *LangChainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	msgContent := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: prompt}},
		},
	}

	log.Debug().Str("provider", g.provider).Int("prompt_len", len(prompt)).Msg("Generating content")
	res, err := GenerateContent(ctx, g.llm, nil, msgContent)
	if err != nil {
		return "", err
	}
	return cleanResponse(res.Choices[0].Content), nil
}

// GenerateContent calls the model and makes sure at least one choice came back.
func GenerateContent(ctx context.Context, llm llms.Model, tools []llms.Tool, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	var (
		res *llms.ContentResponse
		err error
	)
	if len(tools) > 0 {
		res, err = llm.GenerateContent(ctx, messages, llms.WithTools(tools))
	} else {
		res, err = llm.GenerateContent(ctx, messages)
	}
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Choices) == 0 {
		return nil, errors.New("model returned no choices")
	}
	return res, nil
}
