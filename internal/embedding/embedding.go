package embedding

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"askdocs/internal/config"
	"askdocs/internal/models"
)

// LangChainEmbedder adapts a langchaingo embedder to Embedder.
type LangChainEmbedder struct {
	impl *embeddings.EmbedderImpl
}

// NewOllamaEmbedder creates an embedder backed by an Ollama server
func NewOllamaEmbedder(llmConfig *config.LLMConfig) (*LangChainEmbedder, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating ollama embedder")

	opts := []ollama.Option{ollama.WithModel(llmConfig.Model)}
	if llmConfig.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(llmConfig.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, models.Wrap(models.ErrConfiguration, err, "initialize ollama embedder")
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, models.Wrap(models.ErrConfiguration, err, "create ollama embedder")
	}
	return &LangChainEmbedder{impl: embedder}, nil
}

// NewOpenAIEmbedder creates an embedder for any OpenAI compatible endpoint
// (OpenAI, OpenRouter, local gateways).
func NewOpenAIEmbedder(llmConfig *config.LLMConfig) (*LangChainEmbedder, error) {
	log.Debug().Interface("config", map[string]string{
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating openai embedder")

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
		openai.WithEmbeddingModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, models.Wrap(models.ErrConfiguration, err, "initialize openai embedder")
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, models.Wrap(models.ErrConfiguration, err, "create openai embedder")
	}
	return &LangChainEmbedder{impl: embedder}, nil
}

func (e *LangChainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, models.Wrap(models.ErrEmbedding, err, "embed query")
	}
	return vec, nil
}
