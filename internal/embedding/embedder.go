package embedding

import (
	"context"

	"askdocs/internal/config"
	"askdocs/internal/models"
)

// Embedder maps text to a fixed-dimension vector. Implementations must be
// safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// New builds the embedder named by cfg.Provider.
func New(cfg *config.LLMConfig) (Embedder, error) {
	switch cfg.Provider {
	case "hash":
		return NewHashEmbedder(cfg.Dimension)
	case "ollama":
		return NewOllamaEmbedder(cfg)
	case "openai":
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, models.Wrap(models.ErrConfiguration, nil, "unknown embedder provider %q", cfg.Provider)
	}
}
