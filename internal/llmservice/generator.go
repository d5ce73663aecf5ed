package llmservice

import (
	"context"
	"regexp"
	"strings"

	"askdocs/internal/config"
	"askdocs/internal/models"
)

var thinkTag = regexp.MustCompile(models.ThinkTag)

// Generator produces a completion for a single prompt. Implementations must
// be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New builds the generator named by cfg.Provider.
func New(cfg *config.LLMConfig) (Generator, error) {
	switch cfg.Provider {
	case "mock":
		return NewMockGenerator(), nil
	case "ollama":
		return NewOllamaGenerator(cfg)
	case "openrouter":
		return NewOpenRouterGenerator(cfg)
	case "openai":
		return NewOpenAIGenerator(cfg)
	default:
		return nil, models.Wrap(models.ErrConfiguration, nil, "unknown generator provider %q", cfg.Provider)
	}
}

// cleanResponse drops reasoning blocks some models emit before the answer.
func cleanResponse(s string) string {
	return strings.TrimSpace(thinkTag.ReplaceAllString(s, ""))
}
