package llmservice

import (
	"context"
	"strings"
)

const mockPreviewRunes = 180

// MockGenerator echoes the start of the prompt. It lets the pipeline run
// without any model server.
type MockGenerator struct{}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	preview := []rune(strings.TrimSpace(prompt))
	if len(preview) > mockPreviewRunes {
		return "(MOCK ANSWER) " + string(preview[:mockPreviewRunes]) + "...", nil
	}
	return "(MOCK ANSWER) " + string(preview), nil
}
