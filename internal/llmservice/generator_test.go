package llmservice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"askdocs/internal/config"
	"askdocs/internal/models"
)

func TestMockGeneratorTruncatesPrompt(t *testing.T) {
	g := NewMockGenerator()

	short, err := g.Generate(context.Background(), "short prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if short != "(MOCK ANSWER) short prompt" {
		t.Fatalf("unexpected answer %q", short)
	}

	long, _ := g.Generate(context.Background(), strings.Repeat("é", 200))
	want := "(MOCK ANSWER) " + strings.Repeat("é", mockPreviewRunes) + "..."
	if long != want {
		t.Fatalf("unexpected long answer %q", long)
	}
}

func TestCleanResponseStripsThinkBlocks(t *testing.T) {
	got := cleanResponse("<think>\nreasoning here\n</think>\n  The answer [1].")
	if got != "The answer [1]." {
		t.Fatalf("unexpected cleaned response %q", got)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(&config.LLMConfig{Provider: "gpt-local"})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := New(&config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini"}); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration without key, got %v", err)
	}
}

type stubModel struct {
	response *llms.ContentResponse
	err      error
	calls    int
}

func (s *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.calls++
	return s.response, s.err
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestLangChainGeneratorUsesFirstChoice(t *testing.T) {
	model := &stubModel{response: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "Dolphins swim [1]."}}}}
	g := &LangChainGenerator{llm: model, provider: "stub"}

	got, err := g.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Dolphins swim [1]." || model.calls != 1 {
		t.Fatalf("unexpected result %q after %d calls", got, model.calls)
	}
}

func TestLangChainGeneratorNoChoices(t *testing.T) {
	g := &LangChainGenerator{llm: &stubModel{response: &llms.ContentResponse{}}, provider: "stub"}
	if _, err := g.Generate(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestOpenAIGeneratorSendsOneRequest(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"upstream failure","type":"server_error"}}`))
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(&config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", Key: "test-key", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("NewOpenAIGenerator: %v", err)
	}
	if _, err := g.Generate(context.Background(), "question"); err == nil {
		t.Fatal("expected error from failing server")
	}
	if n := requests.Load(); n != 1 {
		t.Fatalf("expected exactly one request, got %d", n)
	}
}
