package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"askdocs/internal/config"
	"askdocs/internal/models"
)

func norm(v []float32) float64 {
	s := 0.0
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestHashEmbedderIsDeterministicAndNormalized(t *testing.T) {
	e, err := NewHashEmbedder(64)
	if err != nil {
		t.Fatalf("NewHashEmbedder: %v", err)
	}

	a, err := e.Embed(context.Background(), "Dolphins swim in warm ocean waters.")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, _ := e.Embed(context.Background(), "dolphins SWIM warm ocean waters")
	if len(a) != 64 {
		t.Fatalf("expected dimension 64, got %d", len(a))
	}
	if math.Abs(norm(a)-1) > 1e-6 {
		t.Fatalf("expected unit vector, got norm %f", norm(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("stopwords and case should not change the vector (index %d)", i)
		}
	}
}

func TestHashEmbedderZeroVectorForStopwordsOnly(t *testing.T) {
	e, _ := NewHashEmbedder(16)
	v, err := e.Embed(context.Background(), "the and of ...")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if norm(v) != 0 {
		t.Fatalf("expected zero vector, got %v", v)
	}
}

func TestHashEmbedderHonoursCancellation(t *testing.T) {
	e, _ := NewHashEmbedder(16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Embed(ctx, "text"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(&config.LLMConfig{Provider: "word2vec"})
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := New(&config.LLMConfig{Provider: "hash", Dimension: 0}); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for zero dimension, got %v", err)
	}
}
