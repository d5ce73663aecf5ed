package rag

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"askdocs/internal/models"
)

// Searcher is the read side of the vector index.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]models.SearchHit, error)
}

// Retriever turns a question into the hits used as evidence.
type Retriever struct {
	searcher Searcher
	minScore *float64
}

type RetrieverOption func(*Retriever)

// WithMinScore drops hits scoring below min.
func WithMinScore(min float64) RetrieverOption {
	return func(r *Retriever) { r.minScore = &min }
}

func NewRetriever(searcher Searcher, opts ...RetrieverOption) *Retriever {
	r := &Retriever{searcher: searcher}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to topK hits for question, best first. A topK below 1
// is treated as 1. No hits is a normal result.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]models.SearchHit, error) {
	if strings.TrimSpace(question) == "" {
		return nil, models.Wrap(models.ErrInvalidArgument, nil, "question is empty")
	}
	if topK < 1 {
		log.Debug().Int("top_k", topK).Msg("Clamping top_k to 1")
		topK = 1
	}

	hits, err := r.searcher.Search(ctx, question, topK)
	if err != nil {
		return nil, err
	}
	if r.minScore == nil {
		return hits, nil
	}

	kept := hits[:0:0]
	for _, h := range hits {
		if h.Score >= *r.minScore {
			kept = append(kept, h)
		}
	}
	return kept, nil
}
