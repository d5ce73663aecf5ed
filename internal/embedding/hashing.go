package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"askdocs/internal/models"
)

var tokenPattern = regexp.MustCompile(`\p{L}+|\p{N}+`)

// HashEmbedder is an offline embedder that hashes lowercase tokens into a
// fixed number of buckets and L2-normalizes the term counts.
type HashEmbedder struct {
	dimension int
	stopwords map[string]struct{}
}

func NewHashEmbedder(dimension int) (*HashEmbedder, error) {
	if dimension < 1 {
		return nil, models.Wrap(models.ErrConfiguration, nil, "hash embedder dimension must be at least 1, got %d", dimension)
	}
	return &HashEmbedder{dimension: dimension, stopwords: defaultStopwords()}, nil
}

// Embed returns a zero vector for text without any indexable token.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	counts := make([]float64, e.dimension)
	for _, tok := range e.tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		counts[h.Sum32()%uint32(e.dimension)]++
	}

	norm := 0.0
	for _, v := range counts {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec, nil
	}
	for i, v := range counts {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

func (e *HashEmbedder) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "which", "who", "whom", "how", "why", "where", "when", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
