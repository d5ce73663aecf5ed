package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"askdocs/internal/llmservice"
	"askdocs/internal/models"
)

// Orchestrator builds the grounded prompt, calls the generator once and
// pairs the answer with its numbered evidence.
type Orchestrator struct {
	generator         llmservice.Generator
	generateTimeout   time.Duration
	noEvidenceMessage string
}

type OrchestratorOption func(*Orchestrator)

// WithGenerateTimeout bounds the generation call. Zero disables the bound.
func WithGenerateTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.generateTimeout = d }
}

// WithInsufficientEvidenceMessage overrides the answer given when nothing was retrieved.
func WithInsufficientEvidenceMessage(msg string) OrchestratorOption {
	return func(o *Orchestrator) { o.noEvidenceMessage = msg }
}

func NewOrchestrator(generator llmservice.Generator, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{generator: generator, noEvidenceMessage: models.InsufficientEvidenceMessage}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Answer produces the answer for question from hits, which must be ordered
// best first. Without hits the generator is not called and the fixed
// insufficient evidence message is returned.
func (o *Orchestrator) Answer(ctx context.Context, question string, hits []models.SearchHit) (models.Answer, error) {
	if len(hits) == 0 {
		return models.Answer{
			Text:     o.noEvidenceMessage,
			Evidence: []models.Evidence{},
			Outcome:  models.OutcomeNoEvidence,
		}, nil
	}
	if err := ctx.Err(); err != nil {
		return models.Answer{Outcome: models.OutcomeFailed}, err
	}

	evidence := BuildEvidence(hits)
	prompt := BuildPrompt(question, evidence)

	start := time.Now()
	text, err := o.generate(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty answer")
	}
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Generation failed")
		return models.Answer{Outcome: models.OutcomeFailed}, models.Wrap(models.ErrGeneration, err, "generate answer")
	}

	cited, unknown := ParseCitations(text, len(evidence))
	log.Debug().Int("evidence", len(evidence)).Ints("citations", cited).Dur("elapsed", time.Since(start)).Msg("Generated answer")
	return models.Answer{
		Text:             text,
		Evidence:         evidence,
		Outcome:          models.OutcomeGrounded,
		Citations:        cited,
		UnknownCitations: unknown,
	}, nil
}

// BuildEvidence ranks hits 1..n in the given order.
func BuildEvidence(hits []models.SearchHit) []models.Evidence {
	evidence := make([]models.Evidence, len(hits))
	for i, h := range hits {
		evidence[i] = models.Evidence{
			Rank:     i + 1,
			Snippet:  h.Text,
			EntryID:  h.EntryID,
			SourceID: h.SourceID,
			Score:    h.Score,
		}
	}
	return evidence
}

// BuildPrompt numbers the evidence as [rank] blocks and fills the grounded template.
func BuildPrompt(question string, evidence []models.Evidence) string {
	blocks := make([]string, len(evidence))
	for i, e := range evidence {
		blocks[i] = fmt.Sprintf("[%d] %s", e.Rank, e.Snippet)
	}
	return fmt.Sprintf(models.GroundedPromptTemplate,
		strings.Join(blocks, models.EvidenceSeparator),
		strings.TrimSpace(question),
		models.InsufficientEvidenceSignal,
	)
}

// generate calls the generator bounded by the timeout, even if the generator
// ignores its context.
func (o *Orchestrator) generate(ctx context.Context, prompt string) (string, error) {
	if o.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.generateTimeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := o.generator.Generate(ctx, prompt)
		done <- result{text, err}
	}()

	select {
	case r := <-done:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
