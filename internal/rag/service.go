package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"askdocs/internal/helper"
	"askdocs/internal/models"
	"askdocs/internal/parser"
	"askdocs/internal/vectorindex"
)

type Extractor interface {
	Extract(ctx context.Context, data []byte, format string) (string, error)
}

type Chunker interface {
	Chunk(sourceID, text string) []models.Chunk
}

// Indexer is the part of the vector index the service writes to.
type Indexer interface {
	Searcher
	Insert(ctx context.Context, chunks []models.Chunk) (vectorindex.InsertResult, error)
	Remove(ctx context.Context, id models.EntryID) error
	Len() int
	Dimension() int
}

// Service ties extraction, chunking, indexing and answering together.
type Service struct {
	extractor         Extractor
	chunker           Chunker
	index             Indexer
	retriever         *Retriever
	orchestrator      *Orchestrator
	ingestConcurrency int
}

type Stats struct {
	Entries   int `json:"entries"`
	Dimension int `json:"dimension"`
}

// IngestOutcome is the result of one document in a batch.
type IngestOutcome struct {
	Result models.IngestResult
	Err    error
}

func NewService(extractor Extractor, chunker Chunker, index Indexer, retriever *Retriever, orchestrator *Orchestrator, ingestConcurrency int) *Service {
	if ingestConcurrency < 1 {
		ingestConcurrency = 1
	}
	return &Service{
		extractor:         extractor,
		chunker:           chunker,
		index:             index,
		retriever:         retriever,
		orchestrator:      orchestrator,
		ingestConcurrency: ingestConcurrency,
	}
}

// Ingest extracts, chunks and indexes one document. Extraction failures
// reject the whole document; chunks that fail to embed are listed in the
// result while the rest are kept.
func (s *Service) Ingest(ctx context.Context, doc models.Document) (models.IngestResult, error) {
	start := time.Now()
	sourceID := doc.ID
	if sourceID == "" {
		id, err := helper.GenerateUUID()
		if err != nil {
			return models.IngestResult{}, fmt.Errorf("generate source id: %w", err)
		}
		sourceID = id + "_" + doc.Name
	}
	res := models.IngestResult{SourceID: sourceID, Name: doc.Name}

	format := doc.Format
	if format == "" {
		format = parser.DetectFormat(doc.Name, doc.Content)
	}
	text, err := s.extractor.Extract(ctx, doc.Content, format)
	if err != nil {
		log.Error().Err(err).Str("document", doc.Name).Str("format", format).Msg("Extraction failed")
		return res, fmt.Errorf("ingest %s: %w", doc.Name, err)
	}

	chunks := s.chunker.Chunk(sourceID, text)
	if len(chunks) == 0 {
		log.Warn().Str("document", doc.Name).Msg("No text extracted")
		return res, nil
	}

	inserted, err := s.index.Insert(ctx, chunks)
	res.AcceptedChunkCount = len(inserted.IDs)
	res.EntryIDs = inserted.IDs
	for _, f := range inserted.Failed {
		res.Failures = append(res.Failures, models.ChunkFailure{SequenceIndex: f.SequenceIndex, Error: f.Err.Error()})
	}
	res.FailedChunkCount = len(res.Failures)
	if err != nil {
		return res, fmt.Errorf("ingest %s: %w", doc.Name, err)
	}

	log.Info().
		Str("document", doc.Name).
		Str("source_id", sourceID).
		Int("chunks", len(chunks)).
		Int("accepted", res.AcceptedChunkCount).
		Int("failed", res.FailedChunkCount).
		Dur("elapsed", time.Since(start)).
		Msg("Ingested document")
	return res, nil
}

// IngestAll ingests docs concurrently. Outcomes are returned in input order
// and one document failing does not stop the others.
func (s *Service) IngestAll(ctx context.Context, docs []models.Document) []IngestOutcome {
	outcomes := make([]IngestOutcome, len(docs))
	var g errgroup.Group
	g.SetLimit(s.ingestConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			res, err := s.Ingest(ctx, doc)
			outcomes[i] = IngestOutcome{Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Ask retrieves evidence for question and answers from it.
func (s *Service) Ask(ctx context.Context, question string, topK int) (models.Answer, error) {
	hits, err := s.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return models.Answer{Outcome: models.OutcomeFailed}, err
	}
	return s.orchestrator.Answer(ctx, question, hits)
}

func (s *Service) Search(ctx context.Context, query string, topK int) ([]models.SearchHit, error) {
	return s.retriever.Retrieve(ctx, query, topK)
}

func (s *Service) Remove(ctx context.Context, id models.EntryID) error {
	return s.index.Remove(ctx, id)
}

func (s *Service) Stats() Stats {
	return Stats{Entries: s.index.Len(), Dimension: s.index.Dimension()}
}
