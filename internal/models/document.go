package models

// EntryID identifies an indexed chunk. Ids increase in insertion order and are never reused.
type EntryID uint64

// Document is a source file submitted for ingestion.
type Document struct {
	ID      string
	Name    string
	Format  string
	Content []byte
}

// Chunk represents a contiguous span of extracted text
type Chunk struct {
	Text          string `json:"text"`
	SourceID      string `json:"source_id"`
	SequenceIndex int    `json:"sequence_index"`
}

// IndexedEntry is a chunk stored in the vector index together with its embedding.
type IndexedEntry struct {
	ID        EntryID   `json:"entry_id"`
	Chunk     Chunk     `json:"chunk"`
	Embedding []float32 `json:"embedding"`
}

// SearchHit is a read-only projection of an indexed entry scored against a query.
type SearchHit struct {
	EntryID       EntryID `json:"entry_id"`
	Score         float64 `json:"score"`
	Text          string  `json:"text"`
	SourceID      string  `json:"source_id"`
	SequenceIndex int     `json:"sequence_index"`
}

// Evidence is a hit ranked for citation inside one answer.
type Evidence struct {
	Rank     int     `json:"rank"`
	Snippet  string  `json:"snippet"`
	EntryID  EntryID `json:"entry_id,omitempty"`
	SourceID string  `json:"source_id,omitempty"`
	Score    float64 `json:"score,omitempty"`
}

type Outcome string

const (
	OutcomeNoEvidence Outcome = "no_evidence"
	OutcomeGrounded   Outcome = "grounded"
	OutcomeFailed     Outcome = "failed"
)

// Answer is the result of one ask call.
type Answer struct {
	Text             string     `json:"answer"`
	Evidence         []Evidence `json:"evidence"`
	Outcome          Outcome    `json:"outcome"`
	Citations        []int      `json:"citations,omitempty"`
	UnknownCitations []int      `json:"unknown_citations,omitempty"`
}

// ChunkFailure records a chunk that could not be indexed.
type ChunkFailure struct {
	SequenceIndex int    `json:"sequence_index"`
	Error         string `json:"error"`
}

// IngestResult summarises the ingestion of one document.
type IngestResult struct {
	SourceID           string         `json:"source_id"`
	Name               string         `json:"name"`
	AcceptedChunkCount int            `json:"accepted_chunk_count"`
	FailedChunkCount   int            `json:"failed_chunk_count"`
	EntryIDs           []EntryID      `json:"entry_ids,omitempty"`
	Failures           []ChunkFailure `json:"failures,omitempty"`
}
