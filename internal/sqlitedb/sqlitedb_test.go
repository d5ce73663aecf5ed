package sqlitedb

import (
	"context"
	"path/filepath"
	"testing"

	"askdocs/internal/models"
)

func TestEncodeDecodeEmbedding(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	b := EncodeEmbedding(in)
	if len(b) != len(in)*4 {
		t.Fatalf("expected %d bytes, got %d", len(in)*4, len(b))
	}
	out, err := DecodeEmbedding(b)
	if err != nil {
		t.Fatalf("DecodeEmbedding: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("value %d changed: %v != %v", i, in[i], out[i])
		}
	}
	if _, err := DecodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}

func entries() []models.IndexedEntry {
	return []models.IndexedEntry{
		{ID: 1, Chunk: models.Chunk{Text: "first", SourceID: "doc", SequenceIndex: 0}, Embedding: []float32{1, 0}},
		{ID: 2, Chunk: models.Chunk{Text: "second", SourceID: "doc", SequenceIndex: 1}, Embedding: []float32{0, 1}},
		{ID: 3, Chunk: models.Chunk{Text: "third", SourceID: "doc", SequenceIndex: 2}, Embedding: []float32{0, 0}},
	}
}

func TestStoreInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Append(ctx, entries()); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Remove(ctx, 3); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.LastID != 3 {
		t.Fatalf("expected last id 3, got %d", snap.LastID)
	}
	if len(snap.Entries) != 2 {
		t.Fatalf("expected 2 live entries, got %d", len(snap.Entries))
	}
	if snap.Entries[1].Chunk.Text != "second" || snap.Entries[1].Embedding[1] != 1 {
		t.Fatalf("unexpected entry %+v", snap.Entries[1])
	}
}

func TestStoreDuplicateIDFails(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if err := s.Append(ctx, entries()[:1]); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(ctx, entries()); err == nil {
		t.Fatal("expected primary key violation")
	}
	snap, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Entries) != 1 {
		t.Fatalf("failed batch must be rolled back, got %d entries", len(snap.Entries))
	}
}

func TestStoreReopensFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.sqlite")
	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Append(ctx, entries()); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	snap, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(snap.Entries) != 3 || snap.LastID != 3 {
		t.Fatalf("unexpected snapshot after reopen: %d entries, last id %d", len(snap.Entries), snap.LastID)
	}
}
