package vectorindex

import (
	"context"

	"askdocs/internal/models"
)

// Snapshot is the persisted state of an index.
type Snapshot struct {
	// Entries ordered by ascending id.
	Entries []models.IndexedEntry
	// LastID is the highest id ever appended, including removed entries.
	LastID models.EntryID
}

// Store persists index entries. Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Append(ctx context.Context, entries []models.IndexedEntry) error
	Remove(ctx context.Context, id models.EntryID) error
	Close() error
}
