package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"askdocs/internal/embedding"
	"askdocs/internal/models"
)

// FailedChunk is a chunk that Insert skipped because its embedding failed.
type FailedChunk struct {
	SequenceIndex int
	Err           error
}

// InsertResult lists the ids assigned to accepted chunks, in chunk order, and
// the chunks that were skipped.
type InsertResult struct {
	IDs    []models.EntryID
	Failed []FailedChunk
}

type entry struct {
	models.IndexedEntry
	norm float64
}

// Index is an in-memory vector index with optional write-through persistence.
// Inserts are serialized; searches run concurrently against a snapshot and
// observe either all or none of a given insert.
type Index struct {
	embedder     embedding.Embedder
	store        Store
	embedTimeout time.Duration
	concurrency  int

	// insertMu serializes writers. nextID is only touched while holding it.
	insertMu sync.Mutex
	nextID   uint64

	mu        sync.RWMutex
	entries   []entry
	dimension int
}

type Option func(*Index)

// WithStore persists every accepted entry before it becomes searchable.
func WithStore(s Store) Option {
	return func(idx *Index) { idx.store = s }
}

// WithEmbedTimeout bounds each embedding call. Zero disables the bound.
func WithEmbedTimeout(d time.Duration) Option {
	return func(idx *Index) { idx.embedTimeout = d }
}

// WithConcurrency sets how many chunks of one insert are embedded in parallel.
func WithConcurrency(n int) Option {
	return func(idx *Index) {
		if n > 0 {
			idx.concurrency = n
		}
	}
}

func New(embedder embedding.Embedder, opts ...Option) *Index {
	idx := &Index{embedder: embedder, concurrency: 1}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Insert embeds the chunks and adds every successfully embedded one to the
// index. A chunk whose embedding fails is reported in the result and skipped.
// The returned error is non-nil only when the whole batch failed: caller
// cancellation or a store failure.
func (idx *Index) Insert(ctx context.Context, chunks []models.Chunk) (InsertResult, error) {
	var res InsertResult
	if len(chunks) == 0 {
		return res, nil
	}
	start := time.Now()

	vectors := make([][]float32, len(chunks))
	errs := make([]error, len(chunks))
	var g errgroup.Group
	g.SetLimit(idx.concurrency)
	for i, ch := range chunks {
		g.Go(func() error {
			vectors[i], errs[i] = idx.embed(ctx, ch.Text)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return res, err
	}

	idx.insertMu.Lock()
	defer idx.insertMu.Unlock()

	idx.mu.RLock()
	dim := idx.dimension
	idx.mu.RUnlock()

	var fresh []entry
	for i, ch := range chunks {
		vec, err := vectors[i], errs[i]
		switch {
		case err != nil:
		case len(vec) == 0:
			err = fmt.Errorf("empty embedding")
		case dim != 0 && len(vec) != dim:
			err = fmt.Errorf("embedding dimension %d does not match index dimension %d", len(vec), dim)
		}
		if err != nil {
			res.Failed = append(res.Failed, FailedChunk{
				SequenceIndex: ch.SequenceIndex,
				Err:           models.Wrap(models.ErrEmbedding, err, "embed chunk %d of %s", ch.SequenceIndex, ch.SourceID),
			})
			continue
		}
		if dim == 0 {
			dim = len(vec)
		}

		idx.nextID++
		id := models.EntryID(idx.nextID)
		fresh = append(fresh, entry{
			IndexedEntry: models.IndexedEntry{ID: id, Chunk: ch, Embedding: vec},
			norm:         vectorNorm(vec),
		})
		res.IDs = append(res.IDs, id)
	}
	if len(fresh) == 0 {
		return res, nil
	}

	if idx.store != nil {
		persisted := make([]models.IndexedEntry, len(fresh))
		for i, e := range fresh {
			persisted[i] = e.IndexedEntry
		}
		if err := idx.store.Append(ctx, persisted); err != nil {
			return InsertResult{Failed: res.Failed}, models.Wrap(models.ErrStorage, err, "persist %d entries", len(persisted))
		}
	}

	idx.mu.Lock()
	// Readers hold their own slice header, so appending past their length is safe.
	idx.entries = append(idx.entries, fresh...)
	idx.dimension = dim
	idx.mu.Unlock()

	log.Debug().Int("accepted", len(fresh)).Int("failed", len(res.Failed)).Dur("elapsed", time.Since(start)).Msg("Inserted chunks")
	return res, nil
}

// Search returns the k entries most similar to query, best first. Ties are
// broken by ascending id. An empty index yields no hits without embedding the
// query.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]models.SearchHit, error) {
	if k < 1 {
		return nil, models.Wrap(models.ErrInvalidArgument, nil, "k must be at least 1, got %d", k)
	}

	idx.mu.RLock()
	snapshot, dim := idx.entries, idx.dimension
	idx.mu.RUnlock()
	if len(snapshot) == 0 {
		return []models.SearchHit{}, nil
	}

	q, err := idx.embed(ctx, query)
	if err != nil {
		return nil, models.Wrap(models.ErrEmbedding, err, "embed query")
	}
	if len(q) != dim {
		return nil, models.Wrap(models.ErrEmbedding, nil, "query embedding dimension %d does not match index dimension %d", len(q), dim)
	}

	qNorm := vectorNorm(q)
	candidates := make([]scored, len(snapshot))
	for i, e := range snapshot {
		candidates[i] = scored{pos: i, id: uint64(e.ID), score: cosine(q, e.Embedding, qNorm, e.norm)}
	}

	best := topK(candidates, k)
	hits := make([]models.SearchHit, len(best))
	for i, c := range best {
		e := snapshot[c.pos]
		hits[i] = models.SearchHit{
			EntryID:       e.ID,
			Score:         c.score,
			Text:          e.Chunk.Text,
			SourceID:      e.Chunk.SourceID,
			SequenceIndex: e.Chunk.SequenceIndex,
		}
	}
	return hits, nil
}

// Remove deletes an entry. Its id is never handed out again.
func (idx *Index) Remove(ctx context.Context, id models.EntryID) error {
	idx.insertMu.Lock()
	defer idx.insertMu.Unlock()

	idx.mu.RLock()
	current := idx.entries
	idx.mu.RUnlock()

	pos := sort.Search(len(current), func(i int) bool { return current[i].ID >= id })
	if pos == len(current) || current[pos].ID != id {
		return models.Wrap(models.ErrNotFound, nil, "entry %d", id)
	}

	if idx.store != nil {
		if err := idx.store.Remove(ctx, id); err != nil {
			return models.Wrap(models.ErrStorage, err, "remove entry %d", id)
		}
	}

	next := make([]entry, 0, len(current)-1)
	next = append(next, current[:pos]...)
	next = append(next, current[pos+1:]...)

	idx.mu.Lock()
	idx.entries = next
	idx.mu.Unlock()
	return nil
}

// Restore replaces the in-memory state with the store contents. Id
// assignment resumes after the highest id the store has recorded.
func (idx *Index) Restore(ctx context.Context) error {
	if idx.store == nil {
		return nil
	}

	idx.insertMu.Lock()
	defer idx.insertMu.Unlock()

	snap, err := idx.store.Load(ctx)
	if err != nil {
		return models.Wrap(models.ErrStorage, err, "load index")
	}
	sort.Slice(snap.Entries, func(i, j int) bool { return snap.Entries[i].ID < snap.Entries[j].ID })

	loaded := make([]entry, 0, len(snap.Entries))
	lastID := uint64(snap.LastID)
	dim := 0
	for _, e := range snap.Entries {
		if dim == 0 {
			dim = len(e.Embedding)
		}
		if len(e.Embedding) != dim {
			log.Warn().Uint64("entry_id", uint64(e.ID)).Int("dimension", len(e.Embedding)).Msg("Skipping stored entry with mismatched dimension")
			continue
		}
		loaded = append(loaded, entry{IndexedEntry: e, norm: vectorNorm(e.Embedding)})
		lastID = max(lastID, uint64(e.ID))
	}

	idx.nextID = lastID
	idx.mu.Lock()
	idx.entries = loaded
	idx.dimension = dim
	idx.mu.Unlock()

	log.Info().Int("entries", len(loaded)).Uint64("last_id", lastID).Msg("Restored index")
	return nil
}

// Len returns the number of searchable entries.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Dimension returns the embedding dimension, or 0 while the index is empty
// and has never held an entry.
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimension
}

// embed calls the embedder bounded by the embed timeout, even if the
// embedder itself ignores its context.
func (idx *Index) embed(ctx context.Context, text string) ([]float32, error) {
	if idx.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, idx.embedTimeout)
		defer cancel()
	}

	type result struct {
		vec []float32
		err error
	}
	done := make(chan result, 1)
	go func() {
		vec, err := idx.embedder.Embed(ctx, text)
		done <- result{vec, err}
	}()

	select {
	case r := <-done:
		return r.vec, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
