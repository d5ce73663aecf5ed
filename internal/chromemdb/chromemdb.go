package chromemdb

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"askdocs/internal/config"
	"askdocs/internal/helper"
	"askdocs/internal/models"
	"askdocs/internal/vectorindex"
)

const (
	manifestDocID = "manifest"

	metaSourceID  = "source_id"
	metaSequence  = "sequence_index"
	metaDimension = "dimension"
	metaLastID    = "last_id"
)

// VectorDBManager stores index entries in a chromem-go collection, one
// document per entry. A second collection holds the manifest with the
// embedding dimension and the highest id ever written.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	manifest      *chromem.Collection
	dbPath        string
	inMemory      bool
	compress      bool
	encryptionKey string
	filePath      string

	mu        sync.Mutex
	lastID    models.EntryID
	dimension int
}

var _ vectorindex.Store = (*VectorDBManager)(nil)

// NewVectorDBManager opens (or creates) the database described by cfg. An
// in-memory database is seeded from the encrypted export file when one exists.
func NewVectorDBManager(ctx context.Context, cfg config.ChromemConfig) (*VectorDBManager, error) {
	var db *chromem.DB
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(cfg.Path); err != nil {
			return nil, models.Wrap(models.ErrStorage, err, "create chromem folder")
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, models.Wrap(models.ErrStorage, err, "failed to create database")
		}
	}

	m := &VectorDBManager{
		db:            db,
		dbPath:        cfg.Path,
		inMemory:      cfg.InMemory,
		compress:      cfg.Compress,
		encryptionKey: cfg.EncryptionKey,
		filePath:      filepath.Join(cfg.Path, cfg.Collection+".chromem"),
	}

	if err := m.GetOrCreateCollection(cfg.Collection); err != nil {
		return nil, err
	}
	if m.inMemory && m.encryptionKey != "" {
		if _, err := os.Stat(m.filePath); err == nil {
			if err := m.Import(ctx, m.filePath); err != nil {
				return nil, err
			}
			log.Info().Str("file", m.filePath).Msg("Imported chromem export")
		}
	}
	if err := m.readManifest(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// GetOrCreateCollection selects the entry collection and its manifest.
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) error {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return models.Wrap(models.ErrStorage, err, "failed to create/get collection %s", collectionName)
	}
	manifest, err := m.db.GetOrCreateCollection(collectionName+"-manifest", nil, nil)
	if err != nil {
		return models.Wrap(models.ErrStorage, err, "failed to create/get manifest for %s", collectionName)
	}
	m.collection, m.manifest = c, manifest
	return nil
}

func (m *VectorDBManager) readManifest(ctx context.Context) error {
	if m.manifest.Count() == 0 {
		return nil
	}
	doc, err := m.manifest.GetByID(ctx, manifestDocID)
	if err != nil {
		return models.Wrap(models.ErrStorage, err, "read manifest")
	}
	dim, err := strconv.Atoi(doc.Metadata[metaDimension])
	if err != nil {
		return models.Wrap(models.ErrStorage, err, "parse manifest dimension")
	}
	last, err := strconv.ParseUint(doc.Metadata[metaLastID], 10, 64)
	if err != nil {
		return models.Wrap(models.ErrStorage, err, "parse manifest last id")
	}
	m.dimension, m.lastID = dim, models.EntryID(last)
	return nil
}

func (m *VectorDBManager) writeManifest(ctx context.Context) error {
	return m.manifest.AddDocument(ctx, chromem.Document{
		ID:        manifestDocID,
		Content:   manifestDocID,
		Embedding: []float32{1},
		Metadata: map[string]string{
			metaDimension: strconv.Itoa(m.dimension),
			metaLastID:    strconv.FormatUint(uint64(m.lastID), 10),
		},
	})
}

// Load returns every stored entry ordered by id.
func (m *VectorDBManager) Load(ctx context.Context) (vectorindex.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := vectorindex.Snapshot{LastID: m.lastID}
	count := m.collection.Count()
	if count == 0 {
		return snap, nil
	}
	if m.dimension == 0 {
		return snap, models.Wrap(models.ErrStorage, nil, "collection %s has %d documents but no manifest", m.collection.Name, count)
	}

	// chromem has no listing call; an exhaustive query returns every document.
	probe := make([]float32, m.dimension)
	probe[0] = 1
	results, err := m.collection.QueryEmbedding(ctx, probe, count, nil, nil)
	if err != nil {
		return snap, models.Wrap(models.ErrStorage, err, "failed to read collection")
	}

	snap.Entries = make([]models.IndexedEntry, 0, len(results))
	for _, r := range results {
		entry, err := toEntry(r)
		if err != nil {
			return snap, models.Wrap(models.ErrStorage, err, "decode document %s", r.ID)
		}
		snap.Entries = append(snap.Entries, entry)
	}
	sort.Slice(snap.Entries, func(i, j int) bool { return snap.Entries[i].ID < snap.Entries[j].ID })
	return snap, nil
}

func toEntry(r chromem.Result) (models.IndexedEntry, error) {
	id, err := strconv.ParseUint(r.ID, 10, 64)
	if err != nil {
		return models.IndexedEntry{}, err
	}
	seq, err := strconv.Atoi(r.Metadata[metaSequence])
	if err != nil {
		return models.IndexedEntry{}, err
	}

	// chromem stores unit vectors; a zero vector comes back as NaN.
	vec := make([]float32, len(r.Embedding))
	for i, v := range r.Embedding {
		if !math.IsNaN(float64(v)) {
			vec[i] = v
		}
	}
	return models.IndexedEntry{
		ID:        models.EntryID(id),
		Chunk:     models.Chunk{Text: r.Content, SourceID: r.Metadata[metaSourceID], SequenceIndex: seq},
		Embedding: vec,
	}, nil
}

// Append adds entries and advances the manifest. On failure the documents
// of this batch are deleted again and the manifest is left unchanged.
func (m *VectorDBManager) Append(ctx context.Context, entries []models.IndexedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	lastID, dimension := m.lastID, m.dimension
	docs := make([]chromem.Document, len(entries))
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = strconv.FormatUint(uint64(e.ID), 10)
		docs[i] = chromem.Document{
			ID:        ids[i],
			Content:   e.Chunk.Text,
			Embedding: e.Embedding,
			Metadata: map[string]string{
				metaSourceID: e.Chunk.SourceID,
				metaSequence: strconv.Itoa(e.Chunk.SequenceIndex),
			},
		}
		lastID = max(lastID, e.ID)
		if dimension == 0 {
			dimension = len(e.Embedding)
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		m.rollback(ids)
		return fmt.Errorf("failed to add documents: %w", err)
	}
	prevLast, prevDim := m.lastID, m.dimension
	m.lastID, m.dimension = lastID, dimension
	if err := m.writeManifest(ctx); err != nil {
		m.lastID, m.dimension = prevLast, prevDim
		m.rollback(ids)
		return fmt.Errorf("failed to update manifest: %w", err)
	}
	return nil
}

// rollback removes documents a failed Append may have written.
func (m *VectorDBManager) rollback(ids []string) {
	if err := m.collection.Delete(context.Background(), nil, nil, ids...); err != nil {
		log.Error().Err(err).Int("documents", len(ids)).Msg("Failed to roll back partial append")
	}
}

func (m *VectorDBManager) Remove(ctx context.Context, id models.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.collection.Delete(ctx, nil, nil, strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("failed to delete document %d: %w", id, err)
	}
	return nil
}

// Close writes the encrypted export for in-memory databases. Persistent
// databases are already on disk.
func (m *VectorDBManager) Close() error {
	if !m.inMemory || m.encryptionKey == "" {
		return nil
	}
	if err := helper.CreateFolder(m.dbPath); err != nil {
		return models.Wrap(models.ErrStorage, err, "create export folder")
	}
	return m.Export(context.Background(), m.filePath)
}

// Export writes the entry collection and its manifest to an encrypted file.
func (m *VectorDBManager) Export(ctx context.Context, path string) error {
	if m.encryptionKey == "" {
		return models.Wrap(models.ErrConfiguration, nil, "encryption key is required")
	}
	if path == "" {
		path = m.filePath
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", path).Bool("compress", m.compress).Msg("Exporting collection")
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.db.ExportToFile(path, m.compress, m.encryptionKey, m.collection.Name, m.manifest.Name); err != nil {
		return models.Wrap(models.ErrStorage, err, "failed to export database")
	}
	return nil
}

// Import replaces the collection and manifest with the contents of an export file.
func (m *VectorDBManager) Import(ctx context.Context, path string) error {
	if path == "" {
		path = m.filePath
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	name := m.collection.Name
	if err := m.db.ImportFromFile(path, m.encryptionKey, name, m.manifest.Name); err != nil {
		return models.Wrap(models.ErrStorage, err, "failed to import database")
	}
	// Import swaps in new collection objects.
	if err := m.GetOrCreateCollection(name); err != nil {
		return err
	}
	m.lastID, m.dimension = 0, 0
	return m.readManifest(ctx)
}
