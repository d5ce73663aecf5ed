package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"askdocs/internal/config"
	"askdocs/internal/models"
	"askdocs/internal/vectorindex"
)

// IndexEntry is one row of the index_entries table. Removed rows are soft
// deleted so their ids stay reserved.
type IndexEntry struct {
	bun.BaseModel `bun:"table:index_entries,alias:ie"`

	ID            int64     `bun:"id,pk"`
	SourceID      string    `bun:"source_id,notnull"`
	SequenceIndex int       `bun:"sequence_index,notnull"`
	Content       string    `bun:"content,notnull"`
	Embedding     []float32 `bun:"embedding,array"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	DeletedAt     time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

// Store persists index entries in Postgres.
type Store struct {
	db *bun.DB
}

var _ vectorindex.Store = (*Store)(nil)

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a connection pool with the configured driver: bun's
// pgdriver or lib/pq.
func ConnectDB(cfg *config.PostgresConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case "pq":
		return sql.Open("postgres", cfg.DSN)
	default:
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	}
}

// NewStore connects and makes sure the table exists.
func NewStore(ctx context.Context, cfg *config.PostgresConfig) (*Store, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, models.Wrap(models.ErrStorage, err, "connect postgres")
	}
	s := &Store{db: NewDB(sqldb, cfg.Debug)}
	if err := InitDB(ctx, s.db); err != nil {
		s.db.Close()
		return nil, models.Wrap(models.ErrStorage, err, "initialize schema")
	}
	return s, nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*IndexEntry)(nil)).IfNotExists().Exec(ctx)
	return err
}

func (s *Store) Load(ctx context.Context) (vectorindex.Snapshot, error) {
	var snap vectorindex.Snapshot

	var rows []IndexEntry
	if err := s.db.NewSelect().Model(&rows).Order("id ASC").Scan(ctx); err != nil {
		return snap, err
	}

	var lastID int64
	err := s.db.NewSelect().
		Model((*IndexEntry)(nil)).
		WhereAllWithDeleted().
		ColumnExpr("COALESCE(MAX(id), 0)").
		Scan(ctx, &lastID)
	if err != nil {
		return snap, err
	}

	snap.LastID = models.EntryID(lastID)
	snap.Entries = make([]models.IndexedEntry, len(rows))
	for i, r := range rows {
		snap.Entries[i] = r.toEntry()
	}
	log.Debug().Int("entries", len(rows)).Int64("last_id", lastID).Msg("Loaded index entries from postgres")
	return snap, nil
}

func (s *Store) Append(ctx context.Context, entries []models.IndexedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]IndexEntry, len(entries))
	for i, e := range entries {
		rows[i] = fromEntry(e)
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
}

// Remove soft deletes the row.
func (s *Store) Remove(ctx context.Context, id models.EntryID) error {
	_, err := s.db.NewDelete().Model((*IndexEntry)(nil)).Where("id = ?", int64(id)).Exec(ctx)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DropEntries removes the table, including soft deleted rows.
func DropEntries(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*IndexEntry)(nil)).IfExists().Exec(ctx)
	return err
}

func fromEntry(e models.IndexedEntry) IndexEntry {
	return IndexEntry{
		ID:            int64(e.ID),
		SourceID:      e.Chunk.SourceID,
		SequenceIndex: e.Chunk.SequenceIndex,
		Content:       e.Chunk.Text,
		Embedding:     e.Embedding,
	}
}

func (r IndexEntry) toEntry() models.IndexedEntry {
	return models.IndexedEntry{
		ID:        models.EntryID(r.ID),
		Chunk:     models.Chunk{Text: r.Content, SourceID: r.SourceID, SequenceIndex: r.SequenceIndex},
		Embedding: r.Embedding,
	}
}
