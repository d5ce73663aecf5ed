package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"askdocs/internal/models"
	"askdocs/internal/vectorindex"
)

const schema = `
CREATE TABLE IF NOT EXISTS index_entries (
	id             INTEGER PRIMARY KEY,
	source_id      TEXT    NOT NULL,
	sequence_index INTEGER NOT NULL,
	content        TEXT    NOT NULL,
	embedding      BLOB    NOT NULL,
	deleted        INTEGER NOT NULL DEFAULT 0
)`

// Store persists index entries in a SQLite file. Removed rows are kept as
// tombstones so their ids stay reserved.
type Store struct {
	db *sql.DB
}

var _ vectorindex.Store = (*Store)(nil)

// Open opens the database at path (":memory:" for a private in-memory
// database) and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, models.Wrap(models.ErrStorage, err, "open sqlite %s", path)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, models.Wrap(models.ErrStorage, err, "create schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context) (vectorindex.Snapshot, error) {
	var snap vectorindex.Snapshot

	var lastID int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM index_entries`).Scan(&lastID); err != nil {
		return snap, err
	}
	snap.LastID = models.EntryID(lastID)

	rows, err := s.db.QueryContext(ctx, `SELECT id, source_id, sequence_index, content, embedding FROM index_entries WHERE deleted = 0 ORDER BY id`)
	if err != nil {
		return snap, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e    models.IndexedEntry
			id   int64
			blob []byte
		)
		if err := rows.Scan(&id, &e.Chunk.SourceID, &e.Chunk.SequenceIndex, &e.Chunk.Text, &blob); err != nil {
			return snap, err
		}
		e.ID = models.EntryID(id)
		if e.Embedding, err = DecodeEmbedding(blob); err != nil {
			return snap, fmt.Errorf("entry %d: %w", id, err)
		}
		snap.Entries = append(snap.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}
	log.Debug().Int("entries", len(snap.Entries)).Int64("last_id", lastID).Msg("Loaded index entries from sqlite")
	return snap, nil
}

func (s *Store) Append(ctx context.Context, entries []models.IndexedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO index_entries(id, source_id, sequence_index, content, embedding) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, int64(e.ID), e.Chunk.SourceID, e.Chunk.SequenceIndex, e.Chunk.Text, EncodeEmbedding(e.Embedding)); err != nil {
			return fmt.Errorf("insert entry %d: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// Remove marks the row deleted and drops its payload.
func (s *Store) Remove(ctx context.Context, id models.EntryID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE index_entries SET deleted = 1, content = '', embedding = X'' WHERE id = ?`, int64(id))
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
