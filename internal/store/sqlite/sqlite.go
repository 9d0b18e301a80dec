// Package sqlite implements store.Store on an embedded SQLite database, for
// single-node consoles and local development.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore implements store.Store backed by a SQLite file.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time check that SQLiteStore implements store.Store.
var _ store.Store = (*SQLiteStore)(nil)

// New opens (creating if needed) the database at path and applies the schema.
// The special path ":memory:" gives a private in-memory database.
func New(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:" a
	// single database.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{`PRAGMA busy_timeout = 5000`, `PRAGMA journal_mode = WAL`, schemaSQL} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, store.Unavailable("init database", err)
		}
	}

	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetEntry(ctx context.Context, key string) (*model.Entry, error) {
	return queryGetEntry(ctx, s.db, key)
}

func (s *SQLiteStore) GetEntryByID(ctx context.Context, id string) (*model.Entry, error) {
	return queryGetEntryByID(ctx, s.db, id)
}

func (s *SQLiteStore) ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	return queryListEntries(ctx, s.db, filter)
}

func (s *SQLiteStore) CreateEntry(ctx context.Context, e *model.Entry) error {
	return queryCreateEntry(ctx, s.db, e, s.now())
}

func (s *SQLiteStore) ReplaceEntry(ctx context.Context, e *model.Entry, expectedRevision int64) error {
	return queryReplaceEntry(ctx, s.db, e, expectedRevision, s.now())
}

func (s *SQLiteStore) DeleteEntry(ctx context.Context, idOrKey string) error {
	return queryDeleteEntry(ctx, s.db, idOrKey)
}

// RunInTransaction runs fn inside a database transaction, committing on success.
func (s *SQLiteStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Unavailable("begin transaction", err)
	}
	if err := fn(&txStore{tx: tx, now: s.now}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return store.Unavailable("commit transaction", err)
	}
	return nil
}

type txStore struct {
	tx  *sql.Tx
	now func() time.Time
}

var _ store.Store = (*txStore)(nil)

func (s *txStore) GetEntry(ctx context.Context, key string) (*model.Entry, error) {
	return queryGetEntry(ctx, s.tx, key)
}

func (s *txStore) GetEntryByID(ctx context.Context, id string) (*model.Entry, error) {
	return queryGetEntryByID(ctx, s.tx, id)
}

func (s *txStore) ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	return queryListEntries(ctx, s.tx, filter)
}

func (s *txStore) CreateEntry(ctx context.Context, e *model.Entry) error {
	return queryCreateEntry(ctx, s.tx, e, s.now())
}

func (s *txStore) ReplaceEntry(ctx context.Context, e *model.Entry, expectedRevision int64) error {
	return queryReplaceEntry(ctx, s.tx, e, expectedRevision, s.now())
}

func (s *txStore) DeleteEntry(ctx context.Context, idOrKey string) error {
	return queryDeleteEntry(ctx, s.tx, idOrKey)
}

func (s *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *txStore) Close() error { return nil }
