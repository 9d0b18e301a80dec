// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, store.Unavailable("ping database", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already-open database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetEntry(ctx context.Context, key string) (*model.Entry, error) {
	return queryGetEntry(ctx, s.db, key)
}

func (s *PostgresStore) GetEntryByID(ctx context.Context, id string) (*model.Entry, error) {
	return queryGetEntryByID(ctx, s.db, id)
}

func (s *PostgresStore) ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	return queryListEntries(ctx, s.db, filter)
}

func (s *PostgresStore) CreateEntry(ctx context.Context, e *model.Entry) error {
	return queryCreateEntry(ctx, s.db, e, time.Now().UTC())
}

func (s *PostgresStore) ReplaceEntry(ctx context.Context, e *model.Entry, expectedRevision int64) error {
	return queryReplaceEntry(ctx, s.db, e, expectedRevision, time.Now().UTC())
}

func (s *PostgresStore) DeleteEntry(ctx context.Context, idOrKey string) error {
	return queryDeleteEntry(ctx, s.db, idOrKey)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Unavailable("begin transaction", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return store.Unavailable("commit transaction", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
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
	return queryCreateEntry(ctx, s.tx, e, time.Now().UTC())
}

func (s *txStore) ReplaceEntry(ctx context.Context, e *model.Entry, expectedRevision int64) error {
	return queryReplaceEntry(ctx, s.tx, e, expectedRevision, time.Now().UTC())
}

func (s *txStore) DeleteEntry(ctx context.Context, idOrKey string) error {
	return queryDeleteEntry(ctx, s.tx, idOrKey)
}

// RunInTransaction on a txStore just calls fn with itself (no nested transactions).
func (s *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for txStore; the parent PostgresStore manages the connection.
func (s *txStore) Close() error {
	return nil
}
