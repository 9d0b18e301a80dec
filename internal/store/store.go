// Package store defines the persistence contract for content entries.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/contentstore/internal/idgen"
	"github.com/alfredjeanlab/contentstore/internal/model"
)

var (
	// ErrNotFound is returned when no entry matches the requested key or id.
	ErrNotFound = errors.New("entry not found")
	// ErrDuplicateKey is returned when creating an entry whose key already exists.
	ErrDuplicateKey = errors.New("entry key already exists")
	// ErrStaleRevision is returned by a guarded replace whose expected revision
	// no longer matches the stored one.
	ErrStaleRevision = errors.New("stale revision")
	// ErrInvalidValue is returned when the storage engine rejects a field
	// value as malformed data.
	ErrInvalidValue = errors.New("value rejected by storage")
	// ErrStorageUnavailable wraps failures of the underlying storage engine.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Store defines the persistence interface for content entries.
type Store interface {
	GetEntry(ctx context.Context, key string) (*model.Entry, error)
	GetEntryByID(ctx context.Context, id string) (*model.Entry, error)
	ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error)

	// CreateEntry inserts a new entry. Unset id, timestamps and revision are
	// filled in on the passed entry.
	CreateEntry(ctx context.Context, e *model.Entry) error

	// ReplaceEntry overwrites every mutable field of the entry stored under
	// e.Key. created_at and id are preserved, updated_at is refreshed and the
	// revision is bumped; e is updated to match the stored row. An
	// expectedRevision of 0 replaces unconditionally.
	ReplaceEntry(ctx context.Context, e *model.Entry, expectedRevision int64) error

	// DeleteEntry removes the entry whose id or key equals idOrKey.
	DeleteEntry(ctx context.Context, idOrKey string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}

// Unavailable wraps an engine failure so it matches ErrStorageUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// PrepareCreate fills the store-assigned fields of a new entry.
func PrepareCreate(e *model.Entry, now time.Time) error {
	if e.ID == "" {
		id, err := idgen.NewEntryID()
		if err != nil {
			return err
		}
		e.ID = id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() || e.UpdatedAt.Before(e.CreatedAt) {
		e.UpdatedAt = e.CreatedAt
	}
	if e.Revision <= 0 {
		e.Revision = 1
	}
	return nil
}

// PrepareReplace copies the immutable fields of current onto e and advances
// its revision and updated_at.
func PrepareReplace(e, current *model.Entry, now time.Time) {
	e.ID = current.ID
	e.CreatedAt = current.CreatedAt
	if now.Before(current.CreatedAt) {
		now = current.CreatedAt
	}
	e.UpdatedAt = now
	e.Revision = current.Revision + 1
}

// CheckRevision returns ErrStaleRevision when expected is set and differs from actual.
func CheckRevision(expected, actual int64) error {
	if expected != 0 && expected != actual {
		return fmt.Errorf("%w: expected %d, stored %d", ErrStaleRevision, expected, actual)
	}
	return nil
}
