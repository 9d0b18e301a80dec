// Package memory implements store.Store with an in-process map. Each call is
// atomic; nothing guards a caller's read-modify-write cycle.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

// MemoryStore implements store.Store backed by a map keyed by entry key.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*model.Entry
	now     func() time.Time
	closed  bool
}

// Compile-time check that MemoryStore implements store.Store.
var _ store.Store = (*MemoryStore)(nil)

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) { s.now = now }
}

// New returns an empty MemoryStore.
func New(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*model.Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MemoryStore) GetEntry(ctx context.Context, key string) (*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return getEntry(s.entries, key)
}

func (s *MemoryStore) GetEntryByID(ctx context.Context, id string) (*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return getEntryByID(s.entries, id)
}

func (s *MemoryStore) ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	return listEntries(s.entries, filter), nil
}

func (s *MemoryStore) CreateEntry(ctx context.Context, e *model.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	return createEntry(s.entries, e, s.now())
}

func (s *MemoryStore) ReplaceEntry(ctx context.Context, e *model.Entry, expectedRevision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	return replaceEntry(s.entries, e, expectedRevision, s.now())
}

func (s *MemoryStore) DeleteEntry(ctx context.Context, idOrKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	return deleteEntry(s.entries, idOrKey)
}

// RunInTransaction runs fn against a copy of the entries while holding the
// store lock, and swaps the copy in only if fn succeeds.
func (s *MemoryStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}

	snapshot := make(map[string]*model.Entry, len(s.entries))
	for k, e := range s.entries {
		snapshot[k] = e
	}
	tx := &txStore{entries: snapshot, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.entries = tx.entries
	return nil
}

// Close marks the store closed; later calls report storage unavailable.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) check(ctx context.Context) error {
	if s.closed {
		return store.Unavailable("memory store", fmt.Errorf("store is closed"))
	}
	if err := ctx.Err(); err != nil {
		return store.Unavailable("memory store", err)
	}
	return nil
}

// txStore operates on a private copy of the entry map. The owning
// MemoryStore holds its lock for the lifetime of the transaction.
type txStore struct {
	entries map[string]*model.Entry
	now     func() time.Time
}

var _ store.Store = (*txStore)(nil)

func (t *txStore) GetEntry(_ context.Context, key string) (*model.Entry, error) {
	return getEntry(t.entries, key)
}

func (t *txStore) GetEntryByID(_ context.Context, id string) (*model.Entry, error) {
	return getEntryByID(t.entries, id)
}

func (t *txStore) ListEntries(_ context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	return listEntries(t.entries, filter), nil
}

func (t *txStore) CreateEntry(_ context.Context, e *model.Entry) error {
	return createEntry(t.entries, e, t.now())
}

func (t *txStore) ReplaceEntry(_ context.Context, e *model.Entry, expectedRevision int64) error {
	return replaceEntry(t.entries, e, expectedRevision, t.now())
}

func (t *txStore) DeleteEntry(_ context.Context, idOrKey string) error {
	return deleteEntry(t.entries, idOrKey)
}

func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

func (t *txStore) Close() error { return nil }
