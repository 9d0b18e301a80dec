// Package content coordinates reads and writes of entries: the create-or-update
// flow, deletes, listings and change events.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/contentstore/internal/codec"
	"github.com/alfredjeanlab/contentstore/internal/events"
	"github.com/alfredjeanlab/contentstore/internal/idgen"
	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

// Coordinator is the single write path for entries. It holds no locks: a
// read-modify-write cycle built on top of it is last-writer-wins unless the
// caller uses CreateOrUpdateIfRevision.
type Coordinator struct {
	store     store.Store
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPublisher sets where change events go. The default drops them.
func WithPublisher(p events.Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithLogger sets the logger used for event failures and decode fallbacks.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// New returns a Coordinator over s.
func New(s store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     s,
		publisher: &events.NoopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Decoder returns a codec.Decoder that logs through the coordinator's logger.
func (c *Coordinator) Decoder() codec.Decoder {
	return codec.Decoder{Logger: c.logger}
}

// Get returns the entry stored under key.
func (c *Coordinator) Get(ctx context.Context, key string) (*model.Entry, error) {
	if key == "" {
		return nil, inputErrorf("key is required")
	}
	return c.store.GetEntry(ctx, key)
}

// GetByID returns the entry with the given store-assigned id.
func (c *Coordinator) GetByID(ctx context.Context, id string) (*model.Entry, error) {
	if id == "" {
		return nil, inputErrorf("id is required")
	}
	return c.store.GetEntryByID(ctx, id)
}

// List returns entries matching filter.
func (c *Coordinator) List(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	if filter.Type != "" && !filter.Type.IsValid() {
		return nil, inputErrorf("invalid type filter %q", filter.Type)
	}
	return c.store.ListEntries(ctx, filter)
}

// CreateOrUpdate stores req under req.Key: a missing key is created, an
// existing one has every mutable field overwritten. There is no
// compare-and-swap, so the last write to land wins. A concurrent writer that
// creates the key between the lookup and the insert is overwritten.
func (c *Coordinator) CreateOrUpdate(ctx context.Context, req UpsertRequest) (*model.Entry, error) {
	e, err := req.entry()
	if err != nil {
		return nil, err
	}

	_, err = c.store.GetEntry(ctx, e.Key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		created, err := c.create(ctx, e)
		if !errors.Is(err, store.ErrDuplicateKey) {
			return created, err
		}
		return c.replace(ctx, e, 0)
	case err != nil:
		return nil, fmt.Errorf("looking up %q: %w", e.Key, err)
	}
	return c.replace(ctx, e, 0)
}

// CreateOrUpdateIfRevision is CreateOrUpdate with optimistic concurrency. A
// revision of 0 only creates; any other value only replaces an entry still at
// that revision. A mismatch in either direction is store.ErrStaleRevision.
func (c *Coordinator) CreateOrUpdateIfRevision(ctx context.Context, req UpsertRequest, revision int64) (*model.Entry, error) {
	if revision < 0 {
		return nil, inputErrorf("revision must not be negative")
	}
	e, err := req.entry()
	if err != nil {
		return nil, err
	}

	if revision == 0 {
		created, err := c.create(ctx, e)
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %q already exists", store.ErrStaleRevision, e.Key)
		}
		return created, err
	}

	replaced, err := c.replace(ctx, e, revision)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q no longer exists", store.ErrStaleRevision, e.Key)
	}
	return replaced, err
}

// Delete removes the entry whose key or id is idOrKey. Deleting a missing
// entry is store.ErrNotFound, so a repeated delete is not silent.
func (c *Coordinator) Delete(ctx context.Context, idOrKey string) error {
	if idOrKey == "" {
		return inputErrorf("id or key is required")
	}

	// Resolve first so the event can name both identifiers.
	current, err := c.store.GetEntry(ctx, idOrKey)
	if errors.Is(err, store.ErrNotFound) && idgen.LooksLikeEntryID(idOrKey) {
		current, err = c.store.GetEntryByID(ctx, idOrKey)
	}
	if err != nil {
		return err
	}

	if err := c.store.DeleteEntry(ctx, idOrKey); err != nil {
		return err
	}
	c.publish(ctx, events.TopicEntryDeleted, current.Key, events.EntryDeleted{
		ID:  current.ID,
		Key: current.Key,
		At:  c.now().UTC(),
	})
	return nil
}

func (c *Coordinator) create(ctx context.Context, e *model.Entry) (*model.Entry, error) {
	if err := c.store.CreateEntry(ctx, e); err != nil {
		return nil, err
	}
	c.publish(ctx, events.TopicEntryCreated, e.Key, events.EntryCreated{Entry: e.Clone(), At: e.CreatedAt})
	return e, nil
}

func (c *Coordinator) replace(ctx context.Context, e *model.Entry, expected int64) (*model.Entry, error) {
	if err := c.store.ReplaceEntry(ctx, e, expected); err != nil {
		return nil, err
	}
	c.publish(ctx, events.TopicEntryUpdated, e.Key, events.EntryUpdated{
		Entry:            e.Clone(),
		PreviousRevision: e.Revision - 1,
		At:               e.UpdatedAt,
	})
	return e, nil
}

// publish is best-effort; a failed publish is logged and never fails the write.
func (c *Coordinator) publish(ctx context.Context, topic, key string, event any) {
	if err := c.publisher.Publish(ctx, topic, event); err != nil {
		c.logger.Warn("failed to publish event", "topic", topic, "key", key, "error", err)
	}
}

// healthProbeKey is looked up by Ping; it is never written.
const healthProbeKey = "__health__"

// Ping reports whether the backing store answers reads.
func (c *Coordinator) Ping(ctx context.Context) error {
	_, err := c.store.GetEntry(ctx, healthProbeKey)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
