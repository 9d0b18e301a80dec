// Package collection keeps an array of records inside a single json entry.
//
// Every mutation reads the whole array, changes one item and writes the whole
// array back through the content coordinator. By default nothing guards the
// window between read and write, so concurrent writers to one key can lose
// each other's changes; WithGuard turns that into store.ErrStaleRevision.
package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/contentstore/internal/codec"
	"github.com/alfredjeanlab/contentstore/internal/content"
	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

// Collection is a typed view of one key holding an array of items.
type Collection struct {
	coord   *content.Coordinator
	key     string
	place   placement
	guarded bool
	now     func() time.Time
}

// placement holds entry fields the collection writes alongside its items.
// Unset fields carry over from the stored entry.
type placement struct {
	title, section, subsection *string
}

// Option configures a Collection.
type Option func(*Collection)

// WithTitle sets the title written with every mutation.
func WithTitle(title string) Option {
	return func(c *Collection) { c.place.title = &title }
}

// WithSection sets the section and subsection written with every mutation.
func WithSection(section, subsection string) Option {
	return func(c *Collection) {
		c.place.section = &section
		c.place.subsection = &subsection
	}
}

// WithGuard makes every write conditional on the revision that was read.
func WithGuard() Option {
	return func(c *Collection) { c.guarded = true }
}

// WithClock overrides the time source used to derive new item ids.
func WithClock(now func() time.Time) Option {
	return func(c *Collection) { c.now = now }
}

// New returns the collection stored under key.
func New(coord *content.Coordinator, key string, opts ...Option) *Collection {
	c := &Collection{coord: coord, key: key, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key returns the entry key backing the collection.
func (c *Collection) Key() string { return c.key }

// snapshot is one read of the backing entry.
type snapshot struct {
	entry   *model.Entry // nil when the key has never been written
	items   []Item
	wrapped int // elements that were not objects
}

func (s snapshot) revision() int64 {
	if s.entry == nil {
		return 0
	}
	return s.entry.Revision
}

// Read returns the current items and the revision they were read at. A key
// that was never written reads as an empty collection at revision 0.
func (c *Collection) Read(ctx context.Context) ([]Item, int64, error) {
	snap, err := c.read(ctx)
	if err != nil {
		return nil, 0, err
	}
	return snap.items, snap.revision(), nil
}

func (c *Collection) read(ctx context.Context) (snapshot, error) {
	e, err := c.coord.Get(ctx, c.key)
	if errors.Is(err, store.ErrNotFound) {
		return snapshot{items: []Item{}}, nil
	}
	if err != nil {
		return snapshot{}, err
	}
	values, _ := c.coord.Decoder().List(e)
	items, wrapped := toItems(values)
	return snapshot{entry: e, items: items, wrapped: wrapped}, nil
}

// Append adds item, assigning an id when it has none, and returns the item
// as stored.
func (c *Collection) Append(ctx context.Context, item Item) (Item, error) {
	var added Item
	_, err := c.mutate(ctx, func(items []Item) ([]Item, bool, error) {
		out, it, err := AppendItem(items, item, c.now())
		if err != nil {
			return nil, false, err
		}
		added = it
		return out, true, nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// Replace overwrites the item with the given id. A missing id leaves the
// collection untouched and issues no write.
func (c *Collection) Replace(ctx context.Context, id string, item Item) ([]Item, error) {
	return c.mutate(ctx, func(items []Item) ([]Item, bool, error) {
		out, ok := ReplaceItem(items, id, item)
		return out, ok, nil
	})
}

// Remove deletes the item with the given id. A missing id leaves the
// collection untouched and issues no write.
func (c *Collection) Remove(ctx context.Context, id string) ([]Item, error) {
	return c.mutate(ctx, func(items []Item) ([]Item, bool, error) {
		out, ok := RemoveItem(items, id)
		return out, ok, nil
	})
}

// Toggle flips a boolean field of the item with the given id. A missing id
// leaves the collection untouched and issues no write.
func (c *Collection) Toggle(ctx context.Context, id, field string) ([]Item, error) {
	if field == "" {
		return nil, fmt.Errorf("%w: empty field name", ErrNotToggleable)
	}
	return c.mutate(ctx, func(items []Item) ([]Item, bool, error) {
		return ToggleItem(items, id, field)
	})
}

// mutate runs one read-modify-write cycle. fn reports whether it changed
// anything; when it did not, the read items are returned and nothing is written.
// A stored array with non-object elements is never rewritten.
func (c *Collection) mutate(ctx context.Context, fn func([]Item) ([]Item, bool, error)) ([]Item, error) {
	snap, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	if snap.wrapped > 0 {
		return nil, fmt.Errorf("%w: %q has %d of %d", ErrNotRecords, c.key, snap.wrapped, len(snap.items))
	}
	next, changed, err := fn(snap.items)
	if err != nil {
		return nil, err
	}
	if !changed {
		return snap.items, nil
	}

	req, err := c.request(snap, next)
	if err != nil {
		return nil, err
	}
	if c.guarded {
		_, err = c.coord.CreateOrUpdateIfRevision(ctx, req, snap.revision())
	} else {
		_, err = c.coord.CreateOrUpdate(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("writing collection %q: %w", c.key, err)
	}
	return next, nil
}

// request builds the upsert for next, carrying over the stored entry's other
// fields so rewriting the items does not clear them.
func (c *Collection) request(snap snapshot, next []Item) (content.UpsertRequest, error) {
	req := content.UpsertRequest{Key: c.key}
	if e := snap.entry; e != nil {
		req.Title = e.Title
		req.Section = e.Section
		req.Subsection = e.Subsection
		req.Metadata = e.Metadata
		req.IsPublished = e.IsPublished
		req.Order = e.Order
	}
	if c.place.title != nil {
		req.Title = *c.place.title
	}
	if c.place.section != nil {
		req.Section = *c.place.section
		req.Subsection = *c.place.subsection
	}

	values := make([]any, len(next))
	for i, it := range next {
		values[i] = map[string]any(it)
	}
	return req.WithPayload(codec.JSON(values))
}

// toItems converts decoded array elements to items. Elements that are not
// objects, such as lines of a legacy newline list, are shown as {"value": v}
// and counted in wrapped.
func toItems(values []any) (items []Item, wrapped int) {
	items = make([]Item, 0, len(values))
	for _, v := range values {
		if m, ok := v.(map[string]any); ok {
			items = append(items, Item(m))
			continue
		}
		items = append(items, Item{"value": v})
		wrapped++
	}
	return items, wrapped
}

// Decode converts items into a slice of T through their JSON form.
func Decode[T any](items []Item) ([]T, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding items: %w", err)
	}
	return out, nil
}

// ToItem converts a record value into an Item through its JSON form.
func ToItem(v any) (Item, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var it Item
	if err := json.Unmarshal(data, &it); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}
	return it, nil
}
