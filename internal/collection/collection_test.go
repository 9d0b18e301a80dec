package collection

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/contentstore/internal/content"
	"github.com/alfredjeanlab/contentstore/internal/events"
	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
	"github.com/alfredjeanlab/contentstore/internal/store/memory"
)

func newNotices(t *testing.T, opts ...Option) (*Collection, *content.Coordinator, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	coord := content.New(memory.New(), content.WithPublisher(rec))
	opts = append([]Option{WithTitle("Notices"), WithSection("landing", "notices"), WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(coord, "landing.notices", opts...), coord, rec
}

func TestCollection_AppendThenRead(t *testing.T) {
	ctx := context.Background()
	c, coord, _ := newNotices(t)

	added, err := c.Append(ctx, Item{"text": "Open day on Saturday"})
	require.NoError(t, err)
	id, ok := added.ID()
	require.True(t, ok)

	items, rev, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)
	require.Len(t, items, 1)
	gotID, _ := items[0].ID()
	assert.Equal(t, id, gotID)
	assert.Equal(t, "Open day on Saturday", items[0]["text"])

	e, err := coord.Get(ctx, "landing.notices")
	require.NoError(t, err)
	assert.Equal(t, model.TypeJSON, e.Type)
	assert.Equal(t, "Notices", e.Title)
	assert.Equal(t, "landing", e.Section)
	assert.Equal(t, `[{"id":1700000000000,"text":"Open day on Saturday"}]`, e.Content)
}

func TestCollection_NeverWrittenKey(t *testing.T) {
	ctx := context.Background()
	c, coord, rec := newNotices(t)

	items, rev, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, rev)

	for _, mutate := range []func() ([]Item, error){
		func() ([]Item, error) { return c.Replace(ctx, "1", Item{"text": "x"}) },
		func() ([]Item, error) { return c.Remove(ctx, "1") },
		func() ([]Item, error) { return c.Toggle(ctx, "1", "active") },
	} {
		got, err := mutate()
		require.NoError(t, err)
		assert.Empty(t, got)
	}

	_, err = coord.Get(ctx, "landing.notices")
	assert.ErrorIs(t, err, store.ErrNotFound, "no-op edits must not create the key")
	assert.Empty(t, rec.Topics())
}

func TestCollection_MissingIDIsNoOp(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newNotices(t)
	_, err := c.Append(ctx, Item{"text": "a"})
	require.NoError(t, err)
	before, rev, err := c.Read(ctx)
	require.NoError(t, err)

	got, err := c.Replace(ctx, "404", Item{"text": "b"})
	require.NoError(t, err)
	assert.Equal(t, before, got)

	got, err = c.Remove(ctx, "404")
	require.NoError(t, err)
	assert.Equal(t, before, got)

	_, after, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, rev, after, "no-op edit bumped the revision")
	assert.Len(t, rec.Topics(), 1)
}

func TestCollection_ReplaceRemoveToggle(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newNotices(t)

	a, err := c.Append(ctx, Item{"text": "a", "active": false})
	require.NoError(t, err)
	b, err := c.Append(ctx, Item{"text": "b"})
	require.NoError(t, err)
	aID, _ := a.ID()
	bID, _ := b.ID()

	items, err := c.Toggle(ctx, aID, "active")
	require.NoError(t, err)
	assert.Equal(t, true, items[0]["active"])

	items, err = c.Replace(ctx, bID, Item{"text": "B", "link": "/b"})
	require.NoError(t, err)
	assert.Equal(t, "B", items[1]["text"])

	items, err = c.Remove(ctx, aID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	stored, rev, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), rev)
	require.Len(t, stored, 1)
	id, _ := stored[0].ID()
	assert.Equal(t, bID, id)
	assert.Equal(t, "/b", stored[0]["link"])
}

func TestCollection_DuplicateExplicitID(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newNotices(t)
	_, err := c.Append(ctx, Item{IDField: 5, "text": "a"})
	require.NoError(t, err)

	_, err = c.Append(ctx, Item{IDField: "5", "text": "b"})
	assert.ErrorIs(t, err, ErrDuplicateItemID)

	items, _, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCollection_LegacyListContent(t *testing.T) {
	ctx := context.Background()
	c, coord, _ := newNotices(t)
	_, err := coord.CreateOrUpdate(ctx, content.UpsertRequest{
		Key: "landing.notices", Type: model.TypeJSON, Content: "first\n\nsecond\n",
	})
	require.NoError(t, err)

	items, _, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Item{{"value": "first"}, {"value": "second"}}, items)

	_, err = c.Append(ctx, Item{"value": "third"})
	assert.ErrorIs(t, err, ErrNotRecords)
	_, err = c.Remove(ctx, "1")
	assert.ErrorIs(t, err, ErrNotRecords)

	e, err := coord.Get(ctx, "landing.notices")
	require.NoError(t, err)
	assert.Equal(t, "first\n\nsecond\n", e.Content)
	assert.Equal(t, int64(1), e.Revision)
}

func TestCollection_ScalarArrayKeepsShape(t *testing.T) {
	ctx := context.Background()
	c, coord, rec := newNotices(t)
	_, err := coord.CreateOrUpdate(ctx, content.UpsertRequest{
		Key: "landing.notices", Type: model.TypeJSON, Content: `["a",{"id":1,"text":"b"}]`,
	})
	require.NoError(t, err)

	_, err = c.Toggle(ctx, "1", "pinned")
	assert.ErrorIs(t, err, ErrNotRecords)

	e, err := coord.Get(ctx, "landing.notices")
	require.NoError(t, err)
	assert.Equal(t, `["a",{"id":1,"text":"b"}]`, e.Content)
	assert.Len(t, rec.Topics(), 1, "no write after the seed")
}

func TestCollection_KeepsEntryFields(t *testing.T) {
	ctx := context.Background()
	rec := &events.Recorder{}
	coord := content.New(memory.New(), content.WithPublisher(rec))
	_, err := coord.CreateOrUpdate(ctx, content.UpsertRequest{
		Key: "footer.social", Title: "Social", Type: model.TypeJSON, Content: "[]",
		Section: "footer", Metadata: json.RawMessage(`{"icons":true}`), IsPublished: true, Order: 4,
	})
	require.NoError(t, err)

	c := New(coord, "footer.social")
	_, err = c.Append(ctx, Item{"url": "https://example.com"})
	require.NoError(t, err)

	e, err := coord.Get(ctx, "footer.social")
	require.NoError(t, err)
	assert.Equal(t, "Social", e.Title)
	assert.Equal(t, "footer", e.Section)
	assert.JSONEq(t, `{"icons":true}`, string(e.Metadata))
	assert.True(t, e.IsPublished)
	assert.Equal(t, 4, e.Order)
}

// interleavingStore runs hook once, right after the first read of the
// collection key, before the reader gets to write.
type interleavingStore struct {
	store.Store
	once sync.Once
	hook func()
}

func (s *interleavingStore) GetEntry(ctx context.Context, key string) (*model.Entry, error) {
	e, err := s.Store.GetEntry(ctx, key)
	s.once.Do(s.hook)
	return e, err
}

// setupRace seeds the collection with seed and returns a slow writer whose
// first read is followed by fastWrite landing before the slow writer's
// write-back.
func setupRace(t *testing.T, seed []Item, fastWrite func(ctx context.Context, fast *Collection) error, opts ...Option) (slow *Collection, direct *content.Coordinator) {
	t.Helper()
	ctx := context.Background()
	base := memory.New()
	direct = content.New(base)

	seeder := New(direct, "landing.notices")
	for _, it := range seed {
		_, err := seeder.Append(ctx, it)
		require.NoError(t, err)
	}

	fast := New(direct, "landing.notices")
	racy := &interleavingStore{Store: base, hook: func() {
		require.NoError(t, fastWrite(ctx, fast))
	}}
	return New(content.New(racy), "landing.notices", opts...), direct
}

func appendRace(t *testing.T, opts ...Option) (*Collection, *content.Coordinator) {
	t.Helper()
	return setupRace(t, []Item{{IDField: 1, "text": "seed"}}, func(ctx context.Context, fast *Collection) error {
		_, err := fast.Append(ctx, Item{IDField: 2, "text": "from fast writer"})
		return err
	}, opts...)
}

func storedIDs(t *testing.T, direct *content.Coordinator) []string {
	t.Helper()
	items, _, err := New(direct, "landing.notices").Read(context.Background())
	require.NoError(t, err)
	var ids []string
	for _, it := range items {
		id, _ := it.ID()
		ids = append(ids, id)
	}
	return ids
}

func TestCollection_ConcurrentAppendLosesUpdate(t *testing.T) {
	ctx := context.Background()
	slow, direct := appendRace(t)

	_, err := slow.Append(ctx, Item{IDField: 3, "text": "from slow writer"})
	require.NoError(t, err, "unguarded writes do not detect the conflict")

	// The fast writer's item 2 was silently overwritten.
	assert.Equal(t, []string{"1", "3"}, storedIDs(t, direct))
}

func TestCollection_ConcurrentRemoveLosesUpdate(t *testing.T) {
	ctx := context.Background()
	seed := []Item{{IDField: 1, "text": "a"}, {IDField: 2, "text": "b"}, {IDField: 3, "text": "c"}}
	slow, direct := setupRace(t, seed, func(ctx context.Context, fast *Collection) error {
		_, err := fast.Remove(ctx, "1")
		return err
	})

	_, err := slow.Remove(ctx, "2")
	require.NoError(t, err, "unguarded writes do not detect the conflict")

	// Both writers started from [1 2 3]; the slow write-back restores item 1.
	assert.Equal(t, []string{"1", "3"}, storedIDs(t, direct))
}

func TestCollection_GuardedRemoveDetectsConflict(t *testing.T) {
	ctx := context.Background()
	seed := []Item{{IDField: 1, "text": "a"}, {IDField: 2, "text": "b"}}
	slow, direct := setupRace(t, seed, func(ctx context.Context, fast *Collection) error {
		_, err := fast.Remove(ctx, "1")
		return err
	}, WithGuard())

	_, err := slow.Remove(ctx, "2")
	assert.ErrorIs(t, err, store.ErrStaleRevision)
	assert.Equal(t, []string{"2"}, storedIDs(t, direct))
}

func TestCollection_GuardedAppendDetectsConflict(t *testing.T) {
	ctx := context.Background()
	slow, direct := appendRace(t, WithGuard())

	_, err := slow.Append(ctx, Item{IDField: 3, "text": "from slow writer"})
	assert.ErrorIs(t, err, store.ErrStaleRevision)
	assert.Equal(t, []string{"1", "2"}, storedIDs(t, direct), "fast writer's item must survive")
}

func TestCollection_GuardedCreate(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newNotices(t, WithGuard())
	_, err := c.Append(ctx, Item{"text": "first"})
	require.NoError(t, err)
	_, err = c.Append(ctx, Item{"text": "second"})
	require.NoError(t, err)

	items, rev, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(2), rev)
}

type notice struct {
	ID     int64  `json:"id"`
	Text   string `json:"text"`
	Active bool   `json:"active"`
}

func TestDecodeAndToItem(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newNotices(t)

	it, err := ToItem(notice{Text: "typed", Active: true})
	require.NoError(t, err)
	delete(it, IDField) // zero id means "assign one"
	_, err = c.Append(ctx, it)
	require.NoError(t, err)

	items, _, err := c.Read(ctx)
	require.NoError(t, err)
	notices, err := Decode[notice](items)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, notice{ID: fixedNow.UnixMilli(), Text: "typed", Active: true}, notices[0])

	_, err = ToItem([]int{1})
	assert.Error(t, err)
}
