package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/contentstore/internal/codec"
	"github.com/alfredjeanlab/contentstore/internal/events"
	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
	"github.com/alfredjeanlab/contentstore/internal/store/memory"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *memory.MemoryStore, *events.Recorder) {
	t.Helper()
	s := memory.New()
	rec := &events.Recorder{}
	return New(s, WithPublisher(rec)), s, rec
}

func noticesRequest(content string) UpsertRequest {
	return UpsertRequest{
		Key:        "landing.notices",
		Title:      "Notices",
		Type:       model.TypeJSON,
		Section:    "landing",
		Subsection: "notices",
		Content:    content,
	}
}

func TestCreateOrUpdate_CreateThenGet(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestCoordinator(t)

	created, err := c.CreateOrUpdate(ctx, noticesRequest(`[{"id":1,"text":"hello"}]`))
	if err != nil {
		t.Fatalf("CreateOrUpdate: %v", err)
	}
	if !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Errorf("created_at %v != updated_at %v on create", created.CreatedAt, created.UpdatedAt)
	}

	got, err := c.Get(ctx, "landing.notices")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Type != model.TypeJSON || got.Content != `[{"id":1,"text":"hello"}]` || got.Title != "Notices" {
		t.Errorf("Get returned %+v", got)
	}
	if topics := rec.Topics(); len(topics) != 1 || topics[0] != events.TopicEntryCreated {
		t.Errorf("events = %v, want [created]", topics)
	}
}

func TestCreateOrUpdate_Idempotent(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestCoordinator(t)
	req := noticesRequest(`[]`)

	first, err := c.CreateOrUpdate(ctx, req)
	if err != nil {
		t.Fatalf("first CreateOrUpdate: %v", err)
	}
	firstCopy := first.Clone()
	time.Sleep(2 * time.Millisecond)

	second, err := c.CreateOrUpdate(ctx, req)
	if err != nil {
		t.Fatalf("second CreateOrUpdate: %v", err)
	}

	if !second.SameContent(firstCopy) {
		t.Errorf("state diverged:\n first  %+v\n second %+v", firstCopy, second)
	}
	if second.ID != firstCopy.ID || !second.CreatedAt.Equal(firstCopy.CreatedAt) {
		t.Errorf("identity changed between upserts")
	}
	if !second.UpdatedAt.After(firstCopy.UpdatedAt) {
		t.Errorf("updated_at not refreshed: %v -> %v", firstCopy.UpdatedAt, second.UpdatedAt)
	}

	all, err := c.List(ctx, model.EntryFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected exactly one entry for the key, got %d", len(all))
	}
	if topics := rec.Topics(); len(topics) != 2 || topics[1] != events.TopicEntryUpdated {
		t.Errorf("events = %v, want [created updated]", topics)
	}
}

func TestCreateOrUpdate_OverwritesEveryField(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t)

	req := noticesRequest(`[]`)
	req.Metadata = json.RawMessage(`{"items":0}`)
	req.IsPublished = true
	req.Order = 7
	if _, err := c.CreateOrUpdate(ctx, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Omitted optional fields take their defaults rather than merging.
	got, err := c.CreateOrUpdate(ctx, UpsertRequest{Key: "landing.notices", Type: model.TypeText, Content: "plain"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Metadata != nil || got.IsPublished || got.Order != 0 || got.Section != "" || got.Title != "" {
		t.Errorf("fields not reset: %+v", got)
	}
	if got.Revision != 2 {
		t.Errorf("revision = %d, want 2", got.Revision)
	}
}

func TestCreateOrUpdate_NullMetadataIsAbsent(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	req := noticesRequest(`[]`)
	req.Metadata = json.RawMessage(`null`)
	got, err := c.CreateOrUpdate(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateOrUpdate: %v", err)
	}
	if got.Metadata != nil {
		t.Errorf("metadata = %s, want nil", got.Metadata)
	}
}

func TestCreateOrUpdate_InvalidInput(t *testing.T) {
	c, s, rec := newTestCoordinator(t)
	for _, req := range []UpsertRequest{
		{Type: model.TypeJSON, Content: "[]"},
		{Key: "k", Type: "xml"},
		{Key: "k", Type: model.TypeJSON, Metadata: json.RawMessage(`{`)},
	} {
		_, err := c.CreateOrUpdate(context.Background(), req)
		if !IsInputError(err) {
			t.Errorf("CreateOrUpdate(%+v): expected InputError, got %v", req, err)
		}
	}
	if all, _ := s.ListEntries(context.Background(), model.EntryFilter{}); len(all) != 0 {
		t.Errorf("invalid requests reached the store: %d entries", len(all))
	}
	if len(rec.Topics()) != 0 {
		t.Errorf("events published for invalid requests: %v", rec.Topics())
	}
}

func TestCreateOrUpdate_MalformedJSONIsStored(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	got, err := c.CreateOrUpdate(context.Background(), noticesRequest("a\nb"))
	if err != nil {
		t.Fatalf("CreateOrUpdate: %v", err)
	}
	if got.Content != "a\nb" {
		t.Errorf("content = %q", got.Content)
	}
}

// racingStore simulates another writer creating the key between the
// coordinator's lookup and its insert.
type racingStore struct {
	store.Store
	creates int
}

func (r *racingStore) GetEntry(ctx context.Context, key string) (*model.Entry, error) {
	_, err := r.Store.GetEntry(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		other := &model.Entry{Key: key, Type: model.TypeText, Content: "other writer"}
		if err := r.Store.CreateEntry(ctx, other); err != nil {
			return nil, err
		}
	}
	return nil, err
}

func (r *racingStore) CreateEntry(ctx context.Context, e *model.Entry) error {
	r.creates++
	return r.Store.CreateEntry(ctx, e)
}

func TestCreateOrUpdate_ConcurrentCreateIsOverwritten(t *testing.T) {
	ctx := context.Background()
	rs := &racingStore{Store: memory.New()}
	rec := &events.Recorder{}
	c := New(rs, WithPublisher(rec))

	got, err := c.CreateOrUpdate(ctx, noticesRequest(`[]`))
	if err != nil {
		t.Fatalf("CreateOrUpdate: %v", err)
	}
	if rs.creates != 1 {
		t.Errorf("CreateEntry called %d times, want 1", rs.creates)
	}
	if got.Revision != 2 {
		t.Errorf("revision = %d, want 2", got.Revision)
	}

	stored, _ := rs.Store.GetEntry(ctx, "landing.notices")
	if stored.Content != `[]` || stored.Title != "Notices" {
		t.Errorf("stored entry = %+v, want the later write", stored)
	}
	if topics := rec.Topics(); len(topics) != 1 || topics[0] != events.TopicEntryUpdated {
		t.Errorf("events = %v, want [updated]", topics)
	}
	if up := rec.Events()[0].Event.(events.EntryUpdated); up.PreviousRevision != 1 {
		t.Errorf("previous revision = %d, want 1", up.PreviousRevision)
	}
}

// barrierStore holds every lookup until n callers have seen the key missing.
type barrierStore struct {
	store.Store
	arrived sync.WaitGroup
}

func (b *barrierStore) GetEntry(ctx context.Context, key string) (*model.Entry, error) {
	e, err := b.Store.GetEntry(ctx, key)
	b.arrived.Done()
	b.arrived.Wait()
	return e, err
}

func TestCreateOrUpdate_ConcurrentFirstWrites(t *testing.T) {
	ctx := context.Background()
	bs := &barrierStore{Store: memory.New()}
	bs.arrived.Add(2)
	c := New(bs)

	contents := []string{`[{"id":1}]`, `[{"id":2}]`}
	errs := make([]error, len(contents))
	var wg sync.WaitGroup
	for i, content := range contents {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.CreateOrUpdate(ctx, noticesRequest(content))
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("writer %d: %v", i, err)
		}
	}
	got, err := bs.Store.GetEntry(ctx, "landing.notices")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Revision != 2 {
		t.Errorf("revision = %d, want 2", got.Revision)
	}
	if got.Content != contents[0] && got.Content != contents[1] {
		t.Errorf("content = %q, want one writer's payload in full", got.Content)
	}
}

func TestCreateOrUpdate_StorageUnavailable(t *testing.T) {
	c, s, _ := newTestCoordinator(t)
	_ = s.Close()

	_, err := c.CreateOrUpdate(context.Background(), noticesRequest(`[]`))
	if !errors.Is(err, store.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := c.Get(context.Background(), "landing.notices"); !errors.Is(err, store.ErrStorageUnavailable) {
		t.Fatalf("Get: expected ErrStorageUnavailable, got %v", err)
	}
}

func TestCreateOrUpdateIfRevision(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t)
	req := noticesRequest(`[]`)

	created, err := c.CreateOrUpdateIfRevision(ctx, req, 0)
	if err != nil {
		t.Fatalf("create-only: %v", err)
	}
	if created.Revision != 1 {
		t.Fatalf("revision = %d, want 1", created.Revision)
	}

	if _, err := c.CreateOrUpdateIfRevision(ctx, req, 0); !errors.Is(err, store.ErrStaleRevision) {
		t.Errorf("second create-only: expected ErrStaleRevision, got %v", err)
	}

	req.Content = `[{"id":1}]`
	updated, err := c.CreateOrUpdateIfRevision(ctx, req, 1)
	if err != nil {
		t.Fatalf("guarded update at current revision: %v", err)
	}
	if updated.Revision != 2 {
		t.Errorf("revision = %d, want 2", updated.Revision)
	}

	req.Content = `[{"id":2}]`
	if _, err := c.CreateOrUpdateIfRevision(ctx, req, 1); !errors.Is(err, store.ErrStaleRevision) {
		t.Errorf("update at old revision: expected ErrStaleRevision, got %v", err)
	}
	got, _ := c.Get(ctx, req.Key)
	if got.Content != `[{"id":1}]` {
		t.Errorf("stale write applied: %q", got.Content)
	}

	if err := c.Delete(ctx, req.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.CreateOrUpdateIfRevision(ctx, req, 2); !errors.Is(err, store.ErrStaleRevision) {
		t.Errorf("update of deleted entry: expected ErrStaleRevision, got %v", err)
	}

	if _, err := c.CreateOrUpdateIfRevision(ctx, req, -1); !IsInputError(err) {
		t.Errorf("negative revision: expected InputError, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c, _, rec := newTestCoordinator(t)

	a, _ := c.CreateOrUpdate(ctx, UpsertRequest{Key: "a", Type: model.TypeText})
	b, _ := c.CreateOrUpdate(ctx, UpsertRequest{Key: "b", Type: model.TypeText})

	if err := c.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete by key: %v", err)
	}
	if err := c.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete by id: %v", err)
	}
	if err := c.Delete(ctx, "a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("repeated delete: expected ErrNotFound, got %v", err)
	}

	var deleted []events.EntryDeleted
	for _, ev := range rec.Events() {
		if ev.Topic == events.TopicEntryDeleted {
			deleted = append(deleted, ev.Event.(events.EntryDeleted))
		}
	}
	if len(deleted) != 2 {
		t.Fatalf("got %d delete events, want 2", len(deleted))
	}
	if deleted[0].ID != a.ID || deleted[0].Key != "a" || deleted[1].Key != "b" {
		t.Errorf("delete events = %+v", deleted)
	}
}

func TestDelete_ThenUpsertRecreates(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCoordinator(t)
	req := noticesRequest(`[{"id":1}]`)

	first, _ := c.CreateOrUpdate(ctx, req)
	if err := c.Delete(ctx, req.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// An update racing behind a delete recreates the key as a new entry.
	second, err := c.CreateOrUpdate(ctx, req)
	if err != nil {
		t.Fatalf("CreateOrUpdate after delete: %v", err)
	}
	if second.ID == first.ID || second.Revision != 1 {
		t.Errorf("expected a fresh entry, got id=%q revision=%d", second.ID, second.Revision)
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, any) error { return errors.New("nats down") }
func (failingPublisher) Close() error { return nil }

func TestCreateOrUpdate_PublishFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	c := New(memory.New(), WithPublisher(failingPublisher{}), WithLogger(logger))

	if _, err := c.CreateOrUpdate(context.Background(), noticesRequest(`[]`)); err != nil {
		t.Fatalf("publish failure leaked into write: %v", err)
	}
	if !strings.Contains(buf.String(), "failed to publish event") {
		t.Errorf("expected warning in log, got %q", buf.String())
	}
}

func TestUpsertRequest_WithPayload(t *testing.T) {
	req, err := UpsertRequest{Key: "k"}.WithPayload(codec.JSON([]any{map[string]any{"id": 1}}))
	if err != nil {
		t.Fatalf("WithPayload: %v", err)
	}
	if req.Type != model.TypeJSON || req.Content != `[{"id":1}]` {
		t.Errorf("got type=%q content=%q", req.Type, req.Content)
	}
	if _, err := (UpsertRequest{Key: "k"}).WithPayload(codec.JSON(make(chan int))); !IsInputError(err) {
		t.Errorf("expected InputError for unencodable payload, got %v", err)
	}
}

func TestList_InvalidType(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	if _, err := c.List(context.Background(), model.EntryFilter{Type: "yaml"}); !IsInputError(err) {
		t.Errorf("expected InputError, got %v", err)
	}
}

func TestPing(t *testing.T) {
	c, s, _ := newTestCoordinator(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping on empty store: %v", err)
	}
	_ = s.Close()
	if err := c.Ping(context.Background()); !errors.Is(err, store.ErrStorageUnavailable) {
		t.Fatalf("Ping on closed store: expected ErrStorageUnavailable, got %v", err)
	}
}
