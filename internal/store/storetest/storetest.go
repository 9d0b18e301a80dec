// Package storetest holds behavioral checks shared by every store.Store backend.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises a backend against the repository contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("CreateThenGet", func(t *testing.T) { testCreateThenGet(t, newStore(t)) })
	t.Run("DuplicateKey", func(t *testing.T) { testDuplicateKey(t, newStore(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newStore(t)) })
	t.Run("ReplacePreservesIdentity", func(t *testing.T) { testReplacePreservesIdentity(t, newStore(t)) })
	t.Run("ReplaceMissing", func(t *testing.T) { testReplaceMissing(t, newStore(t)) })
	t.Run("ReplaceStaleRevision", func(t *testing.T) { testReplaceStaleRevision(t, newStore(t)) })
	t.Run("DeleteByKeyAndID", func(t *testing.T) { testDeleteByKeyAndID(t, newStore(t)) })
	t.Run("DeleteIsNotIdempotent", func(t *testing.T) { testDeleteNotIdempotent(t, newStore(t)) })
	t.Run("ListFilterAndSort", func(t *testing.T) { testListFilterAndSort(t, newStore(t)) })
	t.Run("TransactionRollback", func(t *testing.T) { testTransactionRollback(t, newStore(t)) })
}

func newEntry(key string) *model.Entry {
	return &model.Entry{
		Key:      key,
		Type:     model.TypeJSON,
		Content:  `[{"id":1,"title":"first"}]`,
		Title:    "Title " + key,
		Section:  "landing",
		Metadata: json.RawMessage(`{"source":"test"}`),
		Order:    1,
	}
}

func mustCreate(t *testing.T, s store.Store, e *model.Entry) {
	t.Helper()
	if err := s.CreateEntry(context.Background(), e); err != nil {
		t.Fatalf("CreateEntry(%q): %v", e.Key, err)
	}
}

func testCreateThenGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	e := newEntry("landing.notices")
	mustCreate(t, s, e)

	if e.ID == "" || e.Revision != 1 || e.CreatedAt.IsZero() {
		t.Fatalf("store-assigned fields not set: %+v", e)
	}
	if !e.UpdatedAt.Equal(e.CreatedAt) {
		t.Errorf("updated_at %v != created_at %v on create", e.UpdatedAt, e.CreatedAt)
	}

	got, err := s.GetEntry(ctx, "landing.notices")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if !got.SameContent(e) {
		t.Errorf("GetEntry = %+v, want %+v", got, e)
	}
	if got.ID != e.ID || got.Revision != 1 {
		t.Errorf("id/revision = %q/%d, want %q/1", got.ID, got.Revision, e.ID)
	}

	byID, err := s.GetEntryByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntryByID: %v", err)
	}
	if byID.Key != e.Key {
		t.Errorf("GetEntryByID key = %q, want %q", byID.Key, e.Key)
	}
}

func testDuplicateKey(t *testing.T, s store.Store) {
	mustCreate(t, s, newEntry("dup"))
	err := s.CreateEntry(context.Background(), newEntry("dup"))
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func testGetMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.GetEntry(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetEntry: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetEntryByID(ctx, "ce-000000000000"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetEntryByID: expected ErrNotFound, got %v", err)
	}
}

func testReplacePreservesIdentity(t *testing.T, s store.Store) {
	ctx := context.Background()
	orig := newEntry("about")
	mustCreate(t, s, orig)
	time.Sleep(5 * time.Millisecond)

	next := &model.Entry{Key: "about", Type: model.TypeText, Content: "hello", Title: "About"}
	if err := s.ReplaceEntry(ctx, next, 0); err != nil {
		t.Fatalf("ReplaceEntry: %v", err)
	}

	got, err := s.GetEntry(ctx, "about")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.ID != orig.ID {
		t.Errorf("id changed: %q -> %q", orig.ID, got.ID)
	}
	if !got.CreatedAt.Equal(orig.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", orig.CreatedAt, got.CreatedAt)
	}
	if !got.UpdatedAt.After(orig.UpdatedAt) {
		t.Errorf("updated_at not refreshed: %v -> %v", orig.UpdatedAt, got.UpdatedAt)
	}
	if got.Revision != 2 {
		t.Errorf("revision = %d, want 2", got.Revision)
	}
	// Every mutable field is overwritten, including ones the caller left at zero.
	if got.Section != "" || got.Order != 0 || len(got.Metadata) != 0 || got.Type != model.TypeText {
		t.Errorf("fields not fully replaced: %+v", got)
	}
}

func testReplaceMissing(t *testing.T, s store.Store) {
	err := s.ReplaceEntry(context.Background(), newEntry("ghost"), 0)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testReplaceStaleRevision(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, newEntry("guarded"))

	first := newEntry("guarded")
	first.Content = "[]"
	if err := s.ReplaceEntry(ctx, first, 1); err != nil {
		t.Fatalf("guarded replace at current revision: %v", err)
	}

	second := newEntry("guarded")
	err := s.ReplaceEntry(ctx, second, 1)
	if !errors.Is(err, store.ErrStaleRevision) {
		t.Fatalf("expected ErrStaleRevision, got %v", err)
	}

	got, err := s.GetEntry(ctx, "guarded")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Content != "[]" || got.Revision != 2 {
		t.Errorf("stale write was applied: %+v", got)
	}
}

func testDeleteByKeyAndID(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, b := newEntry("a"), newEntry("b")
	mustCreate(t, s, a)
	mustCreate(t, s, b)

	if err := s.DeleteEntry(ctx, "a"); err != nil {
		t.Fatalf("DeleteEntry by key: %v", err)
	}
	if err := s.DeleteEntry(ctx, b.ID); err != nil {
		t.Fatalf("DeleteEntry by id: %v", err)
	}
	for _, key := range []string{"a", "b"} {
		if _, err := s.GetEntry(ctx, key); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("GetEntry(%q) after delete: expected ErrNotFound, got %v", key, err)
		}
	}
}

func testDeleteNotIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, newEntry("once"))
	if err := s.DeleteEntry(ctx, "once"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := s.DeleteEntry(ctx, "once"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func testListFilterAndSort(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, spec := range []struct {
		key, section, subsection string
		typ                      model.ContentType
		order                    int
	}{
		{"hero", "landing", "top", model.TypeJSON, 2},
		{"notices", "landing", "top", model.TypeJSON, 1},
		{"footer", "landing", "bottom", model.TypeText, 3},
		{"contact", "about", "", model.TypeText, 0},
	} {
		e := newEntry(spec.key)
		e.Section, e.Subsection, e.Type, e.Order = spec.section, spec.subsection, spec.typ, spec.order
		mustCreate(t, s, e)
	}

	all, err := s.ListEntries(ctx, model.EntryFilter{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if got := joinKeys(all); got != "contact,notices,hero,footer" {
		t.Errorf("default order = %s", got)
	}

	landing, err := s.ListEntries(ctx, model.EntryFilter{Section: "landing", Subsection: "top"})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if got := joinKeys(landing); got != "notices,hero" {
		t.Errorf("section filter = %s", got)
	}

	texts, err := s.ListEntries(ctx, model.EntryFilter{Type: model.TypeText, Sort: "-key"})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if got := joinKeys(texts); got != "footer,contact" {
		t.Errorf("type filter sorted by -key = %s", got)
	}
}

func testTransactionRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateEntry(ctx, newEntry("tx")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if _, err := s.GetEntry(ctx, "tx"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rolled back entry visible: %v", err)
	}

	err = s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.CreateEntry(ctx, newEntry("tx"))
	})
	if err != nil {
		t.Fatalf("committed transaction: %v", err)
	}
	if _, err := s.GetEntry(ctx, "tx"); err != nil {
		t.Errorf("committed entry missing: %v", err)
	}
}

func joinKeys(entries []*model.Entry) string {
	var s string
	for i, e := range entries {
		if i > 0 {
			s += ","
		}
		s += e.Key
	}
	return s
}
