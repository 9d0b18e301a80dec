package store

import (
	"errors"
	"testing"
	"time"

	"github.com/alfredjeanlab/contentstore/internal/idgen"
	"github.com/alfredjeanlab/contentstore/internal/model"
)

func TestUnavailable(t *testing.T) {
	if Unavailable("get entry", nil) != nil {
		t.Fatal("Unavailable(nil) should be nil")
	}
	cause := errors.New("connection refused")
	err := Unavailable("get entry", cause)
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
}

func TestPrepareCreate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := &model.Entry{Key: "k", Type: model.TypeText}
	if err := PrepareCreate(e, now); err != nil {
		t.Fatalf("PrepareCreate: %v", err)
	}
	if !idgen.LooksLikeEntryID(e.ID) {
		t.Errorf("expected generated id, got %q", e.ID)
	}
	if !e.CreatedAt.Equal(now) || !e.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v / %v, want %v", e.CreatedAt, e.UpdatedAt, now)
	}
	if e.Revision != 1 {
		t.Errorf("revision = %d, want 1", e.Revision)
	}
}

func TestPrepareCreate_KeepsSuppliedFields(t *testing.T) {
	created := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	e := &model.Entry{ID: "ce-imported0001", Key: "k", CreatedAt: created, Revision: 4}
	if err := PrepareCreate(e, time.Now()); err != nil {
		t.Fatalf("PrepareCreate: %v", err)
	}
	if e.ID != "ce-imported0001" || !e.CreatedAt.Equal(created) || e.Revision != 4 {
		t.Errorf("supplied fields overwritten: %+v", e)
	}
	if !e.UpdatedAt.Equal(created) {
		t.Errorf("updated_at = %v, want %v", e.UpdatedAt, created)
	}
}

func TestPrepareReplace(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	current := &model.Entry{ID: "ce-1", Key: "k", CreatedAt: created, UpdatedAt: created, Revision: 3}
	e := &model.Entry{Key: "k", Content: "new"}

	// A clock behind created_at must not produce updated_at < created_at.
	PrepareReplace(e, current, created.Add(-time.Hour))
	if e.ID != "ce-1" || !e.CreatedAt.Equal(created) {
		t.Errorf("immutable fields not preserved: %+v", e)
	}
	if e.UpdatedAt.Before(e.CreatedAt) {
		t.Errorf("updated_at %v before created_at %v", e.UpdatedAt, e.CreatedAt)
	}
	if e.Revision != 4 {
		t.Errorf("revision = %d, want 4", e.Revision)
	}
}

func TestCheckRevision(t *testing.T) {
	for _, tc := range []struct {
		expected, actual int64
		stale            bool
	}{
		{0, 5, false},
		{5, 5, false},
		{4, 5, true},
		{6, 5, true},
	} {
		err := CheckRevision(tc.expected, tc.actual)
		if got := errors.Is(err, ErrStaleRevision); got != tc.stale {
			t.Errorf("CheckRevision(%d, %d) stale = %v, want %v", tc.expected, tc.actual, got, tc.stale)
		}
	}
}
