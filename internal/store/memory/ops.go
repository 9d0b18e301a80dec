package memory

import (
	"time"

	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

// Stored entries are never mutated in place; every write installs a fresh
// clone, so transaction snapshots can share pointers with the live map.

func getEntry(m map[string]*model.Entry, key string) (*model.Entry, error) {
	e, ok := m[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e.Clone(), nil
}

func getEntryByID(m map[string]*model.Entry, id string) (*model.Entry, error) {
	for _, e := range m {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

func listEntries(m map[string]*model.Entry, filter model.EntryFilter) []*model.Entry {
	out := make([]*model.Entry, 0, len(m))
	for _, e := range m {
		if filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	store.SortEntries(out, filter.Sort)
	return out
}

func createEntry(m map[string]*model.Entry, e *model.Entry, now time.Time) error {
	if _, ok := m[e.Key]; ok {
		return store.ErrDuplicateKey
	}
	if err := store.PrepareCreate(e, now); err != nil {
		return err
	}
	m[e.Key] = e.Clone()
	return nil
}

func replaceEntry(m map[string]*model.Entry, e *model.Entry, expectedRevision int64, now time.Time) error {
	current, ok := m[e.Key]
	if !ok {
		return store.ErrNotFound
	}
	if err := store.CheckRevision(expectedRevision, current.Revision); err != nil {
		return err
	}
	store.PrepareReplace(e, current, now)
	m[e.Key] = e.Clone()
	return nil
}

func deleteEntry(m map[string]*model.Entry, idOrKey string) error {
	if _, ok := m[idOrKey]; ok {
		delete(m, idOrKey)
		return nil
	}
	for k, e := range m {
		if e.ID == idOrKey {
			delete(m, k)
			return nil
		}
	}
	return store.ErrNotFound
}
