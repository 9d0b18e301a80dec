package server

import (
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/contentstore/internal/collection"
)

// collectionFor builds the collection named by the {key} path value.
// Optional query parameters: title, section, subsection, guard.
func (s *ContentServer) collectionFor(r *http.Request) *collection.Collection {
	q := r.URL.Query()
	var opts []collection.Option
	if q.Has("title") {
		opts = append(opts, collection.WithTitle(q.Get("title")))
	}
	if q.Has("section") || q.Has("subsection") {
		opts = append(opts, collection.WithSection(q.Get("section"), q.Get("subsection")))
	}
	if guard, _ := strconv.ParseBool(q.Get("guard")); guard {
		opts = append(opts, collection.WithGuard())
	}
	return collection.New(s.coord, r.PathValue("key"), opts...)
}

// handleListItems handles GET /v1/collections/{key}/items.
func (s *ContentServer) handleListItems(w http.ResponseWriter, r *http.Request) {
	c := s.collectionFor(r)
	items, rev, err := c.Read(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"key":      c.Key(),
		"revision": rev,
		"items":    items,
	})
}

// handleAppendItem handles POST /v1/collections/{key}/items.
func (s *ContentServer) handleAppendItem(w http.ResponseWriter, r *http.Request) {
	var item collection.Item
	if !decodeBody(w, r, &item) {
		return
	}
	if item == nil {
		writeError(w, http.StatusBadRequest, "item must be a JSON object")
		return
	}

	added, err := s.collectionFor(r).Append(r.Context(), item)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": added})
}

// handleReplaceItem handles PUT /v1/collections/{key}/items/{id}.
// An unknown id changes nothing and returns the items as read.
func (s *ContentServer) handleReplaceItem(w http.ResponseWriter, r *http.Request) {
	var item collection.Item
	if !decodeBody(w, r, &item) {
		return
	}
	if item == nil {
		writeError(w, http.StatusBadRequest, "item must be a JSON object")
		return
	}

	items, err := s.collectionFor(r).Replace(r.Context(), r.PathValue("id"), item)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleRemoveItem handles DELETE /v1/collections/{key}/items/{id}.
func (s *ContentServer) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	items, err := s.collectionFor(r).Remove(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleToggleItem handles POST /v1/collections/{key}/items/{id}/toggle?field=.
func (s *ContentServer) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	if field == "" {
		writeError(w, http.StatusBadRequest, "field is required")
		return
	}

	items, err := s.collectionFor(r).Toggle(r.Context(), r.PathValue("id"), field)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
