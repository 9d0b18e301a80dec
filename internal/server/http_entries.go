package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/contentstore/internal/codec"
	"github.com/alfredjeanlab/contentstore/internal/content"
	"github.com/alfredjeanlab/contentstore/internal/model"
)

// handleListEntries handles GET /v1/entries.
func (s *ContentServer) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.EntryFilter{
		Section:    q.Get("section"),
		Subsection: q.Get("subsection"),
		Type:       model.ContentType(q.Get("type")),
		Sort:       q.Get("sort"),
	}

	entries, err := s.coord.List(r.Context(), filter)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*model.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleGetEntry handles GET /v1/entries/{key...}. With ?decode=auto|list|object
// the body is the decoded payload instead of the stored entry.
func (s *ContentServer) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	shape := q.Get("decode")
	if q.Has("decode") && !validShape(shape) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown decode shape %q (want auto, list or object)", shape))
		return
	}

	e, err := s.coord.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if q.Has("decode") {
		s.writeDecoded(w, e, shape)
		return
	}
	writeEntry(w, http.StatusOK, e)
}

// handleCreateEntry handles POST /v1/entries. The key travels in the body.
func (s *ContentServer) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req content.UpsertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.upsert(w, r, req)
}

// handlePutEntry handles PUT /v1/entries/{key...}.
func (s *ContentServer) handlePutEntry(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var req content.UpsertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key != "" && req.Key != key {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("body key %q does not match path key %q", req.Key, key))
		return
	}
	req.Key = key
	s.upsert(w, r, req)
}

// upsert runs createOrUpdate, guarded when the request carries If-Match.
func (s *ContentServer) upsert(w http.ResponseWriter, r *http.Request, req content.UpsertRequest) {
	var (
		e   *model.Entry
		err error
	)
	if v := r.Header.Get("If-Match"); v != "" {
		rev, perr := parseRevision(v)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		e, err = s.coord.CreateOrUpdateIfRevision(r.Context(), req, rev)
	} else {
		e, err = s.coord.CreateOrUpdate(r.Context(), req)
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	code := http.StatusOK
	if e.Revision == 1 {
		code = http.StatusCreated
	}
	writeEntry(w, code, e)
}

// handleDeleteEntry handles DELETE /v1/entries/{idOrKey...}.
func (s *ContentServer) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Delete(r.Context(), r.PathValue("idOrKey")); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodedResponse is the body of GET /v1/entries/{key...}?decode=.
type decodedResponse struct {
	Key      string            `json:"key"`
	Type     model.ContentType `json:"type"`
	Value    any               `json:"value"`
	Fallback codec.Fallback    `json:"fallback,omitempty"`
	Cause    string            `json:"cause,omitempty"`
}

func validShape(shape string) bool {
	switch shape {
	case "", "auto", "list", "object":
		return true
	}
	return false
}

func (s *ContentServer) writeDecoded(w http.ResponseWriter, e *model.Entry, shape string) {
	dec := s.coord.Decoder()
	resp := decodedResponse{Key: e.Key, Type: e.Type}
	var res codec.Result
	switch shape {
	case "list":
		resp.Value, res = dec.List(e)
	case "object":
		resp.Value, res = dec.Object(e)
	default:
		var p codec.Payload
		p, res = dec.Decode(e)
		if text, ok := p.Text(); ok {
			resp.Value = text
		} else {
			resp.Value, _ = p.Value()
		}
	}

	resp.Fallback = res.Fallback
	if res.Cause != nil {
		resp.Cause = res.Cause.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeEntry writes e with its revision as the ETag.
func writeEntry(w http.ResponseWriter, code int, e *model.Entry) {
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(e.Revision, 10)))
	writeJSON(w, code, e)
}

// parseRevision reads an If-Match value such as 3, "3" or W/"3".
func parseRevision(v string) (int64, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "W/")
	v = strings.Trim(v, `"`)
	rev, err := strconv.ParseInt(v, 10, 64)
	if err != nil || rev < 0 {
		return 0, fmt.Errorf("If-Match must be a revision number, got %q", v)
	}
	return rev, nil
}
