package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alfredjeanlab/contentstore/internal/content"
	"github.com/alfredjeanlab/contentstore/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	rawPath     string // URL-encoded path (for testing PathEscape)
	requestURI  string
	query       string
	body        string
	contentType string
	ifMatch     string
	auth        string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.rawPath = r.URL.RawPath
	h.requestURI = r.RequestURI
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.ifMatch = r.Header.Get("If-Match")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(h http.Handler) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	c := NewHTTPClient(srv.URL, "")
	return c, srv
}

const entryJSON = `{
	"id": "ce-abc",
	"key": "landing.hero",
	"type": "text",
	"content": "Welcome",
	"title": "Hero",
	"section": "landing",
	"is_published": true,
	"order": 1,
	"revision": 3,
	"created_at": "2026-01-15T10:00:00Z",
	"updated_at": "2026-01-16T10:00:00Z"
}`

// --- Entries ---

func TestHTTPClient_GetEntry(t *testing.T) {
	h := &testHandler{responseBody: entryJSON}
	c, srv := newTestClient(h)
	defer srv.Close()

	e, err := c.GetEntry(context.Background(), "landing.hero")
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if h.method != http.MethodGet || h.path != "/v1/entries/landing.hero" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if e.ID != "ce-abc" || e.Revision != 3 || !e.IsPublished || e.UpdatedAt.Day() != 16 {
		t.Errorf("entry = %+v", e)
	}
}

func TestHTTPClient_GetEntry_KeyEscaping(t *testing.T) {
	h := &testHandler{responseBody: entryJSON}
	c, srv := newTestClient(h)
	defer srv.Close()

	if _, err := c.GetEntry(context.Background(), "docs/a b"); err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if h.path != "/v1/entries/docs/a b" {
		t.Errorf("path = %q", h.path)
	}
	if h.rawPath != "" && h.rawPath != "/v1/entries/docs/a%20b" {
		t.Errorf("raw path = %q", h.rawPath)
	}
}

func TestHTTPClient_PutEntry(t *testing.T) {
	h := &testHandler{responseBody: entryJSON}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.PutEntry(context.Background(), &PutEntryRequest{UpsertRequest: content.UpsertRequest{
		Key:      "landing.hero",
		Type:     model.TypeText,
		Content:  "Welcome",
		Metadata: json.RawMessage(`{"draft":true}`),
	}})
	if err != nil {
		t.Fatalf("PutEntry() error = %v", err)
	}
	if h.method != http.MethodPut || h.path != "/v1/entries/landing.hero" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("content-type = %q, want application/json", h.contentType)
	}
	if h.ifMatch != "" {
		t.Errorf("unconditional put sent If-Match %q", h.ifMatch)
	}

	var reqBody map[string]any
	if err := json.Unmarshal([]byte(h.body), &reqBody); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}
	if reqBody["content"] != "Welcome" || reqBody["type"] != "text" {
		t.Errorf("body = %v", reqBody)
	}
	if md, ok := reqBody["metadata"].(map[string]any); !ok || md["draft"] != true {
		t.Errorf("metadata = %v", reqBody["metadata"])
	}
	if _, ok := reqBody["expected_revision"]; ok {
		t.Error("expected_revision travels as If-Match, not in the body")
	}
}

func TestHTTPClient_PutEntry_ExpectedRevision(t *testing.T) {
	h := &testHandler{responseBody: entryJSON}
	c, srv := newTestClient(h)
	defer srv.Close()

	rev := int64(0)
	req := &PutEntryRequest{UpsertRequest: content.UpsertRequest{Key: "k", Type: model.TypeText}, ExpectedRevision: &rev}
	if _, err := c.PutEntry(context.Background(), req); err != nil {
		t.Fatalf("PutEntry() error = %v", err)
	}
	if h.ifMatch != "0" {
		t.Errorf("If-Match = %q, want 0", h.ifMatch)
	}
}

func TestHTTPClient_DeleteEntry(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c, srv := newTestClient(h)
	defer srv.Close()

	if err := c.DeleteEntry(context.Background(), "ce-abc"); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}
	if h.method != http.MethodDelete || h.path != "/v1/entries/ce-abc" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
}

func TestHTTPClient_ListEntries(t *testing.T) {
	h := &testHandler{responseBody: `{"entries": [` + entryJSON + `]}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	entries, err := c.ListEntries(context.Background(), model.EntryFilter{
		Section: "landing",
		Type:    model.TypeJSON,
		Sort:    "-updated_at",
	})
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "landing.hero" {
		t.Errorf("entries = %+v", entries)
	}
	if h.query != "section=landing&sort=-updated_at&type=json" {
		t.Errorf("query = %q", h.query)
	}
}

func TestHTTPClient_GetDecoded(t *testing.T) {
	h := &testHandler{responseBody: `{"key":"faq","type":"json","value":["a","b"],"fallback":"lines"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	d, err := c.GetDecoded(context.Background(), "faq", "list")
	if err != nil {
		t.Fatalf("GetDecoded() error = %v", err)
	}
	if h.path != "/v1/entries/faq" || h.query != "decode=list" {
		t.Errorf("request = %s?%s", h.path, h.query)
	}
	if d.Fallback != "lines" || len(d.Value.([]any)) != 2 {
		t.Errorf("decoded = %+v", d)
	}
}

// --- Collections ---

func TestHTTPClient_AppendItem(t *testing.T) {
	h := &testHandler{statusCode: http.StatusCreated, responseBody: `{"item":{"id":1700000000000,"text":"hi"}}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	item, err := c.AppendItem(context.Background(), "landing.notices", map[string]any{"text": "hi"},
		CollectionOptions{Title: "Notices", Guard: true})
	if err != nil {
		t.Fatalf("AppendItem() error = %v", err)
	}
	if h.method != http.MethodPost || h.path != "/v1/collections/landing.notices/items" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if h.query != "guard=true&title=Notices" {
		t.Errorf("query = %q", h.query)
	}
	if item["text"] != "hi" {
		t.Errorf("item = %v", item)
	}
}

func TestHTTPClient_ItemEdits(t *testing.T) {
	h := &testHandler{responseBody: `{"items":[{"id":1,"done":true}]}`}
	c, srv := newTestClient(h)
	defer srv.Close()
	ctx := context.Background()

	for _, tc := range []struct {
		name   string
		call   func() ([]map[string]any, error)
		method string
		path   string
		query  string
	}{
		{"Replace", func() ([]map[string]any, error) {
			return c.ReplaceItem(ctx, "faq", "1", map[string]any{"q": "x"}, CollectionOptions{})
		}, http.MethodPut, "/v1/collections/faq/items/1", ""},
		{"Remove", func() ([]map[string]any, error) {
			return c.RemoveItem(ctx, "faq", "1", CollectionOptions{})
		}, http.MethodDelete, "/v1/collections/faq/items/1", ""},
		{"Toggle", func() ([]map[string]any, error) {
			return c.ToggleItem(ctx, "faq", "1", "done", CollectionOptions{Section: "landing"})
		}, http.MethodPost, "/v1/collections/faq/items/1/toggle", "field=done&section=landing&subsection="},
	} {
		t.Run(tc.name, func(t *testing.T) {
			items, err := tc.call()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if h.method != tc.method || h.path != tc.path || h.query != tc.query {
				t.Errorf("request = %s %s?%s", h.method, h.path, h.query)
			}
			if len(items) != 1 || items[0]["done"] != true {
				t.Errorf("items = %v", items)
			}
		})
	}
}

func TestHTTPClient_Health(t *testing.T) {
	h := &testHandler{responseBody: `{"status":"ok"}`}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "secret")
	got, err := c.Health(context.Background())
	if err != nil || got != "ok" {
		t.Fatalf("Health() = %q, %v", got, err)
	}
	if h.path != "/v1/health" {
		t.Errorf("path = %q (trailing slash not trimmed?)", h.path)
	}
	if h.auth != "Bearer secret" {
		t.Errorf("Authorization = %q", h.auth)
	}
}

// --- Errors ---

func TestHTTPClient_Error_JSONBody(t *testing.T) {
	h := &testHandler{
		statusCode:   http.StatusConflict,
		responseBody: `{"error": "stale revision: \"k\" no longer exists"}`,
	}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.PutEntry(context.Background(), &PutEntryRequest{UpsertRequest: content.UpsertRequest{Key: "k"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != `stale revision: "k" no longer exists` {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if !IsConflict(err) || IsNotFound(err) {
		t.Error("409 should be a conflict and not a not-found")
	}
}

func TestHTTPClient_Error_NonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal server error"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "")
	_, err := c.GetEntry(context.Background(), "k")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError || apiErr.Message != "internal server error" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestHTTPClient_Error_404(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNotFound, responseBody: `{"error": "entry not found"}`}
	c, srv := newTestClient(h)
	defer srv.Close()

	_, err := c.GetEntry(context.Background(), "nonexistent")
	if !IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
