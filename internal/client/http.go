package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/contentstore/internal/model"
)

// HTTPClient implements ContentClient using the HTTP/JSON API. It also covers
// the collection and decode endpoints, which have no gRPC counterpart.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Entries ---

func (c *HTTPClient) GetEntry(ctx context.Context, key string) (*model.Entry, error) {
	var e model.Entry
	if err := c.doJSON(ctx, http.MethodGet, "/v1/entries/"+escapeKey(key), nil, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *HTTPClient) PutEntry(ctx context.Context, req *PutEntryRequest) (*model.Entry, error) {
	var header http.Header
	if req.ExpectedRevision != nil {
		header = http.Header{"If-Match": {strconv.FormatInt(*req.ExpectedRevision, 10)}}
	}
	var e model.Entry
	if err := c.doJSON(ctx, http.MethodPut, "/v1/entries/"+escapeKey(req.Key), req.UpsertRequest, header, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *HTTPClient) DeleteEntry(ctx context.Context, idOrKey string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/entries/"+escapeKey(idOrKey), nil, nil, nil)
}

func (c *HTTPClient) ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	q := url.Values{}
	if filter.Section != "" {
		q.Set("section", filter.Section)
	}
	if filter.Subsection != "" {
		q.Set("subsection", filter.Subsection)
	}
	if filter.Type != "" {
		q.Set("type", filter.Type.String())
	}
	if filter.Sort != "" {
		q.Set("sort", filter.Sort)
	}

	path := "/v1/entries"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp struct {
		Entries []*model.Entry `json:"entries"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Decoded is the decoded payload of an entry.
type Decoded struct {
	Key      string            `json:"key"`
	Type     model.ContentType `json:"type"`
	Value    any               `json:"value"`
	Fallback string            `json:"fallback,omitempty"`
	Cause    string            `json:"cause,omitempty"`
}

// GetDecoded returns the entry's content decoded by the server. shape is ""
// for the declared type, or "list" / "object".
func (c *HTTPClient) GetDecoded(ctx context.Context, key, shape string) (*Decoded, error) {
	if shape == "" {
		shape = "auto"
	}
	path := "/v1/entries/" + url.PathEscape(key) + "?decode=" + url.QueryEscape(shape)
	var d Decoded
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// --- Collections ---

// CollectionOptions are sent with every collection call.
type CollectionOptions struct {
	Title      string
	Section    string
	Subsection string
	Guard      bool
}

func (o CollectionOptions) query(extra url.Values) string {
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	if o.Title != "" {
		q.Set("title", o.Title)
	}
	if o.Section != "" || o.Subsection != "" {
		q.Set("section", o.Section)
		q.Set("subsection", o.Subsection)
	}
	if o.Guard {
		q.Set("guard", "true")
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// Items is a collection as returned by the server.
type Items struct {
	Key      string           `json:"key"`
	Revision int64            `json:"revision"`
	Items    []map[string]any `json:"items"`
}

func itemsPath(key string) string {
	return "/v1/collections/" + url.PathEscape(key) + "/items"
}

func itemPath(key, id string) string {
	return itemsPath(key) + "/" + url.PathEscape(id)
}

func (c *HTTPClient) ListItems(ctx context.Context, key string) (*Items, error) {
	var resp Items
	if err := c.doJSON(ctx, http.MethodGet, itemsPath(key), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) AppendItem(ctx context.Context, key string, item map[string]any, opts CollectionOptions) (map[string]any, error) {
	var resp struct {
		Item map[string]any `json:"item"`
	}
	if err := c.doJSON(ctx, http.MethodPost, itemsPath(key)+opts.query(nil), item, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Item, nil
}

func (c *HTTPClient) ReplaceItem(ctx context.Context, key, id string, item map[string]any, opts CollectionOptions) ([]map[string]any, error) {
	return c.doItems(ctx, http.MethodPut, itemPath(key, id)+opts.query(nil), item)
}

func (c *HTTPClient) RemoveItem(ctx context.Context, key, id string, opts CollectionOptions) ([]map[string]any, error) {
	return c.doItems(ctx, http.MethodDelete, itemPath(key, id)+opts.query(nil), nil)
}

func (c *HTTPClient) ToggleItem(ctx context.Context, key, id, field string, opts CollectionOptions) ([]map[string]any, error) {
	return c.doItems(ctx, http.MethodPost, itemPath(key, id)+"/toggle"+opts.query(url.Values{"field": {field}}), nil)
}

func (c *HTTPClient) doItems(ctx context.Context, method, path string, body any) ([]map[string]any, error) {
	var resp struct {
		Items []map[string]any `json:"items"`
	}
	if err := c.doJSON(ctx, method, path, body, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- Internal ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// escapeKey escapes each path segment of a key so that slashes in keys stay
// path separators, which the {key...} routes accept.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, header http.Header, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
