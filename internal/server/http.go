package server

import (
	"encoding/json"
	"net/http"
)

// maxBodyBytes caps request bodies. Entries hold page-sized content, not files.
const maxBodyBytes = 4 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *ContentServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/entries", s.handleListEntries)
	mux.HandleFunc("POST /v1/entries", s.handleCreateEntry)
	mux.HandleFunc("GET /v1/entries/{key...}", s.handleGetEntry)
	mux.HandleFunc("PUT /v1/entries/{key...}", s.handlePutEntry)
	mux.HandleFunc("DELETE /v1/entries/{idOrKey...}", s.handleDeleteEntry)
	mux.HandleFunc("GET /v1/collections/{key}/items", s.handleListItems)
	mux.HandleFunc("POST /v1/collections/{key}/items", s.handleAppendItem)
	mux.HandleFunc("PUT /v1/collections/{key}/items/{id}", s.handleReplaceItem)
	mux.HandleFunc("DELETE /v1/collections/{key}/items/{id}", s.handleRemoveItem)
	mux.HandleFunc("POST /v1/collections/{key}/items/{id}/toggle", s.handleToggleItem)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	return RequestLogger(Recoverer(AuthMiddleware(authToken, mux)))
}

// handleHealth handles GET /v1/health.
func (s *ContentServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decodeBody reads a JSON request body into v, keeping numbers as json.Number.
// It writes a 400 and returns false when the body is not valid JSON.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
