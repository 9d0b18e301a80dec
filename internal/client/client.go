// Package client provides a transport-agnostic interface for the content store
// service, with HTTP/JSON and gRPC implementations.
package client

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/contentstore/internal/content"
	"github.com/alfredjeanlab/contentstore/internal/model"
)

// ContentClient is the interface the cstore CLI uses to talk to a server.
// It is implemented by HTTPClient (default) and GRPCClient.
type ContentClient interface {
	GetEntry(ctx context.Context, key string) (*model.Entry, error)
	PutEntry(ctx context.Context, req *PutEntryRequest) (*model.Entry, error)
	DeleteEntry(ctx context.Context, idOrKey string) error
	ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error)
	Health(ctx context.Context) (string, error)
	Close() error
}

// PutEntryRequest is a create-or-update. ExpectedRevision, when set, makes the
// write conditional: 0 only creates, any other value only replaces an entry
// still at that revision.
type PutEntryRequest struct {
	content.UpsertRequest
	ExpectedRevision *int64 `json:"expected_revision,omitempty"`
}

// IsNotFound reports whether err is a not-found answer from either transport.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return status.Code(err) == codes.NotFound
}

// IsConflict reports whether err is a duplicate key or stale revision answer.
func IsConflict(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusConflict
	}
	switch status.Code(err) {
	case codes.AlreadyExists, codes.FailedPrecondition:
		return true
	}
	return false
}
