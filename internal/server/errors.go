package server

import (
	"errors"
	"log/slog"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/contentstore/internal/collection"
	"github.com/alfredjeanlab/contentstore/internal/content"
	"github.com/alfredjeanlab/contentstore/internal/store"
)

// errorKind classifies a coordinator or collection error for the transports.
type errorKind int

const (
	kindInternal errorKind = iota
	kindInput
	kindNotFound
	kindConflict
	kindStale
	kindPrecondition
	kindUnavailable
)

// classify maps err onto the kinds both transports report.
func classify(err error) errorKind {
	switch {
	case content.IsInputError(err), errors.Is(err, store.ErrInvalidValue), errors.Is(err, collection.ErrNotToggleable):
		return kindInput
	case errors.Is(err, store.ErrStaleRevision):
		return kindStale
	case errors.Is(err, collection.ErrNotRecords):
		return kindPrecondition
	case errors.Is(err, store.ErrNotFound):
		return kindNotFound
	case errors.Is(err, store.ErrDuplicateKey), errors.Is(err, collection.ErrDuplicateItemID):
		return kindConflict
	case errors.Is(err, store.ErrStorageUnavailable):
		return kindUnavailable
	}
	return kindInternal
}

// writeStoreError maps err to an HTTP status and writes it as a JSON error.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch classify(err) {
	case kindInput:
		code = http.StatusBadRequest
	case kindNotFound:
		code = http.StatusNotFound
	case kindConflict, kindStale, kindPrecondition:
		code = http.StatusConflict
	case kindUnavailable:
		code = http.StatusServiceUnavailable
	}
	if code >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
	}
	writeError(w, code, err.Error())
}

// grpcError converts err into a gRPC status error.
func grpcError(err error) error {
	code := codes.Internal
	switch classify(err) {
	case kindInput:
		code = codes.InvalidArgument
	case kindNotFound:
		code = codes.NotFound
	case kindConflict:
		code = codes.AlreadyExists
	case kindStale, kindPrecondition:
		code = codes.FailedPrecondition
	case kindUnavailable:
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}
