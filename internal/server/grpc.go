package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/contentstore/internal/content"
	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/rpc"
)

// healthMethod is exempt from AuthInterceptor.
var healthMethod = rpc.FullMethod(rpc.MethodHealth)

var _ rpc.ContentStoreServer = (*ContentServer)(nil)

// NewGRPCServer creates a gRPC server with standard interceptors,
// registers the ContentStore service, reflection, and returns the server ready to serve.
func NewGRPCServer(cs *ContentServer, authToken string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			AuthInterceptor(authToken),
		),
	)

	rpc.RegisterContentStoreServer(srv, cs)
	reflection.Register(srv)

	return srv
}

// putEntryMessage is the Struct shape accepted by PutEntry.
type putEntryMessage struct {
	content.UpsertRequest
	ExpectedRevision *int64 `json:"expected_revision,omitempty"`
}

// GetEntry returns the entry stored under the key.
func (s *ContentServer) GetEntry(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}
	e, err := s.coord.Get(ctx, req.GetValue())
	if err != nil {
		return nil, grpcError(err)
	}
	return entryToStruct(e)
}

// PutEntry creates or replaces an entry, conditionally when the request
// carries expected_revision.
func (s *ContentServer) PutEntry(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var msg putEntryMessage
	if err := rpc.FromStruct(req, &msg); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var (
		e   *model.Entry
		err error
	)
	if msg.ExpectedRevision != nil {
		e, err = s.coord.CreateOrUpdateIfRevision(ctx, msg.UpsertRequest, *msg.ExpectedRevision)
	} else {
		e, err = s.coord.CreateOrUpdate(ctx, msg.UpsertRequest)
	}
	if err != nil {
		return nil, grpcError(err)
	}
	return entryToStruct(e)
}

// DeleteEntry removes the entry whose key or id is given.
func (s *ContentServer) DeleteEntry(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.coord.Delete(ctx, req.GetValue()); err != nil {
		return nil, grpcError(err)
	}
	return &emptypb.Empty{}, nil
}

// ListEntries returns the entries matching the filter struct.
func (s *ContentServer) ListEntries(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var filter model.EntryFilter
	if err := rpc.FromStruct(req, &filter); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	entries, err := s.coord.List(ctx, filter)
	if err != nil {
		return nil, grpcError(err)
	}
	if entries == nil {
		entries = []*model.Entry{}
	}
	st, err := rpc.ToStruct(map[string]any{"entries": entries})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// Health returns the service health status.
func (s *ContentServer) Health(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.coord.Ping(ctx); err != nil {
		return nil, grpcError(err)
	}
	return structpb.NewStruct(map[string]any{"status": "ok"})
}

func entryToStruct(e *model.Entry) (*structpb.Struct, error) {
	st, err := rpc.ToStruct(e)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}
