// Package rpc describes the contentstore.v1.ContentStore gRPC service.
//
// Messages are protobuf well-known types: keys travel as StringValue, entries
// and filters as Struct. Struct fields use the same snake_case names as the
// JSON API.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "contentstore.v1.ContentStore"

// Method names.
const (
	MethodGetEntry    = "GetEntry"
	MethodPutEntry    = "PutEntry"
	MethodDeleteEntry = "DeleteEntry"
	MethodListEntries = "ListEntries"
	MethodHealth      = "Health"
)

// FullMethod returns the wire path of a method, e.g. /contentstore.v1.ContentStore/Health.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// ContentStoreServer is the server API for the ContentStore service.
type ContentStoreServer interface {
	// GetEntry returns the entry stored under the key.
	GetEntry(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// PutEntry creates or replaces an entry. An expected_revision field makes
	// the write conditional.
	PutEntry(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// DeleteEntry removes the entry whose key or id is given.
	DeleteEntry(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	// ListEntries returns {"entries": [...]} for a filter struct.
	ListEntries(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Health returns {"status": "ok"} when the store answers.
	Health(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc is the grpc.ServiceDesc for the ContentStore service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ContentStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodGetEntry, Handler: unary(MethodGetEntry, newStringValue, ContentStoreServer.GetEntry)},
		{MethodName: MethodPutEntry, Handler: unary(MethodPutEntry, newStruct, ContentStoreServer.PutEntry)},
		{MethodName: MethodDeleteEntry, Handler: unary(MethodDeleteEntry, newStringValue, ContentStoreServer.DeleteEntry)},
		{MethodName: MethodListEntries, Handler: unary(MethodListEntries, newStruct, ContentStoreServer.ListEntries)},
		{MethodName: MethodHealth, Handler: unary(MethodHealth, newEmpty, ContentStoreServer.Health)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "contentstore/v1/contentstore.proto",
}

// RegisterContentStoreServer registers srv with s.
func RegisterContentStoreServer(s grpc.ServiceRegistrar, srv ContentStoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func newStringValue() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }
func newStruct() *structpb.Struct             { return new(structpb.Struct) }
func newEmpty() *emptypb.Empty                { return new(emptypb.Empty) }

// unary adapts a typed server method to a grpc.MethodHandler, running it
// through the server's interceptor chain when there is one.
func unary[Req, Resp any](method string, newReq func() Req, call func(ContentStoreServer, context.Context, Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		impl := srv.(ContentStoreServer)
		if interceptor == nil {
			return call(impl, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(impl, ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ContentStoreClient is the client API for the ContentStore service.
type ContentStoreClient struct {
	cc grpc.ClientConnInterface
}

// NewContentStoreClient returns a client over cc.
func NewContentStoreClient(cc grpc.ClientConnInterface) *ContentStoreClient {
	return &ContentStoreClient{cc: cc}
}

func (c *ContentStoreClient) GetEntry(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(MethodGetEntry), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ContentStoreClient) PutEntry(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(MethodPutEntry), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ContentStoreClient) DeleteEntry(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, FullMethod(MethodDeleteEntry), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ContentStoreClient) ListEntries(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(MethodListEntries), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ContentStoreClient) Health(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(MethodHealth), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ToStruct converts v, which must encode as a JSON object, into a Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	st := new(structpb.Struct)
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, fmt.Errorf("converting %T to struct: %w", v, err)
	}
	return st, nil
}

// FromStruct decodes st into v using v's JSON field names.
func FromStruct(st *structpb.Struct, v any) error {
	if st == nil {
		st = new(structpb.Struct)
	}
	b, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding struct: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding struct into %T: %w", v, err)
	}
	return nil
}
