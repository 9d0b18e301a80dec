package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/rpc"
)

// GRPCClient implements ContentClient using the gRPC transport.
type GRPCClient struct {
	conn   *grpc.ClientConn
	client *rpc.ContentStoreClient
}

// NewGRPCClient connects to the given gRPC address and returns a client.
// A non-empty token is sent as a Bearer authorization header on every call.
// Extra dial options are appended after the defaults.
func NewGRPCClient(addr, token string, opts ...grpc.DialOption) (*GRPCClient, error) {
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if token != "" {
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(bearerToken(token)))
	}
	conn, err := grpc.NewClient(addr, append(dialOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{
		conn:   conn,
		client: rpc.NewContentStoreClient(conn),
	}, nil
}

func bearerToken(token string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func (c *GRPCClient) GetEntry(ctx context.Context, key string) (*model.Entry, error) {
	resp, err := c.client.GetEntry(ctx, wrapperspb.String(key))
	if err != nil {
		return nil, err
	}
	var e model.Entry
	if err := rpc.FromStruct(resp, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *GRPCClient) PutEntry(ctx context.Context, req *PutEntryRequest) (*model.Entry, error) {
	in, err := rpc.ToStruct(req)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.PutEntry(ctx, in)
	if err != nil {
		return nil, err
	}
	var e model.Entry
	if err := rpc.FromStruct(resp, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *GRPCClient) DeleteEntry(ctx context.Context, idOrKey string) error {
	_, err := c.client.DeleteEntry(ctx, wrapperspb.String(idOrKey))
	return err
}

func (c *GRPCClient) ListEntries(ctx context.Context, filter model.EntryFilter) ([]*model.Entry, error) {
	in, err := rpc.ToStruct(filter)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.ListEntries(ctx, in)
	if err != nil {
		return nil, err
	}
	var out struct {
		Entries []*model.Entry `json:"entries"`
	}
	if err := rpc.FromStruct(resp, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := c.client.Health(ctx, &emptypb.Empty{})
	if err != nil {
		return "", err
	}
	return resp.GetFields()["status"].GetStringValue(), nil
}
