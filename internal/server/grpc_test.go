package server

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/alfredjeanlab/contentstore/internal/model"
	"github.com/alfredjeanlab/contentstore/internal/rpc"
	"github.com/alfredjeanlab/contentstore/internal/store/memory"
)

// startGRPC serves srv over an in-memory listener and returns a client.
func startGRPC(t *testing.T, authToken string) (*rpc.ContentStoreClient, *memory.MemoryStore) {
	t.Helper()
	srv, ms, _ := newTestServer()
	gs := NewGRPCServer(srv, authToken)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return rpc.NewContentStoreClient(conn), ms
}

// requireCode asserts that err is a gRPC error with the given status code.
func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected gRPC error with code %v, got nil", code)
	}
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != code {
		t.Fatalf("expected code=%v, got %v (%s)", code, st.Code(), st.Message())
	}
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	st, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return st
}

func TestGRPC_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	client, _ := startGRPC(t, "")

	put, err := client.PutEntry(ctx, mustStruct(t, map[string]any{
		"key":      "landing.notices",
		"type":     "json",
		"title":    "Notices",
		"content":  `[{"id":1,"text":"hi"}]`,
		"metadata": map[string]any{"owner": "web"},
		"order":    3,
	}))
	if err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	var created model.Entry
	if err := rpc.FromStruct(put, &created); err != nil {
		t.Fatalf("FromStruct: %v", err)
	}
	if created.Revision != 1 || created.Order != 3 || created.ID == "" {
		t.Fatalf("created = %+v", created)
	}

	got, err := client.GetEntry(ctx, wrapperspb.String("landing.notices"))
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.GetFields()["content"].GetStringValue() != `[{"id":1,"text":"hi"}]` {
		t.Fatalf("content = %v", got.GetFields()["content"])
	}
	if got.GetFields()["metadata"].GetStructValue().GetFields()["owner"].GetStringValue() != "web" {
		t.Fatalf("metadata = %v", got.GetFields()["metadata"])
	}

	if _, err := client.DeleteEntry(ctx, wrapperspb.String(created.ID)); err != nil {
		t.Fatalf("DeleteEntry by id: %v", err)
	}
	_, err = client.GetEntry(ctx, wrapperspb.String("landing.notices"))
	requireCode(t, err, codes.NotFound)
	_, err = client.DeleteEntry(ctx, wrapperspb.String("landing.notices"))
	requireCode(t, err, codes.NotFound)
}

func TestGRPC_ExpectedRevision(t *testing.T) {
	ctx := context.Background()
	client, _ := startGRPC(t, "")

	req := map[string]any{"key": "hero", "type": "text", "content": "v1", "expected_revision": 0}
	if _, err := client.PutEntry(ctx, mustStruct(t, req)); err != nil {
		t.Fatalf("guarded create: %v", err)
	}
	_, err := client.PutEntry(ctx, mustStruct(t, req))
	requireCode(t, err, codes.FailedPrecondition)

	req["content"], req["expected_revision"] = "v2", 1
	if _, err := client.PutEntry(ctx, mustStruct(t, req)); err != nil {
		t.Fatalf("guarded replace: %v", err)
	}
	_, err = client.PutEntry(ctx, mustStruct(t, req))
	requireCode(t, err, codes.FailedPrecondition)
}

func TestGRPC_ListEntries(t *testing.T) {
	ctx := context.Background()
	client, _ := startGRPC(t, "")

	for _, key := range []string{"b", "a", "c"} {
		if _, err := client.PutEntry(ctx, mustStruct(t, map[string]any{
			"key": key, "type": "text", "section": "s",
		})); err != nil {
			t.Fatalf("PutEntry %s: %v", key, err)
		}
	}

	resp, err := client.ListEntries(ctx, mustStruct(t, map[string]any{"section": "s", "sort": "-key"}))
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	var out struct {
		Entries []model.Entry `json:"entries"`
	}
	if err := rpc.FromStruct(resp, &out); err != nil {
		t.Fatalf("FromStruct: %v", err)
	}
	if len(out.Entries) != 3 || out.Entries[0].Key != "c" || out.Entries[2].Key != "a" {
		t.Fatalf("entries = %+v", out.Entries)
	}
}

func TestGRPCErrorCodes(t *testing.T) {
	ctx := context.Background()
	client, ms := startGRPC(t, "")

	_, err := client.GetEntry(ctx, wrapperspb.String(""))
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.PutEntry(ctx, mustStruct(t, map[string]any{"key": "k", "type": "yaml"}))
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.PutEntry(ctx, mustStruct(t, map[string]any{"key": "k", "type": "text", "order": 1.5}))
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.ListEntries(ctx, mustStruct(t, map[string]any{"type": "yaml"}))
	requireCode(t, err, codes.InvalidArgument)

	_ = ms.Close()
	_, err = client.GetEntry(ctx, wrapperspb.String("k"))
	requireCode(t, err, codes.Unavailable)
	_, err = client.Health(ctx, &emptypb.Empty{})
	requireCode(t, err, codes.Unavailable)
}

func TestGRPC_Auth(t *testing.T) {
	client, _ := startGRPC(t, "secret")

	health, err := client.Health(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("Health must be exempt from auth: %v", err)
	}
	if health.GetFields()["status"].GetStringValue() != "ok" {
		t.Fatalf("health = %v", health)
	}

	_, err = client.GetEntry(context.Background(), wrapperspb.String("k"))
	requireCode(t, err, codes.Unauthenticated)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer secret")
	_, err = client.GetEntry(ctx, wrapperspb.String("k"))
	requireCode(t, err, codes.NotFound)
}
