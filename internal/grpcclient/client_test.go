package grpcclient

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"avl-svr/internal/codec"
	"avl-svr/internal/pipeline"
)

type fakeForwarder struct {
	mu      sync.Mutex
	got     []*structpb.Struct
	success bool
}

func (f *fakeForwarder) sendData(in *structpb.Struct) (*structpb.Struct, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, in)
	return structpb.NewStruct(map[string]any{"success": f.success, "message": "nope"})
}

var forwarderDesc = grpc.ServiceDesc{
	ServiceName: "forwarder.Forwarder",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "SendData",
		Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
			in := &structpb.Struct{}
			if err := dec(in); err != nil {
				return nil, err
			}
			return srv.(*fakeForwarder).sendData(in)
		},
	}},
}

func startForwarder(t *testing.T, success bool) (*fakeForwarder, *GRPCClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	fake := &fakeForwarder{success: success}
	srv.RegisterService(&forwarderDesc, fake)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewGRPCClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("NewGRPCClient: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return fake, c
}

func batch() pipeline.Batch {
	io := codec.NewIOMap()
	io.Set(codec.NamedKey("Ignition"), codec.Integer(1))
	return pipeline.Batch{
		ExternalID: "356307042441013",
		Codec:      codec.Codec8Extended,
		Records: []codec.AVLRecord{{
			Timestamp: 1700000000000,
			GPS:       codec.GNSSFix{Lat: 1.5, Lon: 2.5, Satellites: 6},
			IO:        io,
		}},
	}
}

func TestIngestSendsStruct(t *testing.T) {
	fake, c := startForwarder(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ingest(ctx, batch()); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.got) != 1 {
		t.Fatalf("forwarder got %d calls", len(fake.got))
	}
	m := fake.got[0].AsMap()
	if m["external_id"] != "356307042441013" || m["codec"] != float64(0x8E) {
		t.Fatalf("request = %v", m)
	}
	recs := m["batch"].([]any)
	rec := recs[0].(map[string]any)
	if rec["io"].(map[string]any)["Ignition"] != float64(1) {
		t.Fatalf("record = %v", rec)
	}
}

func TestIngestRejected(t *testing.T) {
	_, c := startForwarder(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ingest(ctx, batch()); !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
}

func TestIngestUnavailable(t *testing.T) {
	c, err := NewGRPCClient("passthrough:///nowhere",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return nil, errors.New("refused")
		}))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := c.Ingest(ctx, batch()); err == nil {
		t.Fatal("Ingest succeeded without a server")
	}
}
