package grpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"avl-svr/internal/pipeline"
)

// SendDataMethod is the unary forwarder RPC; request and reply are
// google.protobuf.Struct.
const SendDataMethod = "/forwarder.Forwarder/SendData"

var ErrRejected = errors.New("forwarder rejected batch")

type GRPCClient struct {
	conn *grpc.ClientConn
}

func NewGRPCClient(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCClient{conn: conn}, nil
}

func (g *GRPCClient) Close() error {
	return g.conn.Close()
}

// Ingest sends one batch. The reply must carry success=true.
func (g *GRPCClient) Ingest(ctx context.Context, b pipeline.Batch) error {
	req, err := toStruct(b)
	if err != nil {
		return err
	}

	res := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, SendDataMethod, req, res); err != nil {
		return fmt.Errorf("forwarder SendData: %w", err)
	}
	if !res.GetFields()["success"].GetBoolValue() {
		msg := res.GetFields()["message"].GetStringValue()
		return fmt.Errorf("%w: device %s: %s", ErrRejected, b.ExternalID, msg)
	}
	return nil
}

func toStruct(b pipeline.Batch) (*structpb.Struct, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("batch to struct: %w", err)
	}
	return out, nil
}
