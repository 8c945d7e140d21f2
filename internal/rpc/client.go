package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/cryptbreak/internal/observability/tracing"
	"github.com/RowanDark/cryptbreak/internal/tools"
)

// Client calls a remote cryptbreak.v1.Tools service.
type Client struct {
	conn  *grpc.ClientConn
	token string
}

// Dial connects to addr without transport security. Extra dial options are
// appended, which lets tests substitute a bufconn dialer.
func Dial(addr, token string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(tracing.UnaryClientInterceptor()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Client{conn: conn, token: strings.TrimSpace(token)}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

// List returns the remote tool catalogue.
func (c *Client) List(ctx context.Context) ([]tools.Info, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), listMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	var resp struct {
		Tools []tools.Info `json:"tools"`
	}
	if err := fromProto(out, &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

// Invoke runs tool remotely. params must be a JSON object or empty.
func (c *Client) Invoke(ctx context.Context, tool string, params []byte) (tools.Result, error) {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"tool": structpb.NewStringValue(tool),
	}}
	if len(strings.TrimSpace(string(params))) > 0 {
		ps := new(structpb.Struct)
		if err := protojson.Unmarshal(params, ps); err != nil {
			return tools.Result{}, fmt.Errorf("%w: %v", tools.ErrInvalidParams, err)
		}
		req.Fields["params"] = structpb.NewStructValue(ps)
	}
	if id := tools.InvocationID(ctx); id != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, InvocationKey, id)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), invokeMethod, req, out); err != nil {
		return tools.Result{Tool: tool}, err
	}
	var res tools.Result
	if err := fromProto(out, &res); err != nil {
		return tools.Result{Tool: tool}, err
	}
	return res, nil
}

func fromProto(m *structpb.Struct, v any) error {
	b, err := protojson.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
