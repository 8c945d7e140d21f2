package rpc

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/RowanDark/cryptbreak/internal/logging"
	"github.com/RowanDark/cryptbreak/internal/tools"
)

func startServer(t *testing.T, opts ...Option) (*Client, *bytes.Buffer, func(token string) *Client) {
	t.Helper()
	buf := &bytes.Buffer{}
	audit, err := logging.NewAuditLogger("rpc-test", logging.WithoutStdout(), logging.WithWriter(buf))
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	registry, err := tools.NewDefaultRegistry(&tools.Toolkit{Audit: audit})
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}

	ln := bufconn.Listen(1 << 20)
	srv := NewServer(registry, append([]Option{WithAuditLogger(audit)}, opts...)...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("grpc server did not stop")
		}
	})

	dial := func(token string) *Client {
		c, err := Dial("passthrough:///bufnet", token, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return ln.DialContext(ctx)
		}))
		if err != nil {
			t.Fatalf("Dial: %v", err)
		}
		t.Cleanup(func() { _ = c.Close() })
		return c
	}
	return dial(""), buf, dial
}

func TestListOverGRPC(t *testing.T) {
	client, _, _ := startServer(t)
	infos, err := client.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	names := make(map[string]bool)
	for _, info := range infos {
		names[info.Name] = true
	}
	for _, want := range []string{"rot_all", "factor_integer", "cache_stats"} {
		if !names[want] {
			t.Errorf("missing tool %s", want)
		}
	}
}

func TestInvokeOverGRPC(t *testing.T) {
	client, audit, _ := startServer(t)
	ctx := tools.WithInvocationID(context.Background(), "grpc-inv-1")

	res, err := client.Invoke(ctx, "caesar_break", []byte(`{"ciphertext":"Uryyb Jbeyq"}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.InvocationID != "grpc-inv-1" || res.Tool != "caesar_break" {
		t.Fatalf("unexpected result %+v", res)
	}
	out, ok := res.Output.(map[string]any)
	if !ok || out["plaintext"] != "Hello World" {
		t.Fatalf("unexpected output %#v", res.Output)
	}
	if !strings.Contains(audit.String(), `"transport":"grpc"`) {
		t.Fatalf("expected grpc transport in audit log: %s", audit.String())
	}
}

func TestInvokeErrorCodes(t *testing.T) {
	client, _, _ := startServer(t)
	tests := []struct {
		name   string
		tool   string
		params string
		code   codes.Code
	}{
		{"unknown tool", "nope", `{}`, codes.NotFound},
		{"missing param", "rot_all", `{}`, codes.InvalidArgument},
		{"empty tool", "", `{}`, codes.InvalidArgument},
		{"decode error", "xor_single_break", `{"data":"zz"}`, codes.FailedPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Invoke(context.Background(), tt.tool, []byte(tt.params))
			if got := status.Code(err); got != tt.code {
				t.Fatalf("code = %v, want %v (%v)", got, tt.code, err)
			}
		})
	}
}

func TestParamsMustBeObject(t *testing.T) {
	client, _, _ := startServer(t)
	req := &structpb.Struct{Fields: map[string]*structpb.Value{
		"tool":   structpb.NewStringValue("rot_all"),
		"params": structpb.NewStringValue("text"),
	}}
	err := client.conn.Invoke(context.Background(), invokeMethod, req, new(structpb.Struct))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestAuthToken(t *testing.T) {
	anonymous, _, dial := startServer(t, WithAuthToken("s3cret"))

	if _, err := anonymous.List(context.Background()); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
	if _, err := dial("wrong").List(context.Background()); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated for wrong token, got %v", err)
	}
	if _, err := dial("s3cret").List(context.Background()); err != nil {
		t.Fatalf("List with token: %v", err)
	}
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{tools.ErrUnknownTool, codes.NotFound},
		{tools.ErrInvalidParams, codes.InvalidArgument},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{net.ErrClosed, codes.Internal},
	}
	for _, tt := range tests {
		if got := codeFor(tt.err); got != tt.want {
			t.Errorf("codeFor(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
