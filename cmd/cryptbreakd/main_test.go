package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/RowanDark/cryptbreak/internal/bootstrap"
	"github.com/RowanDark/cryptbreak/internal/config"
	"github.com/RowanDark/cryptbreak/internal/rpc"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	return ln
}

func TestServeBootsAndShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Default()
	cfg.AuthToken = "test-token"
	audit := &bytes.Buffer{}
	rt, err := bootstrap.New(cfg, bootstrap.WithLogOutput(io.Discard), bootstrap.WithAuditWriter(audit))
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close()

	grpcLn, httpLn := listen(t), listen(t)
	errCh := make(chan error, 1)
	go func() {
		errCh <- serve(ctx, rt, grpcLn, httpLn)
	}()

	client, err := rpc.Dial(grpcLn.Addr().String(), "test-token")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
	defer callCancel()
	infos, err := client.List(callCtx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) == 0 {
		t.Fatal("no tools listed over gRPC")
	}

	resp, err := http.Get("http://" + httpLn.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
	if got := strings.Count(audit.String(), `"state":"stopped"`); got != 2 {
		t.Fatalf("expected both transports to record a stop, got %d", got)
	}
}

func TestServeHTTPOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rt, err := bootstrap.New(config.Default(), bootstrap.WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer rt.Close()

	httpLn := listen(t)
	errCh := make(chan error, 1)
	go func() { errCh <- serve(ctx, rt, nil, httpLn) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get("http://" + httpLn.Addr().String() + "/metrics")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics endpoint never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("serve: %v", err)
	}
}
