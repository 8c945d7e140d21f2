package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/RowanDark/cryptbreak/internal/logging"
	"github.com/RowanDark/cryptbreak/internal/tools"
)

func setupTestServer(t *testing.T, cfg Config) (*Server, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	audit, err := logging.NewAuditLogger("api-test", logging.WithoutStdout(), logging.WithWriter(buf))
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	registry, err := tools.NewDefaultRegistry(&tools.Toolkit{Audit: audit})
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	cfg.Registry = registry
	cfg.Audit = audit
	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server, buf
}

func doRequest(t *testing.T, h http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewServerValidation(t *testing.T) {
	if _, err := NewServer(Config{Registry: tools.NewRegistry()}); err == nil {
		t.Fatal("expected missing address to fail")
	}
	if _, err := NewServer(Config{Addr: ":0"}); err == nil {
		t.Fatal("expected missing registry to fail")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	server, _ := setupTestServer(t, Config{})
	h := server.Handler()

	rec := doRequest(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	doRequest(t, h, http.MethodPost, "/api/v1/tools/score_text", `{"text":"hello"}`, nil)
	rec = doRequest(t, h, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `cryptbreak_tool_invocations_total{tool="score_text",transport="http"}`) {
		t.Fatalf("expected http invocation counter in:\n%s", rec.Body.String())
	}
}

func TestListTools(t *testing.T) {
	server, _ := setupTestServer(t, Config{})
	rec := doRequest(t, server.Handler(), http.MethodGet, "/api/v1/tools", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp ToolListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	found := false
	for _, info := range resp.Tools {
		if info.Name == "rot_all" {
			found = len(info.Params) > 0
		}
	}
	if !found {
		t.Fatal("expected rot_all with params in the listing")
	}

	rec = doRequest(t, server.Handler(), http.MethodPost, "/api/v1/tools", "", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST list = %d", rec.Code)
	}
}

func TestInvokeTool(t *testing.T) {
	server, audit := setupTestServer(t, Config{})
	h := server.Handler()

	rec := doRequest(t, h, http.MethodPost, "/api/v1/tools/caesar_break", `{"ciphertext":"Uryyb Jbeyq"}`,
		http.Header{InvocationHeader: {"inv-123"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	body := gjson.ParseBytes(rec.Body.Bytes())
	if body.Get("invocation_id").String() != "inv-123" || rec.Header().Get(InvocationHeader) != "inv-123" {
		t.Fatalf("expected pinned invocation id, got %s", rec.Body.String())
	}
	if body.Get("tool").String() != "caesar_break" || body.Get("result.plaintext").String() != "Hello World" {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
	if !body.Get("duration_ms").Exists() {
		t.Fatalf("expected duration_ms in %s", rec.Body.String())
	}

	var event logging.AuditEvent
	if err := json.Unmarshal(bytes.TrimSpace(audit.Bytes()), &event); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if event.InvocationID != "inv-123" || event.Metadata["transport"] != "http" {
		t.Fatalf("unexpected audit event %+v", event)
	}
}

func TestInvokeToolErrors(t *testing.T) {
	server, _ := setupTestServer(t, Config{})
	h := server.Handler()

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		class  string
	}{
		{"unknown tool", http.MethodPost, "/api/v1/tools/nope", `{}`, http.StatusNotFound, "unknown_tool"},
		{"invalid json", http.MethodPost, "/api/v1/tools/rot_all", `{`, http.StatusBadRequest, "invalid_params"},
		{"missing param", http.MethodPost, "/api/v1/tools/rot_all", `{}`, http.StatusBadRequest, "invalid_params"},
		{"decode error", http.MethodPost, "/api/v1/tools/xor_single_break", `{"data":"zz"}`, http.StatusUnprocessableEntity, "decode"},
		{"wrong method", http.MethodGet, "/api/v1/tools/rot_all", ``, http.StatusMethodNotAllowed, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h, tt.method, tt.target, tt.body, nil)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.class == "" {
				return
			}
			body := gjson.ParseBytes(rec.Body.Bytes())
			if body.Get("class").String() != tt.class || body.Get("error").String() == "" {
				t.Fatalf("unexpected error body %s", rec.Body.String())
			}
			if body.Get("invocation_id").String() == "" {
				t.Fatalf("expected invocation id in %s", rec.Body.String())
			}
		})
	}
}

func TestInvokeToolBodyLimit(t *testing.T) {
	server, _ := setupTestServer(t, Config{MaxBodyBytes: 16})
	rec := doRequest(t, server.Handler(), http.MethodPost, "/api/v1/tools/score_text",
		`{"text":"`+strings.Repeat("a", 64)+`"}`, nil)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestJWTProtectedRoutes(t *testing.T) {
	server, _ := setupTestServer(t, Config{
		StaticToken:     "static",
		JWTSecret:       []byte("test-jwt-secret"),
		JWTIssuer:       "test-issuer",
		DefaultTokenTTL: time.Hour,
	})
	h := server.Handler()

	if rec := doRequest(t, h, http.MethodGet, "/api/v1/tools", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodPost, "/api/v1/api-tokens", `{"subject":"cli"}`,
		http.Header{TokenHeader: {"wrong"}}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad static token, got %d", rec.Code)
	}

	rec := doRequest(t, h, http.MethodPost, "/api/v1/api-tokens", `{"subject":"cli","ttl_seconds":60}`,
		http.Header{TokenHeader: {"static"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("token issue = %d %s", rec.Code, rec.Body.String())
	}
	token := gjson.GetBytes(rec.Body.Bytes(), "token").String()
	if token == "" {
		t.Fatalf("expected a token in %s", rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/tools", "", http.Header{"Authorization": {"Bearer " + token}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz should stay open, got %d", rec.Code)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	server, audit := setupTestServer(t, Config{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(b) != "ok" {
		t.Fatalf("healthz body %q", b)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	if !strings.Contains(audit.String(), `"state":"stopped"`) {
		t.Fatalf("expected lifecycle events, got %s", audit.String())
	}
}
