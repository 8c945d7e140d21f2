package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/RowanDark/cryptbreak/internal/redact"
)

var envNames = []string{
	"GRPC_ADDR", "HTTP_ADDR", "LOG_LEVEL", "LOG_FORMAT", "AUDIT_LOG", "AUTH_TOKEN",
	"JWT_SECRET", "FACTOR_STORE", "YAFU_PATH", "SAGE_PATH", "TRACE_SERVICE_NAME",
	"TRACE_FILE", "SCORE_CACHE_SIZE", "XOR_WORKERS", "SOLVER_TIMEOUT",
	"ELICIT_TIMEOUT", "TRACE_SAMPLE_RATIO",
}

// isolate points HOME and the working directory at empty temp dirs and blanks
// every configuration variable.
func isolate(t *testing.T) (home, work string) {
	t.Helper()
	root := t.TempDir()
	home = filepath.Join(root, "home")
	work = filepath.Join(root, "work")
	for _, dir := range []string{home, work} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	t.Setenv("HOME", home)
	for _, name := range envNames {
		t.Setenv("CRYPTBREAK_"+name, "")
		t.Setenv("CTFCRYPTO_"+name, "")
	}
	t.Chdir(work)
	return home, work
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	home, work := isolate(t)

	writeFile(t, filepath.Join(home, ".cryptbreak", "config.yml"), `grpc_addr: 0.0.0.0:1111
http_addr: 0.0.0.0:2222
score_cache_size: 64
solvers:
  sage_path: /opt/sage
  timeout: 30s
`)
	writeFile(t, filepath.Join(work, LocalFile), `http_addr: 127.0.0.1:6500
solvers:
  timeout: 1m
tracing:
  sample_ratio: 0.5
`)
	t.Setenv("CRYPTBREAK_SCORE_CACHE_SIZE", "128")
	t.Setenv("CRYPTBREAK_AUTH_TOKEN", "env-token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.GRPCAddr != "0.0.0.0:1111" {
		t.Errorf("grpc addr = %q, want home value", cfg.GRPCAddr)
	}
	if cfg.HTTPAddr != "127.0.0.1:6500" {
		t.Errorf("http addr = %q, want local override", cfg.HTTPAddr)
	}
	if cfg.ScoreCacheSize != 128 {
		t.Errorf("score cache size = %d, want env override", cfg.ScoreCacheSize)
	}
	if cfg.AuthToken != "env-token" {
		t.Errorf("auth token = %q", cfg.AuthToken)
	}
	if cfg.Solvers.SagePath != "/opt/sage" || cfg.Solvers.Timeout != time.Minute {
		t.Errorf("solvers = %+v", cfg.Solvers)
	}
	if cfg.Tracing.SampleRatio != 0.5 || cfg.Tracing.ServiceName != "cryptbreak" {
		t.Errorf("tracing = %+v", cfg.Tracing)
	}
}

func TestLoadLegacyHome(t *testing.T) {
	home, _ := isolate(t)
	writeFile(t, filepath.Join(home, ".ctfcrypto", "config.yml"), "log_level: debug\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q, want legacy value", cfg.LogLevel)
	}

	writeFile(t, filepath.Join(home, ".cryptbreak", "config.yml"), "log_level: warn\n")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level = %q, new file should shadow legacy", cfg.LogLevel)
	}
}

func TestLoadLegacyEnv(t *testing.T) {
	isolate(t)
	t.Setenv("CTFCRYPTO_XOR_WORKERS", "3")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.XORWorkers != 3 {
		t.Fatalf("xor workers = %d", cfg.XORWorkers)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		local string
		want  string
	}{
		{name: "bad int", env: map[string]string{"CRYPTBREAK_SCORE_CACHE_SIZE": "lots"}, want: "CRYPTBREAK_SCORE_CACHE_SIZE"},
		{name: "bad duration", env: map[string]string{"CRYPTBREAK_SOLVER_TIMEOUT": "soon"}, want: "CRYPTBREAK_SOLVER_TIMEOUT"},
		{name: "bad ratio", env: map[string]string{"CRYPTBREAK_TRACE_SAMPLE_RATIO": "half"}, want: "TRACE_SAMPLE_RATIO"},
		{name: "ratio out of range", env: map[string]string{"CRYPTBREAK_TRACE_SAMPLE_RATIO": "2"}, want: "sample_ratio"},
		{name: "negative workers", env: map[string]string{"CRYPTBREAK_XOR_WORKERS": "-1"}, want: "xor_workers"},
		{name: "bad level", env: map[string]string{"CRYPTBREAK_LOG_LEVEL": "loud"}, want: "log_level"},
		{name: "bad format", env: map[string]string{"CRYPTBREAK_LOG_FORMAT": "xml"}, want: "log_format"},
		{name: "bad yaml", local: "grpc_addr: [", want: LocalFile},
		{name: "bad file duration", local: "solvers:\n  timeout: forever\n", want: "solvers.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, work := isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.local != "" {
				writeFile(t, filepath.Join(work, LocalFile), tt.local)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestRedactedYAML(t *testing.T) {
	cfg := Default()
	cfg.AuthToken = "grpc-secret"
	cfg.JWTSecret = "signing-key"

	out, err := cfg.Redacted().YAML()
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}
	text := string(out)
	if strings.Contains(text, "grpc-secret") || strings.Contains(text, "signing-key") {
		t.Fatalf("secrets leaked: %s", text)
	}
	if strings.Count(text, redact.Masked) != 2 {
		t.Fatalf("expected two masked values: %s", text)
	}
	if cfg.AuthToken != "grpc-secret" {
		t.Fatal("Redacted must not mutate the receiver")
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	_, work := isolate(t)
	want := Default()
	want.XORWorkers = 4
	want.Solvers.Timeout = 90 * time.Second
	out, err := want.YAML()
	if err != nil {
		t.Fatalf("YAML: %v", err)
	}
	writeFile(t, filepath.Join(work, LocalFile), string(out))
	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}
