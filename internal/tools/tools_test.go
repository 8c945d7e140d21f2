package tools

import (
	"bufio"
	"bytes"
	"context"
	"crypto/aes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/RowanDark/cryptbreak/internal/breaker"
	"github.com/RowanDark/cryptbreak/internal/cipher"
	"github.com/RowanDark/cryptbreak/internal/logging"
	"github.com/RowanDark/cryptbreak/internal/numtheory"
	"github.com/RowanDark/cryptbreak/internal/scoring"
	"github.com/RowanDark/cryptbreak/internal/symmetric"
)

type fakeSolver struct {
	mu       sync.Mutex
	problems []numtheory.Problem
	result   numtheory.SolverResult
}

func (f *fakeSolver) Name() string    { return numtheory.SourceSage }
func (f *fakeSolver) Available() bool { return true }
func (f *fakeSolver) Solve(_ context.Context, p numtheory.Problem) numtheory.SolverResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.problems = append(f.problems, p)
	return f.result
}

func (f *fakeSolver) last() numtheory.Problem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.problems[len(f.problems)-1]
}

type harness struct {
	registry *Registry
	audit    *bytes.Buffer
	sage     *fakeSolver
}

func newHarness(t *testing.T, provider symmetric.ParameterProvider) *harness {
	t.Helper()
	buf := &bytes.Buffer{}
	audit, err := logging.NewAuditLogger("tools-test", logging.WithoutStdout(), logging.WithWriter(buf))
	if err != nil {
		t.Fatalf("NewAuditLogger: %v", err)
	}
	sage := &fakeSolver{result: numtheory.SolverResult{Found: true, Values: map[string]interface{}{"x": "10"}, Method: "auto"}}
	k := &Toolkit{Sage: sage, Audit: audit}
	if provider != nil {
		k.Decrypter = symmetric.New(symmetric.WithProvider(AuditedProvider(provider, audit, nil)))
	}
	r, err := NewDefaultRegistry(k)
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}
	return &harness{registry: r, audit: buf, sage: sage}
}

func (h *harness) invoke(t *testing.T, name, params string) (Result, error) {
	t.Helper()
	return h.registry.Invoke(context.Background(), name, []byte(params))
}

func (h *harness) events(t *testing.T) []logging.AuditEvent {
	t.Helper()
	var out []logging.AuditEvent
	sc := bufio.NewScanner(bytes.NewReader(h.audit.Bytes()))
	for sc.Scan() {
		var ev logging.AuditEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("decode audit line %q: %v", sc.Text(), err)
		}
		out = append(out, ev)
	}
	return out
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, Params) (any, error) { return nil, nil }
	if err := r.Register(New("a", "", nil, noop)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(New("a", "", nil, noop)); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := r.Register(New("  ", "", nil, noop)); err == nil {
		t.Fatal("expected empty name to fail")
	}
	if err := r.Register(nil); err == nil {
		t.Fatal("expected nil tool to fail")
	}
	if _, ok := r.Get("a"); !ok {
		t.Fatal("expected tool a")
	}
}

func TestDefaultRegistryListsEveryTool(t *testing.T) {
	h := newHarness(t, nil)
	want := []string{
		"rot_all", "caesar_break", "vigenere_break", "affine_break", "rail_fence_break",
		"transposition_break", "playfair_break", "xor_single_break", "xor_repeating_break",
		"xor_key_sizes", "detect_encoding", "decode_common", "decode_pipeline", "score_text",
		"text_stats", "hamming", "hash_identify", "hash_crack", "jwt_decode", "jwt_crack",
		"rc4_decrypt", "aes_decrypt", "des_decrypt", "factor_integer", "discrete_log", "crt",
		"linear_congruence", "ecm_factor", "ec_point_add", "coppersmith", "quadratic_residue",
		"cache_stats", "cache_clear",
	}
	list := h.registry.List()
	names := make(map[string]bool, len(list))
	for i, info := range list {
		names[info.Name] = true
		if i > 0 && list[i-1].Name > info.Name {
			t.Errorf("list not sorted at %s", info.Name)
		}
	}
	for _, name := range want {
		if !names[name] {
			t.Errorf("tool %s not registered", name)
		}
	}
	if len(list) != len(want) {
		t.Errorf("registered %d tools, want %d", len(list), len(want))
	}
}

func TestInvokeErrors(t *testing.T) {
	h := newHarness(t, nil)
	tests := []struct {
		name      string
		tool      string
		params    string
		wantErr   error
		wantClass string
	}{
		{"unknown tool", "nope", `{}`, ErrUnknownTool, "unknown_tool"},
		{"invalid json", "rot_all", `{"text":`, ErrInvalidParams, "invalid_params"},
		{"missing param", "rot_all", `{}`, ErrInvalidParams, "invalid_params"},
		{"wrong type", "rot_all", `{"text": 5}`, ErrInvalidParams, "invalid_params"},
		{"non-positive top_k", "rot_all", `{"text": "abc", "top_k": 0}`, ErrInvalidParams, "invalid_params"},
		{"key range", "xor_repeating_break", `{"data": "00", "min_key": 5, "max_key": 2}`, ErrInvalidParams, "invalid_params"},
		{"unknown encoding", "xor_single_break", `{"data": "00", "encoding": "base32"}`, ErrInvalidParams, "invalid_params"},
		{"bad hex", "xor_single_break", `{"data": "zz"}`, cipher.ErrDecode, "decode"},
		{"transposition too large", "transposition_break", `{"ciphertext": "abc", "max_key_len": 9}`, ErrInvalidParams, "invalid_params"},
		{"hamming lengths", "hamming", `{"a": "ab", "b": "abc"}`, ErrInvalidParams, "invalid_params"},
		{"unknown wordlist", "hash_crack", `{"digest": "00", "wordlist": "nope"}`, ErrInvalidParams, "invalid_params"},
		{"unknown pipeline op", "decode_pipeline", `{"input": "x", "operations": [{"name": "nope"}]}`, ErrInvalidParams, "invalid_params"},
		{"bad number", "factor_integer", `{"n": "twelve"}`, ErrInvalidParams, "invalid_params"},
		{"bad dlog method", "discrete_log", `{"g": 5, "p": 101, "method": "magic"}`, ErrInvalidParams, "invalid_params"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.invoke(t, tt.tool, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := ErrorClass(err); got != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", got, tt.wantClass)
			}
			if res.InvocationID == "" {
				t.Error("expected an invocation id on failure")
			}
		})
	}
}

func TestInvokeAudits(t *testing.T) {
	h := newHarness(t, nil)
	ctx := WithTransport(WithInvocationID(context.Background(), "inv-1"), "http")

	res, err := h.registry.Invoke(ctx, "score_text", []byte(`{"text": "hello world"}`))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if res.InvocationID != "inv-1" || res.Tool != "score_text" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := h.registry.Invoke(ctx, "rot_all", []byte(`{}`)); err == nil {
		t.Fatal("expected missing text to fail")
	}

	events := h.events(t)
	if len(events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(events))
	}
	ok, failed := events[0], events[1]
	if ok.EventType != logging.EventToolInvocation || ok.Decision != logging.DecisionAllow || ok.InvocationID != "inv-1" {
		t.Errorf("unexpected success event %+v", ok)
	}
	if ok.Metadata["transport"] != "http" {
		t.Errorf("expected transport metadata, got %v", ok.Metadata)
	}
	if failed.EventType != logging.EventToolFailed || failed.Decision != logging.DecisionDeny {
		t.Errorf("unexpected failure event %+v", failed)
	}
	if failed.Metadata["error_class"] != "invalid_params" || failed.Reason == "" {
		t.Errorf("expected error class and reason, got %+v", failed)
	}
}

func TestClassicTools(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.invoke(t, "rot_all", `{"text": "Uryyb Jbeyq", "top_k": 2}`)
	if err != nil {
		t.Fatalf("rot_all: %v", err)
	}
	cands := res.Output.([]breaker.Candidate)
	if len(cands) != 2 || cands[0].Plaintext != "Hello World" {
		t.Errorf("unexpected rot_all output %+v", cands)
	}

	res, err = h.invoke(t, "caesar_break", `{"ciphertext": "Uryyb Jbeyq"}`)
	if err != nil {
		t.Fatalf("caesar_break: %v", err)
	}
	if c := res.Output.(breaker.Candidate); c.Key != "13" {
		t.Errorf("unexpected caesar_break output %+v", c)
	}

	res, err = h.invoke(t, "playfair_break", `{"ciphertext": "bmodzbxdnabekudmuixmmouvif", "key_hint": "playfair example"}`)
	if err != nil {
		t.Fatalf("playfair_break: %v", err)
	}
	if cands := res.Output.([]breaker.Candidate); len(cands) != 1 || cands[0].Plaintext != "hidethegoldinthetrexestump" {
		t.Errorf("unexpected playfair_break output %+v", cands)
	}
}

func TestXORTools(t *testing.T) {
	h := newHarness(t, nil)
	data := "1b37373331363f78151b7f2b783431333d78397828372d363c78373e783a393b3736"

	res, err := h.invoke(t, "xor_single_break", `{"data": "`+data+`", "top_k": 1}`)
	if err != nil {
		t.Fatalf("xor_single_break: %v", err)
	}
	cands := res.Output.([]breaker.Candidate)
	if len(cands) != 1 || cands[0].Plaintext != "Cooking MC's like a pound of bacon" {
		t.Errorf("unexpected output %+v", cands)
	}

	res, err = h.invoke(t, "xor_key_sizes", `{"data": "`+data+`", "min_key": 2, "max_key": 4}`)
	if err != nil {
		t.Fatalf("xor_key_sizes: %v", err)
	}
	if _, ok := res.Output.([]breaker.KeySizeGuess); !ok {
		t.Errorf("unexpected output type %T", res.Output)
	}
}

func TestEncodingTools(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.invoke(t, "hamming", `{"a": "this is a test", "b": "wokka wokka!!!"}`)
	if err != nil {
		t.Fatalf("hamming: %v", err)
	}
	if d := res.Output.(map[string]int)["distance"]; d != 37 {
		t.Errorf("distance = %d, want 37", d)
	}

	res, err = h.invoke(t, "decode_pipeline", `{"input": "4a6b4a6c", "operations": [{"name": "hex_decode"}]}`)
	if err != nil {
		t.Fatalf("decode_pipeline: %v", err)
	}
	if out := res.Output.(pipelineOutput); out.Output != "JkJl" || out.OutputHex != "" {
		t.Errorf("unexpected pipeline output %+v", out)
	}

	res, err = h.invoke(t, "hash_crack", `{"digest": "5f4dcc3b5aa765d61d8327deb882cf99", "words": ["letmein", "password"], "algorithms": ["md5"]}`)
	if err != nil {
		t.Fatalf("hash_crack: %v", err)
	}
	if got := res.Output.(cipher.HashCandidate); !got.Found || got.Word != "password" {
		t.Errorf("unexpected hash_crack output %+v", got)
	}

	res, err = h.invoke(t, "text_stats", `{"text": "the cat sat on the mat", "words": ["cat", "mat"]}`)
	if err != nil {
		t.Fatalf("text_stats: %v", err)
	}
	stats := res.Output.(map[string]float64)
	if stats["wordlist_score"] <= 0 || stats["score"] <= 0 {
		t.Errorf("unexpected text_stats output %v", stats)
	}

	res, err = h.invoke(t, "detect_encoding", `{"text": "", "top_k": 2}`)
	if err != nil {
		t.Fatalf("detect_encoding: %v", err)
	}
	if got := res.Output.([]cipher.DetectionCandidate); got == nil {
		t.Error("expected a non-nil candidate list")
	}
}

func TestSymmetricTools(t *testing.T) {
	h := newHarness(t, nil)

	res, err := h.invoke(t, "rc4_decrypt", `{"ciphertext": "BBF316E8D940AF0AD3", "key": "Key"}`)
	if err != nil {
		t.Fatalf("rc4_decrypt: %v", err)
	}
	if got := res.Output.(map[string]string)["plaintext"]; got != "Plaintext" {
		t.Errorf("plaintext = %q", got)
	}

	block, _ := aes.NewCipher([]byte("YELLOW SUBMARINE"))
	plain := []byte("sixteen byte msg")
	padded := append(append([]byte(nil), plain...), bytes.Repeat([]byte{16}, 16)...)
	ct := make([]byte, len(padded))
	for i := 0; i < len(padded); i += 16 {
		block.Encrypt(ct[i:i+16], padded[i:i+16])
	}
	res, err = h.invoke(t, "aes_decrypt", `{"ciphertext": "`+hex.EncodeToString(ct)+`", "key": "YELLOW SUBMARINE", "key_encoding": "raw", "mode": "ECB"}`)
	if err != nil {
		t.Fatalf("aes_decrypt: %v", err)
	}
	if got := res.Output.(map[string]string)["plaintext"]; got != string(plain) {
		t.Errorf("plaintext = %q", got)
	}

	tests := []struct {
		name    string
		tool    string
		params  string
		wantErr error
	}{
		{"bad key length", "aes_decrypt", `{"ciphertext": "00112233445566778899aabbccddeeff", "key": "abcd", "mode": "ECB"}`, ErrInvalidParams},
		{"missing iv", "aes_decrypt", `{"ciphertext": "00112233445566778899aabbccddeeff", "key": "000102030405060708090a0b0c0d0e0f"}`, ErrInvalidParams},
		{"unknown key encoding", "des_decrypt", `{"ciphertext": "00", "key": "k", "key_encoding": "base32"}`, ErrInvalidParams},
		{"bad ciphertext", "rc4_decrypt", `{"ciphertext": "xyz", "key": "Key"}`, cipher.ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.invoke(t, tt.tool, tt.params); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	res, err = h.invoke(t, "rc4_decrypt", `{"ciphertext": "BBF316E8D940AF0AD3"}`)
	if err != nil {
		t.Fatalf("keyless rc4_decrypt: %v", err)
	}
	if got := res.Output.(map[string]string)["plaintext"]; got != "" {
		t.Errorf("expected empty plaintext without a provider, got %q", got)
	}
}

func TestElicitationIsAudited(t *testing.T) {
	var asked []symmetric.Request
	provider := symmetric.ProviderFunc(func(_ context.Context, req symmetric.Request) (symmetric.Params, bool) {
		asked = append(asked, req)
		if len(asked) > 1 {
			return symmetric.Params{}, false
		}
		return symmetric.Params{Key: "Key"}, true
	})
	h := newHarness(t, provider)

	res, err := h.invoke(t, "rc4_decrypt", `{"ciphertext": "BBF316E8D940AF0AD3"}`)
	if err != nil {
		t.Fatalf("rc4_decrypt: %v", err)
	}
	if got := res.Output.(map[string]string)["plaintext"]; got != "Plaintext" {
		t.Errorf("plaintext = %q", got)
	}
	if _, err := h.invoke(t, "rc4_decrypt", `{"ciphertext": "BBF316E8D940AF0AD3"}`); err != nil {
		t.Fatalf("declined rc4_decrypt: %v", err)
	}
	if len(asked) != 2 || asked[0].Algorithm != symmetric.AlgorithmRC4 {
		t.Fatalf("unexpected requests %+v", asked)
	}

	var outcomes []string
	for _, ev := range h.events(t) {
		if ev.EventType != logging.EventParameterElicited {
			continue
		}
		if ev.InvocationID == "" || ev.Tool != "rc4_decrypt" {
			t.Errorf("unexpected elicitation event %+v", ev)
		}
		outcomes = append(outcomes, ev.Metadata["outcome"].(string))
	}
	if strings.Join(outcomes, ",") != "provided,declined" {
		t.Errorf("outcomes = %v", outcomes)
	}
}

func TestFactorInteger(t *testing.T) {
	h := newHarness(t, nil)
	res, err := h.invoke(t, "factor_integer", `{"n": 1000036000099, "prefer_external": false}`)
	if err != nil {
		t.Fatalf("factor_integer: %v", err)
	}
	got := res.Output.(numtheory.FactorResult)
	if strings.Join(got.Factors, ",") != "1000003,1000033" || got.Source != numtheory.SourceInternal {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestSageTools(t *testing.T) {
	tests := []struct {
		name   string
		tool   string
		params string
		check  func(t *testing.T, p numtheory.Problem)
	}{
		{"discrete log", "discrete_log", `{"g": 5, "p": 101, "base": "2", "method": "bsgs"}`, func(t *testing.T, p numtheory.Problem) {
			if p.Params["g"] != "5" || p.Params["base"] != "2" || p.Params["method"] != "bsgs" {
				t.Errorf("params = %v", p.Params)
			}
		}},
		{"crt pairs", "crt", `{"congruences": [[2, 3], [3, 5], [2, 7]]}`, func(t *testing.T, p numtheory.Problem) {
			if strings.Join(p.Lists["remainders"], ",") != "2,3,2" || strings.Join(p.Lists["moduli"], ",") != "3,5,7" {
				t.Errorf("lists = %v", p.Lists)
			}
		}},
		{"crt lists", "crt", `{"remainders": [2, 3], "moduli": [3, 5]}`, func(t *testing.T, p numtheory.Problem) {
			if len(p.Lists["moduli"]) != 2 {
				t.Errorf("lists = %v", p.Lists)
			}
		}},
		{"linear congruence", "linear_congruence", `{"coefficients": [3], "remainders": [4], "moduli": [7]}`, func(t *testing.T, p numtheory.Problem) {
			if p.Lists["coefficients"][0] != "3" {
				t.Errorf("lists = %v", p.Lists)
			}
		}},
		{"ecm", "ecm_factor", `{"n": "1000036000099"}`, func(t *testing.T, p numtheory.Problem) {
			if p.Params["n"] != "1000036000099" {
				t.Errorf("params = %v", p.Params)
			}
		}},
		{"ec point add", "ec_point_add", `{"a": 2, "b": 3, "p": 97, "p1": [3, 6], "p2": [80, 10]}`, func(t *testing.T, p numtheory.Problem) {
			if p.Params["x1"] != "3" || p.Params["y2"] != "10" {
				t.Errorf("params = %v", p.Params)
			}
		}},
		{"coppersmith", "coppersmith", `{"n": 1000036000099, "polynomial": "(x + 42)^3 - 8", "beta": 1}`, func(t *testing.T, p numtheory.Problem) {
			if p.Params["beta"] != "1" || p.Params["polynomial"] != "(x + 42)^3 - 8" {
				t.Errorf("params = %v", p.Params)
			}
		}},
		{"quadratic residue", "quadratic_residue", `{"a": 10, "p": 13}`, func(t *testing.T, p numtheory.Problem) {
			if p.Params["a"] != "10" || p.Params["p"] != "13" {
				t.Errorf("params = %v", p.Params)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			res, err := h.invoke(t, tt.tool, tt.params)
			if err != nil {
				t.Fatalf("%s: %v", tt.tool, err)
			}
			if out := res.Output.(numtheory.SolverResult); !out.Found {
				t.Errorf("unexpected result %+v", out)
			}
			tt.check(t, h.sage.last())

			var solverEvents int
			for _, ev := range h.events(t) {
				if ev.EventType == logging.EventSolverCall {
					solverEvents++
					if ev.Tool != tt.tool || ev.Metadata["solver"] != numtheory.SourceSage {
						t.Errorf("unexpected solver event %+v", ev)
					}
				}
			}
			if solverEvents != 1 {
				t.Errorf("expected one solver event, got %d", solverEvents)
			}
		})
	}
}

func TestSageToolsRejectInput(t *testing.T) {
	tests := []struct {
		name   string
		tool   string
		params string
	}{
		{"crt length mismatch", "crt", `{"remainders": [2, 3], "moduli": [3]}`},
		{"crt empty", "crt", `{}`},
		{"bad point", "ec_point_add", `{"a": 2, "b": 3, "p": 97, "p1": [3], "p2": [80, 10]}`},
		{"bad beta", "coppersmith", `{"n": 77, "polynomial": "x - 1", "beta": 2}`},
		{"bad polynomial", "coppersmith", `{"n": 77, "polynomial": "__import__('os')"}`},
		{"missing p", "quadratic_residue", `{"a": 10}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			if _, err := h.invoke(t, tt.tool, tt.params); !errors.Is(err, ErrInvalidParams) {
				t.Fatalf("expected ErrInvalidParams, got %v", err)
			}
			if len(h.sage.problems) != 0 {
				t.Errorf("solver should not run for rejected input")
			}
		})
	}
}

func TestCacheTools(t *testing.T) {
	scorer := scoring.New(scoring.WithCache(scoring.NewLRUCache(8)))
	k := &Toolkit{
		Scorer:          scorer,
		FactorStoreSize: func(context.Context) (int, error) { return 3, nil },
	}
	r, err := NewDefaultRegistry(k)
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}
	ctx := context.Background()

	scorer.Score("hello")
	scorer.Score("hello")

	res, err := r.Invoke(ctx, "cache_stats", nil)
	if err != nil {
		t.Fatalf("cache_stats: %v", err)
	}
	stats := res.Output.(cacheStats)
	if stats.Hits != 1 || stats.Misses != 1 || stats.Size != 1 || stats.Capacity != 8 {
		t.Errorf("unexpected stats %+v", stats.CacheStats)
	}
	if stats.FactorStoreEntries == nil || *stats.FactorStoreEntries != 3 {
		t.Errorf("expected 3 factor store entries, got %v", stats.FactorStoreEntries)
	}

	if _, err := r.Invoke(ctx, "cache_clear", []byte(`{}`)); err != nil {
		t.Fatalf("cache_clear: %v", err)
	}
	if got := scorer.Cache().Stats(); got.Hits != 0 || got.Size != 0 {
		t.Errorf("expected cleared cache, got %+v", got)
	}
}

func TestBreakersReturnEmptyListForEmptyRange(t *testing.T) {
	tests := []struct {
		tool   string
		params string
	}{
		{"rail_fence_break", `{"ciphertext": "WECRLTEERDSOEEFEAOCAIVDEN", "max_rails": 1}`},
		{"vigenere_break", `{"ciphertext": "Lxfopvefrnhr", "max_key_len": 1}`},
		{"transposition_break", `{"ciphertext": "HLOELWRDLO", "max_key_len": 1}`},
	}
	h := newHarness(t, nil)
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			res, err := h.invoke(t, tt.tool, tt.params)
			if err != nil {
				t.Fatalf("%s: %v", tt.tool, err)
			}
			raw, err := json.Marshal(res.Output)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(raw) != "[]" {
				t.Fatalf("output = %s, want []", raw)
			}
		})
	}
}
