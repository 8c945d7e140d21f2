package numtheory

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "42", want: "42"},
		{in: " -17 ", want: "-17"},
		{in: "0x1f", want: "31"},
		{in: "0b101", want: "5"},
		{in: "1_000", want: "1000"},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "12; import os", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInt(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidNumber) {
					t.Fatalf("expected ErrInvalidNumber, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFactorInternal(t *testing.T) {
	f := NewFactorer()
	tests := []struct {
		name string
		in   string
		n    string
		want []string
	}{
		{name: "zero", in: "0", n: "0", want: []string{"0"}},
		{name: "one", in: "1", n: "1", want: []string{}},
		{name: "prime", in: "97", n: "97", want: []string{"97"}},
		{name: "negative", in: "-12", n: "-12", want: []string{"2", "2", "3"}},
		{name: "hex", in: "0x1f", n: "31", want: []string{"31"}},
		{name: "power of two", in: "1024", n: "1024", want: []string{"2", "2", "2", "2", "2", "2", "2", "2", "2", "2"}},
		{name: "project euler", in: "600851475143", n: "600851475143", want: []string{"71", "839", "1471", "6857"}},
		{name: "semiprime beyond trial limit", in: "1000036000099", n: "1000036000099", want: []string{"1000003", "1000033"}},
		{name: "square of large prime", in: "1000006000009", n: "1000006000009", want: []string{"1000003", "1000003"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.Factor(context.Background(), tt.in, false)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.N != tt.n {
				t.Errorf("N = %s, want %s", res.N, tt.n)
			}
			if !reflect.DeepEqual(res.Factors, tt.want) {
				t.Errorf("factors = %v, want %v", res.Factors, tt.want)
			}
			if res.Source != SourceInternal {
				t.Errorf("source = %s, want %s", res.Source, SourceInternal)
			}
		})
	}
}

func TestFactorInvalid(t *testing.T) {
	_, err := NewFactorer().Factor(context.Background(), "twelve", false)
	if !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
}

func TestFactorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFactorer().Factor(ctx, "1000036000099", false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]FactorResult
	puts int
}

func (m *memoryStore) Get(_ context.Context, n string) (FactorResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.data[n]
	return res, ok, nil
}

func (m *memoryStore) Put(_ context.Context, res FactorResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]FactorResult)
	}
	m.data[res.N] = res
	m.puts++
	return nil
}

func TestFactorUsesStore(t *testing.T) {
	store := &memoryStore{}
	f := NewFactorer(WithStore(store))
	ctx := context.Background()

	first, err := f.Factor(ctx, "-600851475143", false)
	if err != nil {
		t.Fatalf("first factor: %v", err)
	}
	if first.Source != SourceInternal {
		t.Fatalf("first source = %s", first.Source)
	}
	if _, ok := store.data["600851475143"]; !ok {
		t.Fatalf("expected store keyed by |n|, got %v", store.data)
	}

	second, err := f.Factor(ctx, "600851475143", false)
	if err != nil {
		t.Fatalf("second factor: %v", err)
	}
	if second.Source != SourceCache {
		t.Fatalf("second source = %s, want cache", second.Source)
	}
	if second.N != "600851475143" || !reflect.DeepEqual(second.Factors, first.Factors) {
		t.Fatalf("cached result mismatch: %+v vs %+v", second, first)
	}
	if store.puts != 1 {
		t.Fatalf("puts = %d, want 1", store.puts)
	}
}

type stubSolver struct {
	available bool
	result    SolverResult
	calls     int
}

func (s *stubSolver) Name() string    { return SourceYafu }
func (s *stubSolver) Available() bool { return s.available }
func (s *stubSolver) Solve(_ context.Context, p Problem) SolverResult {
	s.calls++
	return s.result
}

func TestFactorPrefersExternal(t *testing.T) {
	ok := SolverResult{Found: true, Values: map[string]interface{}{"factors": []string{"1000033", "1000003"}}}
	wrong := SolverResult{Found: true, Values: map[string]interface{}{"factors": []string{"7", "11"}}}
	failed := SolverResult{Error: "yafu timed out"}

	tests := []struct {
		name       string
		solver     *stubSolver
		prefer     bool
		wantSource string
		wantCalls  int
	}{
		{name: "accepted", solver: &stubSolver{available: true, result: ok}, prefer: true, wantSource: SourceYafu, wantCalls: 1},
		{name: "not preferred", solver: &stubSolver{available: true, result: ok}, prefer: false, wantSource: SourceInternal},
		{name: "unavailable", solver: &stubSolver{available: false, result: ok}, prefer: true, wantSource: SourceInternal},
		{name: "product mismatch", solver: &stubSolver{available: true, result: wrong}, prefer: true, wantSource: SourceInternal, wantCalls: 1},
		{name: "solver failure", solver: &stubSolver{available: true, result: failed}, prefer: true, wantSource: SourceInternal, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFactorer(WithExternalSolver(tt.solver))
			res, err := f.Factor(context.Background(), "1000036000099", tt.prefer)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Source != tt.wantSource {
				t.Errorf("source = %s, want %s", res.Source, tt.wantSource)
			}
			if !reflect.DeepEqual(res.Factors, []string{"1000003", "1000033"}) {
				t.Errorf("factors = %v", res.Factors)
			}
			if tt.solver.calls != tt.wantCalls {
				t.Errorf("solver calls = %d, want %d", tt.solver.calls, tt.wantCalls)
			}
		})
	}
}
