package numtheory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Problem kinds understood by the solvers.
const (
	KindFactor           = "factor"
	KindDiscreteLog      = "discrete_log"
	KindCRT              = "crt"
	KindLinearCongruence = "linear_congruence"
	KindECM              = "ecm"
	KindECPointAdd       = "ec_point_add"
	KindCoppersmith      = "coppersmith"
	KindQuadraticResidue = "quadratic_residue"
)

// Problem is a solver request. Params holds scalar arguments and Lists holds
// the per-congruence arguments of the CRT and linear congruence kinds.
type Problem struct {
	Kind   string              `json:"kind"`
	Params map[string]string   `json:"params,omitempty"`
	Lists  map[string][]string `json:"lists,omitempty"`
}

// SolverResult is the outcome of a solver call. Failures, including a
// missing binary or a timeout, set Error and leave Found false.
type SolverResult struct {
	Found   bool                   `json:"found"`
	Values  map[string]interface{} `json:"values,omitempty"`
	Method  string                 `json:"method"`
	Elapsed time.Duration          `json:"elapsed_ns"`
	Error   string                 `json:"error,omitempty"`
}

// ExternalSolver is a number theory backend running outside the process.
type ExternalSolver interface {
	Name() string
	Available() bool
	Solve(ctx context.Context, p Problem) SolverResult
}

// Runner executes binary with args and returns its captured output. A
// non-zero exit is reported as an *exec.ExitError alongside the output.
type Runner func(ctx context.Context, binary string, args ...string) (stdout, stderr []byte, err error)

// ExecRunner runs the binary as a subprocess bound to ctx.
func ExecRunner(ctx context.Context, binary string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) // #nosec G204 -- binary comes from configuration.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// SolverOption configures the yafu and Sage solvers.
type SolverOption func(*binarySolver)

// WithBinary sets the executable path or name instead of searching PATH for
// the default names.
func WithBinary(path string) SolverOption {
	return func(s *binarySolver) {
		if p := strings.TrimSpace(path); p != "" {
			s.candidates = []string{p}
		}
	}
}

// WithTimeout bounds each solver run.
func WithTimeout(d time.Duration) SolverOption {
	return func(s *binarySolver) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRunner replaces ExecRunner.
func WithRunner(r Runner) SolverOption {
	return func(s *binarySolver) {
		if r != nil {
			s.run = r
		}
	}
}

// WithSolverLogger sets the logger for solver runs.
func WithSolverLogger(l *slog.Logger) SolverOption {
	return func(s *binarySolver) {
		if l != nil {
			s.logger = l
		}
	}
}

var errNotInstalled = errors.New("not installed")

// binarySolver holds what the yafu and Sage bridges share: locating the
// executable and running it under a timeout.
type binarySolver struct {
	name       string
	candidates []string
	timeout    time.Duration
	run        Runner
	logger     *slog.Logger
	lookPath   func(string) (string, error)
}

func newBinarySolver(name string, timeout time.Duration, candidates []string, opts []SolverOption) binarySolver {
	s := binarySolver{
		name:       name,
		candidates: candidates,
		timeout:    timeout,
		run:        ExecRunner,
		logger:     slog.Default(),
		lookPath:   exec.LookPath,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func (s binarySolver) binary() (string, error) {
	for _, c := range s.candidates {
		if path, err := s.lookPath(c); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s %w", s.name, errNotInstalled)
}

func (s binarySolver) available() bool {
	_, err := s.binary()
	return err == nil
}

// invoke runs the solver binary. Exit status is ignored as long as the
// process ran; the callers judge success from the output.
func (s binarySolver) invoke(ctx context.Context, args ...string) (string, string, error) {
	bin, err := s.binary()
	if err != nil {
		return "", "", err
	}
	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	stdout, stderr, err := s.run(runCtx, bin, args...)
	if runCtx.Err() != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", "", fmt.Errorf("%s timed out after %s", s.name, s.timeout)
		}
		return "", "", fmt.Errorf("%s cancelled: %w", s.name, ctx.Err())
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", "", fmt.Errorf("run %s: %w", s.name, err)
	}
	return string(stdout), string(stderr), nil
}

// failure builds the SolverResult for a run that produced no answer.
func failure(method string, start time.Time, err error) SolverResult {
	return SolverResult{Method: method, Elapsed: time.Since(start), Error: err.Error()}
}
