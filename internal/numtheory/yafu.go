package numtheory

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// SourceYafu names results produced by the yafu bridge.
const SourceYafu = "yafu"

// DefaultYafuTimeout bounds one yafu run.
const DefaultYafuTimeout = 10 * time.Second

var yafuNames = []string{"yafu-x64.exe", "yafu.exe", "yafu"}

// Yafu runs the yafu factoring utility. It only answers KindFactor problems.
type Yafu struct {
	binarySolver
}

// NewYafu returns a yafu bridge. Without WithBinary it searches PATH.
func NewYafu(opts ...SolverOption) *Yafu {
	return &Yafu{binarySolver: newBinarySolver(SourceYafu, DefaultYafuTimeout, yafuNames, opts)}
}

func (y *Yafu) Name() string { return SourceYafu }

func (y *Yafu) Available() bool { return y.available() }

// Solve factors Params["n"]. The answer is accepted only when the product of
// the reported factors equals n.
func (y *Yafu) Solve(ctx context.Context, p Problem) SolverResult {
	start := time.Now()
	if p.Kind != KindFactor {
		return failure(SourceYafu, start, fmt.Errorf("yafu cannot solve %q problems", p.Kind))
	}
	n, err := ParseInt(p.Params["n"])
	if err != nil {
		return failure(SourceYafu, start, err)
	}
	n.Abs(n)

	stdout, stderr, err := y.invoke(ctx, fmt.Sprintf("factor(%s)", n.String()))
	if err != nil {
		y.logger.Debug("yafu run failed", "n", n.String(), "error", err)
		return failure(SourceYafu, start, err)
	}
	factors, ok := ParseYafuOutput(stdout+stderr, n)
	if !ok {
		return failure(SourceYafu, start, fmt.Errorf("yafu output did not factor %s", n.String()))
	}
	return SolverResult{
		Found:   true,
		Values:  map[string]interface{}{"factors": decimalStrings(factors)},
		Method:  SourceYafu,
		Elapsed: time.Since(start),
	}
}

// ParseYafuOutput extracts a factorization of n from yafu's output. The
// "ans = a * b" summary is preferred over the P/PRP factor listing, and a
// parse is only accepted when its product equals n.
func ParseYafuOutput(out string, n *big.Int) ([]*big.Int, bool) {
	for _, factors := range [][]*big.Int{parseYafuAns(out), parseYafuFactorLines(out)} {
		if len(factors) > 0 && product(factors).Cmp(n) == 0 {
			sortInts(factors)
			return factors, true
		}
	}
	return nil, false
}

func parseYafuAns(out string) []*big.Int {
	for _, line := range strings.Split(out, "\n") {
		t := strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(t), "ans =") {
			continue
		}
		rhs := strings.TrimSpace(t[strings.Index(t, "=")+1:])
		var vals []*big.Int
		for _, tok := range strings.Split(rhs, "*") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			v, ok := new(big.Int).SetString(tok, 10)
			if !ok {
				return nil
			}
			vals = append(vals, v)
		}
		return vals
	}
	return nil
}

// parseYafuFactorLines collects the integers on consecutive P/PRP lines and
// returns the last such group. "fac:" lines start a new group.
func parseYafuFactorLines(out string) []*big.Int {
	var last, current []*big.Int
	flush := func() {
		if len(current) > 0 {
			last = current
			current = nil
		}
	}
	for _, line := range strings.Split(out, "\n") {
		t := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(t, "P"):
			current = append(current, integerTokens(t)...)
		case strings.HasPrefix(t, "fac:"):
			flush()
			current = append(current, integerTokens(t)...)
		default:
			flush()
		}
	}
	flush()
	return last
}

func integerTokens(line string) []*big.Int {
	var out []*big.Int
	for _, tok := range strings.Fields(line) {
		if v, ok := new(big.Int).SetString(tok, 10); ok {
			out = append(out, v)
		}
	}
	return out
}
