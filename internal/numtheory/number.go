// Package numtheory factors integers and bridges to external number theory
// solvers (yafu and SageMath). Solver failures are reported as SolverResult
// values so callers can surface them without aborting.
package numtheory

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// ErrInvalidNumber is returned for input that is not a decimal or prefixed
// (0x, 0o, 0b) integer.
var ErrInvalidNumber = errors.New("invalid number")

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
	two  = big.NewInt(2)
)

// ParseInt parses a decimal or 0x/0o/0b prefixed integer with an optional
// sign. Underscores between digits are accepted.
func ParseInt(s string) (*big.Int, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidNumber)
	}
	n, ok := new(big.Int).SetString(t, 0)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return n, nil
}

// ParseInts parses every element of values with ParseInt.
func ParseInts(values []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		n, err := ParseInt(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// IsProbablePrime reports whether n is prime with overwhelming probability.
func IsProbablePrime(n *big.Int) bool {
	if n.Sign() <= 0 {
		return false
	}
	return n.ProbablyPrime(20)
}

func product(factors []*big.Int) *big.Int {
	p := big.NewInt(1)
	for _, f := range factors {
		p.Mul(p, f)
	}
	return p
}

func decimalStrings(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}
