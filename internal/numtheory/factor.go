package numtheory

import (
	"context"
	"log/slog"
	"math/big"
	"sort"
)

// Factorization sources.
const (
	SourceInternal = "internal"
	SourceCache    = "cache"
)

// DefaultTrialLimit is the largest trial divisor tried before Pollard rho.
const DefaultTrialLimit = 100000

// smallPrimeBound stops trial division early once the cofactor is a prime
// below it.
var smallPrimeBound = big.NewInt(1000000)

// FactorResult is a factorization of N. Factors are ascending decimal strings
// with multiplicity.
type FactorResult struct {
	N       string   `json:"n"`
	Factors []string `json:"factors"`
	Source  string   `json:"source"`
}

// Store caches completed factorizations keyed by the decimal |n|.
type Store interface {
	Get(ctx context.Context, n string) (FactorResult, bool, error)
	Put(ctx context.Context, res FactorResult) error
}

// Factorer factors integers, consulting an optional store and external
// solver before falling back to trial division and Pollard rho.
type Factorer struct {
	store      Store
	external   ExternalSolver
	trialLimit int64
	logger     *slog.Logger
}

// FactorerOption configures a Factorer.
type FactorerOption func(*Factorer)

// WithStore enables the factorization cache.
func WithStore(s Store) FactorerOption {
	return func(f *Factorer) {
		f.store = s
	}
}

// WithExternalSolver sets the solver preferred for KindFactor problems.
func WithExternalSolver(s ExternalSolver) FactorerOption {
	return func(f *Factorer) {
		f.external = s
	}
}

// WithTrialLimit overrides DefaultTrialLimit.
func WithTrialLimit(limit int64) FactorerOption {
	return func(f *Factorer) {
		if limit > 2 {
			f.trialLimit = limit
		}
	}
}

// WithFactorLogger sets the logger used for cache and solver diagnostics.
func WithFactorLogger(l *slog.Logger) FactorerOption {
	return func(f *Factorer) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFactorer builds a Factorer.
func NewFactorer(opts ...FactorerOption) *Factorer {
	f := &Factorer{trialLimit: DefaultTrialLimit, logger: slog.Default()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Factor factors the integer in input. Negative numbers are factored by
// their absolute value, 1 has no factors and 0 factors as [0]. When
// preferExternal is set and the external solver is available its answer is
// used if it checks out. The context bounds Pollard rho.
func (f *Factorer) Factor(ctx context.Context, input string, preferExternal bool) (FactorResult, error) {
	n, err := ParseInt(input)
	if err != nil {
		return FactorResult{}, err
	}
	abs := new(big.Int).Abs(n)
	res := FactorResult{N: n.String(), Factors: []string{}, Source: SourceInternal}

	switch abs.Cmp(one) {
	case -1:
		res.Factors = []string{"0"}
		return res, nil
	case 0:
		return res, nil
	}

	key := abs.String()
	if f.store != nil {
		cached, ok, err := f.store.Get(ctx, key)
		if err != nil {
			f.logger.Warn("factor store lookup failed", "n", key, "error", err)
		} else if ok {
			res.Factors = cached.Factors
			res.Source = SourceCache
			return res, nil
		}
	}

	factors, source := f.fromExternal(ctx, abs, preferExternal)
	if factors == nil {
		internal, err := factorInternal(ctx, abs, f.trialLimit)
		if err != nil {
			return FactorResult{}, err
		}
		factors, source = internal, SourceInternal
	}
	res.Factors = decimalStrings(factors)
	res.Source = source

	if f.store != nil {
		if err := f.store.Put(ctx, FactorResult{N: key, Factors: res.Factors, Source: source}); err != nil {
			f.logger.Warn("factor store write failed", "n", key, "error", err)
		}
	}
	return res, nil
}

func (f *Factorer) fromExternal(ctx context.Context, n *big.Int, prefer bool) ([]*big.Int, string) {
	if !prefer || f.external == nil || !f.external.Available() {
		return nil, ""
	}
	out := f.external.Solve(ctx, Problem{Kind: KindFactor, Params: map[string]string{"n": n.String()}})
	if !out.Found {
		f.logger.Debug("external factorization failed", "solver", f.external.Name(), "error", out.Error)
		return nil, ""
	}
	raw, _ := out.Values["factors"].([]string)
	factors, err := ParseInts(raw)
	if err != nil || len(factors) == 0 || product(factors).Cmp(n) != 0 {
		f.logger.Warn("external factorization rejected", "solver", f.external.Name(), "n", n.String())
		return nil, ""
	}
	sortInts(factors)
	return factors, f.external.Name()
}

func factorInternal(ctx context.Context, n *big.Int, limit int64) ([]*big.Int, error) {
	factors, rem := trialDivide(n, limit)
	if rem.Cmp(one) > 0 {
		var err error
		if factors, err = factorRecursive(ctx, rem, factors); err != nil {
			return nil, err
		}
	}
	sortInts(factors)
	return factors, nil
}

// trialDivide strips factors up to limit and returns them with the
// unfactored remainder.
func trialDivide(n *big.Int, limit int64) ([]*big.Int, *big.Int) {
	m := new(big.Int).Set(n)
	var factors []*big.Int
	q, r := new(big.Int), new(big.Int)

	for m.Bit(0) == 0 && m.Sign() > 0 {
		factors = append(factors, big.NewInt(2))
		m.Rsh(m, 1)
	}

	f := big.NewInt(3)
	sq := new(big.Int)
	for f.Int64() <= limit && sq.Mul(f, f).Cmp(m) <= 0 {
		for {
			q.QuoRem(m, f, r)
			if r.Sign() != 0 {
				break
			}
			factors = append(factors, new(big.Int).Set(f))
			m.Set(q)
		}
		f.Add(f, two)
		if m.Cmp(one) > 0 && m.Cmp(smallPrimeBound) < 0 && IsProbablePrime(m) {
			break
		}
	}
	if m.Cmp(one) > 0 && IsProbablePrime(m) {
		factors = append(factors, m)
		m = big.NewInt(1)
	}
	return factors, m
}

func factorRecursive(ctx context.Context, n *big.Int, out []*big.Int) ([]*big.Int, error) {
	if n.Cmp(one) == 0 {
		return out, nil
	}
	if IsProbablePrime(n) {
		return append(out, n), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, err := pollardRho(ctx, n)
	if err != nil {
		return nil, err
	}
	if out, err = factorRecursive(ctx, d, out); err != nil {
		return nil, err
	}
	return factorRecursive(ctx, new(big.Int).Quo(n, d), out)
}

// pollardRho finds a non-trivial divisor of the composite n with Floyd
// cycle detection, moving to the next polynomial constant on failure.
func pollardRho(ctx context.Context, n *big.Int) (*big.Int, error) {
	if n.Bit(0) == 0 {
		return big.NewInt(2), nil
	}
	diff := new(big.Int)
	for c := int64(1); ; c++ {
		cc := big.NewInt(c)
		step := func(v *big.Int) {
			v.Mul(v, v)
			v.Add(v, cc)
			v.Mod(v, n)
		}
		x, y, d := big.NewInt(2), big.NewInt(2), big.NewInt(1)
		for i := 0; d.Cmp(one) == 0; i++ {
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			step(x)
			step(y)
			step(y)
			diff.Sub(x, y)
			diff.Abs(diff)
			d.GCD(nil, nil, diff, n)
		}
		if d.Cmp(n) != 0 {
			return d, nil
		}
	}
}

func sortInts(values []*big.Int) {
	sort.Slice(values, func(i, j int) bool {
		return values[i].Cmp(values[j]) < 0
	})
}
