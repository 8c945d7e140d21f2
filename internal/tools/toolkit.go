package tools

import (
	"context"
	"log/slog"

	"github.com/RowanDark/cryptbreak/internal/breaker"
	"github.com/RowanDark/cryptbreak/internal/cipher"
	"github.com/RowanDark/cryptbreak/internal/logging"
	"github.com/RowanDark/cryptbreak/internal/numtheory"
	"github.com/RowanDark/cryptbreak/internal/scoring"
	"github.com/RowanDark/cryptbreak/internal/symmetric"
)

// Toolkit holds the components the built-in tools dispatch to. Nil fields
// are filled with defaults by Register.
type Toolkit struct {
	Scorer    *scoring.Scorer
	Breaker   *breaker.Breaker
	Detector  *cipher.EncodingDetector
	Decrypter *symmetric.Decrypter
	Factorer  *numtheory.Factorer
	Sage      numtheory.ExternalSolver
	// FactorStoreSize reports the number of cached factorizations. Optional.
	FactorStoreSize func(ctx context.Context) (int, error)
	Audit           *logging.AuditLogger
	Logger          *slog.Logger
}

func (k *Toolkit) defaults() {
	if k.Logger == nil {
		k.Logger = slog.Default()
	}
	if k.Scorer == nil {
		k.Scorer = scoring.New()
	}
	if k.Breaker == nil {
		k.Breaker = breaker.New(k.Scorer)
	}
	if k.Detector == nil {
		k.Detector = cipher.NewEncodingDetector(k.Scorer)
	}
	if k.Decrypter == nil {
		k.Decrypter = symmetric.New(symmetric.WithLogger(k.Logger))
	}
	if k.Factorer == nil {
		k.Factorer = numtheory.NewFactorer(numtheory.WithFactorLogger(k.Logger))
	}
	if k.Sage == nil {
		k.Sage = numtheory.NewSage(numtheory.WithSolverLogger(k.Logger))
	}
}

// Register adds every built-in tool to r.
func (k *Toolkit) Register(r *Registry) error {
	k.defaults()
	groups := [][]Tool{
		k.classicTools(),
		k.xorTools(),
		k.encodingTools(),
		k.symmetricTools(),
		k.numberTools(),
		k.cacheTools(),
	}
	for _, group := range groups {
		for _, t := range group {
			if err := r.Register(t); err != nil {
				return err
			}
		}
	}
	return nil
}

// NewDefaultRegistry returns a registry populated from k.
func NewDefaultRegistry(k *Toolkit, opts ...RegistryOption) (*Registry, error) {
	if k == nil {
		k = &Toolkit{}
	}
	if k.Audit != nil {
		opts = append([]RegistryOption{WithAuditLogger(k.Audit)}, opts...)
	}
	if k.Logger != nil {
		opts = append([]RegistryOption{WithLogger(k.Logger)}, opts...)
	}
	r := NewRegistry(opts...)
	if err := k.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

func param(name, typ, description string, def any) Param {
	return Param{Name: name, Type: typ, Default: def, Description: description}
}

func required(name, typ, description string) Param {
	return Param{Name: name, Type: typ, Required: true, Description: description}
}

// positive rejects non-positive values for counts such as top_k.
func positive(p Params, name string, def int) (int, error) {
	v, err := p.Int(name, def)
	if err != nil {
		return 0, err
	}
	if v < 1 {
		return 0, invalidf("%s must be at least 1", name)
	}
	return v, nil
}
