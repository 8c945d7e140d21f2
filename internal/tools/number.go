package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/RowanDark/cryptbreak/internal/logging"
	"github.com/RowanDark/cryptbreak/internal/numtheory"
	"github.com/RowanDark/cryptbreak/internal/observability/metrics"
	"github.com/RowanDark/cryptbreak/internal/observability/tracing"
)

func (k *Toolkit) numberTools() []Tool {
	return []Tool{
		New("factor_integer", "Factor an integer, preferring yafu when it is installed.",
			[]Param{
				required("n", "integer", "decimal or 0x-prefixed integer, as a number or string"),
				param("prefer_external", "boolean", "try the external factoring tool first", true),
			},
			k.factorInteger),
		New("discrete_log", "Solve g = base^x mod p with SageMath.",
			[]Param{
				required("g", "integer", "target element"),
				required("p", "integer", "prime modulus"),
				param("base", "integer", "base; the field generator when omitted", nil),
				param("method", "string", "auto, bsgs, rho or lambda", "auto"),
			},
			k.sageTool(numtheory.KindDiscreteLog, func(p Params) (numtheory.Problem, error) {
				return scalarProblem(numtheory.KindDiscreteLog, p, []string{"g", "p"}, []string{"base"}, "method")
			})),
		New("crt", "Solve a system x = r (mod m) with the Chinese remainder theorem.",
			[]Param{
				param("congruences", "array", "[[remainder, modulus], ...]", nil),
				param("remainders", "array", "remainders, used with moduli", nil),
				param("moduli", "array", "moduli, used with remainders", nil),
			},
			k.sageTool(numtheory.KindCRT, crtProblem)),
		New("linear_congruence", "Solve a system a*x = b (mod m).",
			[]Param{
				required("coefficients", "array", "a values"),
				required("remainders", "array", "b values"),
				required("moduli", "array", "m values"),
			},
			k.sageTool(numtheory.KindLinearCongruence, func(p Params) (numtheory.Problem, error) {
				return listProblem(numtheory.KindLinearCongruence, p, "coefficients", "remainders", "moduli")
			})),
		New("ecm_factor", "Find a factor of n with the elliptic curve method.",
			[]Param{required("n", "integer", "integer to split")},
			k.sageTool(numtheory.KindECM, func(p Params) (numtheory.Problem, error) {
				return scalarProblem(numtheory.KindECM, p, []string{"n"}, nil, "")
			})),
		New("ec_point_add", "Add two points on y^2 = x^3 + ax + b over GF(p).",
			[]Param{
				required("a", "integer", "curve coefficient a"),
				required("b", "integer", "curve coefficient b"),
				required("p", "integer", "field prime"),
				required("p1", "array", "first point [x, y]"),
				required("p2", "array", "second point [x, y]"),
			},
			k.sageTool(numtheory.KindECPointAdd, ecPointAddProblem)),
		New("coppersmith", "Find small roots of a polynomial modulo n.",
			[]Param{
				required("n", "integer", "modulus"),
				param("e", "integer", "value bound to e in the polynomial", nil),
				required("polynomial", "string", "polynomial over x, e and n, e.g. (x + 42)^3 - 8"),
				param("beta", "number", "factor size exponent in (0, 1]", 0.5),
				param("bound", "integer", "root bound X", nil),
			},
			k.sageTool(numtheory.KindCoppersmith, coppersmithProblem)),
		New("quadratic_residue", "Find every square root of a modulo the prime p.",
			[]Param{
				required("a", "integer", "residue"),
				required("p", "integer", "prime modulus"),
			},
			k.sageTool(numtheory.KindQuadraticResidue, func(p Params) (numtheory.Problem, error) {
				return scalarProblem(numtheory.KindQuadraticResidue, p, []string{"a", "p"}, nil, "")
			})),
	}
}

func (k *Toolkit) factorInteger(ctx context.Context, p Params) (any, error) {
	n, err := p.Integer("n")
	if err != nil {
		return nil, err
	}
	prefer, err := p.Bool("prefer_external", true)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := k.Factorer.Factor(ctx, n, prefer)
	if errors.Is(err, numtheory.ErrInvalidNumber) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if err != nil {
		return nil, err
	}
	if res.Source != numtheory.SourceInternal && res.Source != numtheory.SourceCache {
		k.recordSolver(ctx, "factor_integer", res.Source, numtheory.KindFactor, true, time.Since(start), "")
	}
	return res, nil
}

type problemBuilder func(p Params) (numtheory.Problem, error)

// sageTool validates the problem up front so bad input is reported as
// invalid parameters rather than as a solver failure.
func (k *Toolkit) sageTool(kind string, build problemBuilder) Handler {
	return func(ctx context.Context, p Params) (any, error) {
		prob, err := build(p)
		if err != nil {
			return nil, err
		}
		if _, err := numtheory.SageScript(prob); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParams, kind, err)
		}
		return k.solve(ctx, kind, prob), nil
	}
}

func (k *Toolkit) solve(ctx context.Context, tool string, prob numtheory.Problem) numtheory.SolverResult {
	ctx, span := tracing.StartSpan(ctx, "solver."+k.Sage.Name(), tracing.WithSpanKind(tracing.SpanKindClient),
		tracing.WithAttributes(map[string]any{"solver.kind": prob.Kind}))
	res := k.Sage.Solve(ctx, prob)
	var spanErr error
	if res.Error != "" {
		spanErr = errors.New(res.Error)
	}
	tracing.EndSpan(span, spanErr)
	k.recordSolver(ctx, tool, k.Sage.Name(), prob.Kind, res.Found, res.Elapsed, res.Error)
	return res
}

func (k *Toolkit) recordSolver(ctx context.Context, tool, solver, kind string, found bool, elapsed time.Duration, failure string) {
	metrics.RecordSolverCall(solver, kind, found)
	event := logging.AuditEvent{
		InvocationID: InvocationID(ctx),
		Tool:         tool,
		EventType:    logging.EventSolverCall,
		Decision:     logging.DecisionInfo,
		Duration:     float64(elapsed) / float64(time.Millisecond),
		Metadata: map[string]any{
			"solver": solver,
			"kind":   kind,
			"found":  found,
		},
	}
	if failure != "" {
		event.Reason = failure
	}
	k.Audit.EmitOrLog(k.Logger, event)
}

// scalarProblem reads the required integers, the optional integers and an
// optional free-form string parameter into a Problem.
func scalarProblem(kind string, p Params, req, opt []string, text string) (numtheory.Problem, error) {
	prob := numtheory.Problem{Kind: kind, Params: make(map[string]string)}
	for _, name := range req {
		v, err := p.Integer(name)
		if err != nil {
			return prob, err
		}
		prob.Params[name] = v
	}
	for _, name := range opt {
		v, err := p.OptInteger(name)
		if err != nil {
			return prob, err
		}
		if v != "" {
			prob.Params[name] = v
		}
	}
	if text != "" {
		v, err := p.OptString(text, "")
		if err != nil {
			return prob, err
		}
		if v != "" {
			prob.Params[text] = v
		}
	}
	return prob, nil
}

func listProblem(kind string, p Params, names ...string) (numtheory.Problem, error) {
	prob := numtheory.Problem{Kind: kind, Lists: make(map[string][]string, len(names))}
	for _, name := range names {
		vals, err := p.Integers(name)
		if err != nil {
			return prob, err
		}
		if len(vals) == 0 {
			return prob, invalidf("missing required parameter %s", name)
		}
		prob.Lists[name] = vals
	}
	return prob, nil
}

func crtProblem(p Params) (numtheory.Problem, error) {
	pairs, err := p.Pairs("congruences")
	if err != nil {
		return numtheory.Problem{}, err
	}
	if len(pairs) == 0 {
		return listProblem(numtheory.KindCRT, p, "remainders", "moduli")
	}
	prob := numtheory.Problem{Kind: numtheory.KindCRT, Lists: map[string][]string{}}
	for _, pair := range pairs {
		prob.Lists["remainders"] = append(prob.Lists["remainders"], pair[0])
		prob.Lists["moduli"] = append(prob.Lists["moduli"], pair[1])
	}
	return prob, nil
}

func ecPointAddProblem(p Params) (numtheory.Problem, error) {
	prob, err := scalarProblem(numtheory.KindECPointAdd, p, []string{"a", "b", "p"}, nil, "")
	if err != nil {
		return prob, err
	}
	for i, name := range []string{"p1", "p2"} {
		x, y, err := p.Point(name)
		if err != nil {
			return prob, err
		}
		suffix := strconv.Itoa(i + 1)
		prob.Params["x"+suffix] = x
		prob.Params["y"+suffix] = y
	}
	return prob, nil
}

func coppersmithProblem(p Params) (numtheory.Problem, error) {
	prob, err := scalarProblem(numtheory.KindCoppersmith, p, []string{"n"}, []string{"e", "bound"}, "polynomial")
	if err != nil {
		return prob, err
	}
	if prob.Params["polynomial"] == "" {
		return prob, invalidf("missing required parameter polynomial")
	}
	beta, err := p.Float("beta", 0.5)
	if err != nil {
		return prob, err
	}
	prob.Params["beta"] = strconv.FormatFloat(beta, 'f', -1, 64)
	return prob, nil
}
