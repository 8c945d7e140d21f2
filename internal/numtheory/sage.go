package numtheory

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// SourceSage names results produced by the SageMath bridge.
const SourceSage = "sage"

// DefaultSageTimeout bounds one Sage run.
const DefaultSageTimeout = 60 * time.Second

var sageNames = []string{"sage", "sage.exe", "sagemath"}

var discreteLogMethods = map[string]bool{"auto": true, "bsgs": true, "rho": true, "lambda": true}

// polynomialPattern restricts Coppersmith polynomials to arithmetic over x,
// e and n.
var polynomialPattern = regexp.MustCompile(`^[0-9xen+\-*^() ]+$`)

// Sage runs small scripts under `sage --python -c`. Each script prints a
// line protocol (RESULT:, X:, ROOTS:, ERROR: ...) that Solve parses.
type Sage struct {
	binarySolver
}

// NewSage returns a SageMath bridge. Without WithBinary it searches PATH.
func NewSage(opts ...SolverOption) *Sage {
	return &Sage{binarySolver: newBinarySolver(SourceSage, DefaultSageTimeout, sageNames, opts)}
}

func (s *Sage) Name() string { return SourceSage }

func (s *Sage) Available() bool { return s.available() }

// Solve runs the script for p.Kind and parses its output.
func (s *Sage) Solve(ctx context.Context, p Problem) SolverResult {
	start := time.Now()
	method := p.Kind
	if p.Kind == KindDiscreteLog {
		method = discreteLogMethod(p)
	}
	script, err := SageScript(p)
	if err != nil {
		return failure(method, start, err)
	}
	stdout, _, err := s.invoke(ctx, "--python", "-c", script)
	if err != nil {
		s.logger.Debug("sage run failed", "kind", p.Kind, "error", err)
		return failure(method, start, err)
	}
	res := parseSageOutput(p.Kind, stdout)
	res.Method = method
	res.Elapsed = time.Since(start)
	return res
}

func discreteLogMethod(p Problem) string {
	if m := strings.ToLower(strings.TrimSpace(p.Params["method"])); m != "" {
		return m
	}
	return "auto"
}

// SageScript validates p and renders its script. Every number is parsed
// and re-rendered in decimal before it reaches the script.
func SageScript(p Problem) (string, error) {
	switch p.Kind {
	case KindDiscreteLog:
		return discreteLogScript(p)
	case KindCRT:
		return crtScript(p)
	case KindLinearCongruence:
		return linearCongruenceScript(p)
	case KindECM:
		return ecmScript(p)
	case KindECPointAdd:
		return ecPointAddScript(p)
	case KindCoppersmith:
		return coppersmithScript(p)
	case KindQuadraticResidue:
		return quadraticResidueScript(p)
	default:
		return "", fmt.Errorf("sage cannot solve %q problems", p.Kind)
	}
}

func params(p Problem, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	for _, name := range names {
		n, err := ParseInt(p.Params[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[name] = n.String()
	}
	return out, nil
}

func lists(p Problem, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	size := -1
	for _, name := range names {
		vals, err := ParseInts(p.Lists[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(vals) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", ErrInvalidNumber, name)
		}
		if size >= 0 && len(vals) != size {
			return nil, fmt.Errorf("%w: %s has %d values, want %d", ErrInvalidNumber, name, len(vals), size)
		}
		size = len(vals)
		out[name] = "[" + strings.Join(decimalStrings(vals), ", ") + "]"
	}
	return out, nil
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var discreteLogTmpl = template.Must(template.New("dlog").Parse(`from sage.all import *
import time
p = {{.p}}
g = {{.g}}
F = GF(p)
base = {{if .base}}F({{.base}}){{else}}F.multiplicative_generator(){{end}}
start = time.time()
try:
    x = discrete_log(F(g), base{{if .algorithm}}, algorithm='{{.algorithm}}'{{end}})
    print("RESULT:", x)
    print("TIME:", time.time() - start)
except Exception as exc:
    print("ERROR:", exc)
`))

func discreteLogScript(p Problem) (string, error) {
	data, err := params(p, "g", "p")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(p.Params["base"]) != "" {
		base, err := ParseInt(p.Params["base"])
		if err != nil {
			return "", fmt.Errorf("base: %w", err)
		}
		data["base"] = base.String()
	}
	method := discreteLogMethod(p)
	if !discreteLogMethods[method] {
		return "", fmt.Errorf("unknown discrete log method %q", method)
	}
	if method != "auto" {
		data["algorithm"] = method
	}
	return render(discreteLogTmpl, data)
}

var crtTmpl = template.Must(template.New("crt").Parse(`from sage.all import *
remainders = {{.remainders}}
moduli = {{.moduli}}
try:
    x = crt(remainders, moduli)
    print("X:", x)
    print("MODULUS:", lcm(moduli))
except ValueError:
    print("NO_SOLUTION")
except Exception as exc:
    print("ERROR:", exc)
`))

func crtScript(p Problem) (string, error) {
	data, err := lists(p, "remainders", "moduli")
	if err != nil {
		return "", err
	}
	return render(crtTmpl, data)
}

// A system of a_i*x = b_i (mod n_i) reduces each congruence by
// gcd(a_i, n_i) and combines the results with CRT.
var linearCongruenceTmpl = template.Must(template.New("lincong").Parse(`from sage.all import *
coeffs = {{.coefficients}}
rems = {{.remainders}}
mods = {{.moduli}}
def solve():
    xs = []
    ms = []
    for a, b, n in zip(coeffs, rems, mods):
        g = gcd(a, n)
        if b % g != 0:
            print("NO_SOLUTION")
            return
        if a % n == 0:
            continue
        m = n // g
        xs.append(((b // g) * inverse_mod(a // g, m)) % m)
        ms.append(m)
    if not xs:
        print("X: ANY")
        return
    try:
        x = crt(xs, ms)
    except ValueError:
        print("NO_SOLUTION")
        return
    print("X:", x)
    print("MODULUS:", lcm(ms))
try:
    solve()
except Exception as exc:
    print("ERROR:", exc)
`))

func linearCongruenceScript(p Problem) (string, error) {
	data, err := lists(p, "coefficients", "remainders", "moduli")
	if err != nil {
		return "", err
	}
	return render(linearCongruenceTmpl, data)
}

var ecmTmpl = template.Must(template.New("ecm").Parse(`from sage.all import *
n = Integer({{.n}})
try:
    f = Integer(ecm.find_factor(n)[0])
    if 1 < f < n:
        print("FACTOR:", f)
        print("REMAINING:", n // f)
    else:
        print("NO_FACTOR")
except Exception as exc:
    print("ERROR:", exc)
`))

func ecmScript(p Problem) (string, error) {
	data, err := params(p, "n")
	if err != nil {
		return "", err
	}
	return render(ecmTmpl, data)
}

var ecPointAddTmpl = template.Must(template.New("ecadd").Parse(`from sage.all import *
try:
    E = EllipticCurve(GF({{.p}}), [{{.a}}, {{.b}}])
    R = E({{.x1}}, {{.y1}}) + E({{.x2}}, {{.y2}})
    if R.is_zero():
        print("INFINITY")
    else:
        print("X:", R.xy()[0])
        print("Y:", R.xy()[1])
except Exception as exc:
    print("ERROR:", exc)
`))

func ecPointAddScript(p Problem) (string, error) {
	data, err := params(p, "a", "b", "p", "x1", "y1", "x2", "y2")
	if err != nil {
		return "", err
	}
	return render(ecPointAddTmpl, data)
}

var coppersmithTmpl = template.Must(template.New("coppersmith").Parse(`from sage.all import *
n = Integer({{.n}})
e = Integer({{.e}})
P = PolynomialRing(Zmod(n), 'x')
x = P.gen()
try:
    f = P(sage_eval('{{.polynomial}}', locals={'x': x, 'e': e, 'n': n})).monic()
    bound = {{if .bound}}Integer({{.bound}}){{else}}n.nth_root(f.degree(), truncate_mode=True)[0]{{end}}
    roots = f.small_roots(X=bound, beta={{.beta}})
    if roots:
        print("ROOTS:", [str(r) for r in roots])
    else:
        print("NO_ROOTS")
except Exception as exc:
    print("ERROR:", exc)
`))

func coppersmithScript(p Problem) (string, error) {
	data, err := params(p, "n")
	if err != nil {
		return "", err
	}
	data["e"] = "0"
	if strings.TrimSpace(p.Params["e"]) != "" {
		e, err := ParseInt(p.Params["e"])
		if err != nil {
			return "", fmt.Errorf("e: %w", err)
		}
		data["e"] = e.String()
	}
	poly := strings.TrimSpace(p.Params["polynomial"])
	if poly == "" || !polynomialPattern.MatchString(poly) {
		return "", fmt.Errorf("polynomial %q must be arithmetic over x, e and n", poly)
	}
	data["polynomial"] = poly
	beta := 0.5
	if raw := strings.TrimSpace(p.Params["beta"]); raw != "" {
		if beta, err = strconv.ParseFloat(raw, 64); err != nil || beta <= 0 || beta > 1 {
			return "", fmt.Errorf("beta %q must be in (0, 1]", raw)
		}
	}
	data["beta"] = strconv.FormatFloat(beta, 'f', -1, 64)
	if strings.TrimSpace(p.Params["bound"]) != "" {
		bound, err := ParseInt(p.Params["bound"])
		if err != nil {
			return "", fmt.Errorf("bound: %w", err)
		}
		data["bound"] = bound.String()
	}
	return render(coppersmithTmpl, data)
}

var quadraticResidueTmpl = template.Must(template.New("qr").Parse(`from sage.all import *
try:
    roots = GF({{.p}})({{.a}}).sqrt(all=True)
    print("ROOTS:", [str(r) for r in roots])
except Exception as exc:
    print("ERROR:", exc)
`))

func quadraticResidueScript(p Problem) (string, error) {
	data, err := params(p, "a", "p")
	if err != nil {
		return "", err
	}
	return render(quadraticResidueTmpl, data)
}

// parseSageOutput reads the line protocol printed by the scripts.
func parseSageOutput(kind, out string) SolverResult {
	res := SolverResult{Values: map[string]interface{}{}}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		key, value, hasValue := strings.Cut(line, ":")
		value = strings.TrimSpace(value)
		switch {
		case line == "NO_SOLUTION":
			res.Error = "no solution exists"
		case line == "NO_FACTOR":
			res.Error = "no factor found with ECM"
		case line == "NO_ROOTS":
			res.Values["roots"] = []string{}
		case line == "INFINITY":
			res.Found = true
			res.Values["infinity"] = true
		case !hasValue:
		case key == "ERROR":
			res.Error = value
		case key == "RESULT":
			res.Found = true
			res.Values["x"] = value
		case key == "TIME":
			if secs, err := strconv.ParseFloat(value, 64); err == nil {
				res.Values["time"] = secs
			}
		case key == "X":
			res.Found = true
			if value == "ANY" {
				value = "any"
			}
			res.Values["x"] = value
		case key == "Y":
			res.Values["y"] = value
		case key == "MODULUS":
			res.Values["modulus"] = value
		case key == "FACTOR":
			res.Found = true
			res.Values["factor"] = value
		case key == "REMAINING":
			res.Values["remaining"] = value
		case key == "ROOTS":
			roots := parseRootList(value)
			res.Values["roots"] = roots
			res.Found = len(roots) > 0
		}
	}
	if !res.Found && res.Error == "" {
		res.Error = fmt.Sprintf("no %s result in sage output", kind)
	}
	if len(res.Values) == 0 {
		res.Values = nil
	}
	return res
}

// parseRootList reads a printed Python list of strings such as
// ['3', '13'].
func parseRootList(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	roots := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part == "" {
			continue
		}
		if _, ok := new(big.Int).SetString(part, 10); !ok {
			continue
		}
		roots = append(roots, part)
	}
	return roots
}
