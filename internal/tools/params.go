package tools

import (
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

// Params is the JSON object a tool is invoked with.
type Params struct {
	root gjson.Result
}

// ParseParams validates raw as a JSON object. Empty input and null are an
// empty object.
func ParseParams(raw []byte) (Params, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Params{root: gjson.Parse("{}")}, nil
	}
	if !gjson.ValidBytes(raw) {
		return Params{}, fmt.Errorf("%w: body is not valid JSON", ErrInvalidParams)
	}
	root := gjson.ParseBytes(raw)
	switch {
	case root.Type == gjson.Null:
		return Params{root: gjson.Parse("{}")}, nil
	case !root.IsObject():
		return Params{}, fmt.Errorf("%w: parameters must be a JSON object", ErrInvalidParams)
	}
	return Params{root: root}, nil
}

// MustParams parses a literal parameter object, panicking on error.
func MustParams(raw string) Params {
	p, err := ParseParams([]byte(raw))
	if err != nil {
		panic(err)
	}
	return p
}

// Raw returns the JSON text the params were parsed from.
func (p Params) Raw() string {
	if p.root.Raw == "" {
		return "{}"
	}
	return p.root.Raw
}

// Map returns the params as generic JSON values.
func (p Params) Map() map[string]any {
	m, _ := p.root.Value().(map[string]any)
	return m
}

func (p Params) get(name string) (gjson.Result, bool) {
	v := p.root.Get(gjson.Escape(name))
	if !v.Exists() || v.Type == gjson.Null {
		return v, false
	}
	return v, true
}

// Has reports whether name is present and not null.
func (p Params) Has(name string) bool {
	_, ok := p.get(name)
	return ok
}

func typeError(name, want string, v gjson.Result) error {
	return fmt.Errorf("%w: %s must be %s, got %s", ErrInvalidParams, name, want, v.Type)
}

// String returns a required string parameter.
func (p Params) String(name string) (string, error) {
	v, ok := p.get(name)
	if !ok {
		return "", fmt.Errorf("%w: missing required parameter %s", ErrInvalidParams, name)
	}
	if v.Type != gjson.String {
		return "", typeError(name, "a string", v)
	}
	return v.Str, nil
}

// OptString returns a string parameter or def when absent.
func (p Params) OptString(name, def string) (string, error) {
	if !p.Has(name) {
		return def, nil
	}
	return p.String(name)
}

// Int returns an integer parameter or def when absent.
func (p Params) Int(name string, def int) (int, error) {
	v, ok := p.get(name)
	if !ok {
		return def, nil
	}
	if v.Type != gjson.Number {
		return 0, typeError(name, "an integer", v)
	}
	f := v.Float()
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return 0, fmt.Errorf("%w: %s must be an integer, got %s", ErrInvalidParams, name, v.Raw)
	}
	return int(f), nil
}

// Float returns a number parameter or def when absent.
func (p Params) Float(name string, def float64) (float64, error) {
	v, ok := p.get(name)
	if !ok {
		return def, nil
	}
	if v.Type != gjson.Number {
		return 0, typeError(name, "a number", v)
	}
	return v.Float(), nil
}

// Bool returns a boolean parameter or def when absent.
func (p Params) Bool(name string, def bool) (bool, error) {
	v, ok := p.get(name)
	if !ok {
		return def, nil
	}
	if v.Type != gjson.True && v.Type != gjson.False {
		return false, typeError(name, "a boolean", v)
	}
	return v.Bool(), nil
}

// Integer returns a required integer given either as a JSON number or a
// string. Numbers keep their literal digits so big values survive.
func (p Params) Integer(name string) (string, error) {
	v, ok := p.get(name)
	if !ok {
		return "", fmt.Errorf("%w: missing required parameter %s", ErrInvalidParams, name)
	}
	return integerText(name, v)
}

// OptInteger is Integer returning "" when absent.
func (p Params) OptInteger(name string) (string, error) {
	if !p.Has(name) {
		return "", nil
	}
	return p.Integer(name)
}

func integerText(name string, v gjson.Result) (string, error) {
	switch v.Type {
	case gjson.String:
		return strings.TrimSpace(v.Str), nil
	case gjson.Number:
		return v.Raw, nil
	default:
		return "", typeError(name, "an integer or string", v)
	}
}

// Strings returns an array of strings, or nil when absent.
func (p Params) Strings(name string) ([]string, error) {
	v, ok := p.get(name)
	if !ok {
		return nil, nil
	}
	if !v.IsArray() {
		return nil, typeError(name, "an array of strings", v)
	}
	var out []string
	var err error
	v.ForEach(func(_, item gjson.Result) bool {
		if item.Type != gjson.String {
			err = typeError(name+" item", "a string", item)
			return false
		}
		out = append(out, item.Str)
		return true
	})
	return out, err
}

// Integers returns an array of integers given as numbers or strings.
func (p Params) Integers(name string) ([]string, error) {
	v, ok := p.get(name)
	if !ok {
		return nil, nil
	}
	return integerArray(name, v)
}

func integerArray(name string, v gjson.Result) ([]string, error) {
	if !v.IsArray() {
		return nil, typeError(name, "an array", v)
	}
	var out []string
	var err error
	v.ForEach(func(_, item gjson.Result) bool {
		var s string
		s, err = integerText(name+" item", item)
		if err != nil {
			return false
		}
		out = append(out, s)
		return true
	})
	return out, err
}

// Pairs returns an array of two-element integer arrays, e.g. [[2,3],[3,5]].
func (p Params) Pairs(name string) ([][2]string, error) {
	v, ok := p.get(name)
	if !ok {
		return nil, nil
	}
	if !v.IsArray() {
		return nil, typeError(name, "an array of pairs", v)
	}
	var out [][2]string
	var err error
	v.ForEach(func(_, item gjson.Result) bool {
		var pair []string
		pair, err = integerArray(name+" item", item)
		if err != nil {
			return false
		}
		if len(pair) != 2 {
			err = fmt.Errorf("%w: %s items must have two elements", ErrInvalidParams, name)
			return false
		}
		out = append(out, [2]string{pair[0], pair[1]})
		return true
	})
	return out, err
}

// Point returns a required [x, y] pair.
func (p Params) Point(name string) (x, y string, err error) {
	v, ok := p.get(name)
	if !ok {
		return "", "", fmt.Errorf("%w: missing required parameter %s", ErrInvalidParams, name)
	}
	coords, err := integerArray(name, v)
	if err != nil {
		return "", "", err
	}
	if len(coords) != 2 {
		return "", "", fmt.Errorf("%w: %s must be [x, y]", ErrInvalidParams, name)
	}
	return coords[0], coords[1], nil
}

// Field returns the raw JSON text of name, or "" when absent.
func (p Params) Field(name string) string {
	v, ok := p.get(name)
	if !ok {
		return ""
	}
	return v.Raw
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidParams}, args...)...)
}
