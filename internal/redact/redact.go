// Package redact masks key material before tool parameters reach the audit
// log.
package redact

import (
	"regexp"
	"strings"
)

// Masked replaces every redacted value.
const Masked = "[REDACTED_SECRET]"

// sensitiveKeys are parameter names whose values are always masked.
var sensitiveKeys = map[string]struct{}{
	"key":      {},
	"iv":       {},
	"secret":   {},
	"password": {},
	"token":    {},
	"api_key":  {},
}

var (
	kvSecretRe = regexp.MustCompile(`(?i)((?:api|token|secret|key|password)[-_ ]*(?:id|key|token)?\s*[:=]\s*)(['"]?)([A-Za-z0-9+/=_\-]{8,})(['"]?)`)
	bearerRe   = regexp.MustCompile(`(?i)\b(bearer)\s+([A-Za-z0-9._\-]{10,})`)
)

// IsSensitive reports whether values stored under name are masked.
func IsSensitive(name string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// String masks key=value style secrets and bearer tokens inside free text.
func String(in string) string {
	if strings.TrimSpace(in) == "" {
		return in
	}
	masked := kvSecretRe.ReplaceAllString(in, `$1$2`+Masked+`$4`)
	return bearerRe.ReplaceAllString(masked, `$1 `+Masked)
}

// Value redacts strings inside nested JSON-like values.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return String(t)
	case []string:
		return Slice(t)
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = Value(elem)
		}
		return out
	case map[string]any:
		return Map(t)
	case map[string]string:
		return MapString(t)
	default:
		return v
	}
}

// Map masks sensitive keys and redacts the remaining values. Empty input
// returns nil.
func Map(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if IsSensitive(k) {
			out[k] = Masked
			continue
		}
		out[k] = Value(v)
	}
	return out
}

// MapString is Map for string values.
func MapString(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if IsSensitive(k) {
			out[k] = Masked
			continue
		}
		out[k] = String(v)
	}
	return out
}

// Slice redacts each element.
func Slice(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = String(v)
	}
	return out
}
