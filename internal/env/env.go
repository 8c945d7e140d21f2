// Package env reads CRYPTBREAK_* environment variables, falling back to the
// legacy CTFCRYPTO_* names with a one-time deprecation warning.
package env

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	Prefix       = "CRYPTBREAK_"
	LegacyPrefix = "CTFCRYPTO_"
)

var (
	warnLogger func(msg string, args ...any) = slog.Warn
	warnMu     sync.Mutex
	warnedKeys sync.Map
)

// Lookup returns the value of newKey if it exists. When only the legacy
// oldKey is present it is returned instead and a deprecation warning is
// logged once.
func Lookup(newKey, oldKey string) (string, bool) {
	if v, ok := os.LookupEnv(newKey); ok {
		return v, true
	}
	if oldKey == "" {
		return "", false
	}
	if v, ok := os.LookupEnv(oldKey); ok {
		logDeprecated(oldKey, newKey)
		return v, true
	}
	return "", false
}

// Get looks up CRYPTBREAK_<name>, then CTFCRYPTO_<name>, and returns the
// trimmed value. Blank values count as unset.
func Get(name string) (string, bool) {
	v, ok := Lookup(Prefix+name, LegacyPrefix+name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func logDeprecated(oldKey, newKey string) {
	onceIface, _ := warnedKeys.LoadOrStore(oldKey, &sync.Once{})
	once := onceIface.(*sync.Once)
	once.Do(func() {
		warnMu.Lock()
		logger := warnLogger
		warnMu.Unlock()
		logger("deprecated environment variable", "old", oldKey, "new", newKey)
	})
}

// ResetWarningsForTesting clears the cached once guards so tests can verify
// warning behaviour deterministically.
func ResetWarningsForTesting() {
	warnMu.Lock()
	warnedKeys = sync.Map{}
	warnMu.Unlock()
}

// SetWarnLoggerForTesting swaps the logger used for warnings. The returned
// function restores the previous logger and should be deferred in tests.
func SetWarnLoggerForTesting(fn func(msg string, args ...any)) (restore func()) {
	warnMu.Lock()
	previous := warnLogger
	warnLogger = fn
	warnMu.Unlock()
	return func() {
		warnMu.Lock()
		warnLogger = previous
		warnMu.Unlock()
	}
}
