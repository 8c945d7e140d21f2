// Package symmetric decrypts RC4, AES and DES/3DES ciphertexts. When a call
// arrives without a key the decrypter asks an injected ParameterProvider for
// one; a declined request yields an empty plaintext rather than an error.
package symmetric

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RowanDark/cryptbreak/internal/cipher"
)

// DefaultProvideTimeout bounds a single ParameterProvider call.
const DefaultProvideTimeout = 2 * time.Minute

// Algorithm names used in elicitation requests.
const (
	AlgorithmRC4 = "rc4"
	AlgorithmAES = "aes"
	AlgorithmDES = "des"
)

// Block cipher modes.
const (
	ModeECB = "ECB"
	ModeCBC = "CBC"
)

var (
	// ErrMissingIV is returned for CBC decryption without an IV.
	ErrMissingIV = errors.New("IV is required for CBC mode")
	// ErrUnsupportedMode is returned for modes other than ECB and CBC.
	ErrUnsupportedMode = errors.New("unsupported block mode")
)

// Params carries the key material for one decryption. Encodings are the
// payload encodings understood by cipher.ParsePayload.
type Params struct {
	Key         string `json:"key"`
	KeyEncoding string `json:"key_encoding,omitempty"`
	IV          string `json:"iv,omitempty"`
	IVEncoding  string `json:"iv_encoding,omitempty"`
	Mode        string `json:"mode,omitempty"`
}

// Request describes the parameters a decryption is waiting for.
type Request struct {
	Algorithm string   `json:"algorithm"`
	Message   string   `json:"message"`
	Fields    []string `json:"fields"`
}

// ParameterProvider supplies missing parameters, typically by asking a user.
// accepted is false when the request was declined.
type ParameterProvider interface {
	Provide(ctx context.Context, req Request) (params Params, accepted bool)
}

// ProviderFunc adapts a function to ParameterProvider.
type ProviderFunc func(ctx context.Context, req Request) (Params, bool)

func (f ProviderFunc) Provide(ctx context.Context, req Request) (Params, bool) {
	return f(ctx, req)
}

// Decrypter runs the symmetric decryptions.
type Decrypter struct {
	provider ParameterProvider
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Decrypter.
type Option func(*Decrypter)

// WithProvider sets the provider consulted when a key is missing.
func WithProvider(p ParameterProvider) Option {
	return func(d *Decrypter) { d.provider = p }
}

// WithProvideTimeout bounds each provider call.
func WithProvideTimeout(timeout time.Duration) Option {
	return func(d *Decrypter) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger sets the logger used for elicitation outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decrypter) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Decrypter. Without a provider every keyless call is treated
// as declined.
func New(opts ...Option) *Decrypter {
	d := &Decrypter{timeout: DefaultProvideTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// resolve fills in missing parameters from the provider. ok is false when
// the request was declined or nobody could be asked.
func (d *Decrypter) resolve(ctx context.Context, p Params, req Request) (Params, bool) {
	if p.Key != "" {
		return p, true
	}
	if d.provider == nil {
		return Params{}, false
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	got, accepted := d.provider.Provide(ctx, req)
	if ctx.Err() != nil {
		accepted = false
	}
	d.logger.Debug("parameter elicitation", "algorithm", req.Algorithm, "accepted", accepted && got.Key != "")
	if !accepted || got.Key == "" {
		return Params{}, false
	}
	return got, true
}

func withDefaults(p Params, keyEncoding string) Params {
	if p.KeyEncoding == "" {
		p.KeyEncoding = keyEncoding
	}
	if p.IVEncoding == "" {
		p.IVEncoding = cipher.PayloadHex
	}
	p.Mode = strings.ToUpper(strings.TrimSpace(p.Mode))
	if p.Mode == "" {
		p.Mode = ModeCBC
	}
	return p
}

func parseKeyMaterial(p Params) (key, iv []byte, err error) {
	key, err = cipher.ParsePayload(p.Key, p.KeyEncoding)
	if err != nil {
		return nil, nil, fmt.Errorf("key: %w", err)
	}
	if p.IV != "" {
		iv, err = cipher.ParsePayload(p.IV, p.IVEncoding)
		if err != nil {
			return nil, nil, fmt.Errorf("iv: %w", err)
		}
	}
	return key, iv, nil
}

func toText(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}
