package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RowanDark/cryptbreak/internal/cipher"
	"github.com/RowanDark/cryptbreak/internal/logging"
	"github.com/RowanDark/cryptbreak/internal/observability/metrics"
	"github.com/RowanDark/cryptbreak/internal/symmetric"
)

type decryptFunc func(ctx context.Context, ciphertext, cipherEncoding string, p symmetric.Params) (string, error)

func (k *Toolkit) symmetricTools() []Tool {
	blockParams := []Param{
		required("ciphertext", "string", "ciphertext in cipher_encoding"),
		param("cipher_encoding", "string", "hex, b64 or raw", "hex"),
		param("key", "string", "key; requested from the caller when omitted", nil),
		param("key_encoding", "string", "hex, b64 or raw", "hex"),
		param("iv", "string", "IV for CBC mode", nil),
		param("iv_encoding", "string", "hex, b64 or raw", "hex"),
		param("mode", "string", "ECB or CBC", "CBC"),
	}
	return []Tool{
		New("rc4_decrypt", "Decrypt RC4 ciphertext.",
			[]Param{
				required("ciphertext", "string", "ciphertext in cipher_encoding"),
				param("cipher_encoding", "string", "hex, b64 or raw", "hex"),
				param("key", "string", "key; requested from the caller when omitted", nil),
				param("key_encoding", "string", "hex, b64 or raw", "raw"),
			},
			decryptTool(k.Decrypter.RC4Decrypt, cipher.PayloadRaw)),
		New("aes_decrypt", "Decrypt AES-ECB or AES-CBC ciphertext.", blockParams,
			decryptTool(k.Decrypter.AESDecrypt, cipher.PayloadHex)),
		New("des_decrypt", "Decrypt DES or 3DES ciphertext in ECB or CBC mode.", blockParams,
			decryptTool(k.Decrypter.DESDecrypt, cipher.PayloadHex)),
	}
}

func decryptTool(decrypt decryptFunc, keyEncoding string) Handler {
	return func(ctx context.Context, p Params) (any, error) {
		ciphertext, err := p.String("ciphertext")
		if err != nil {
			return nil, err
		}
		var sp symmetric.Params
		fields := []struct {
			name string
			def  string
			dst  *string
			enc  bool
		}{
			{"cipher_encoding", cipher.PayloadHex, new(string), true},
			{"key", "", &sp.Key, false},
			{"key_encoding", keyEncoding, &sp.KeyEncoding, true},
			{"iv", "", &sp.IV, false},
			{"iv_encoding", cipher.PayloadHex, &sp.IVEncoding, true},
			{"mode", "", &sp.Mode, false},
		}
		for _, f := range fields {
			v, err := p.OptString(f.name, f.def)
			if err != nil {
				return nil, err
			}
			if f.enc && !payloadEncodings[v] {
				return nil, invalidf("%s must be hex, b64 or raw, got %q", f.name, v)
			}
			*f.dst = v
		}
		cipherEncoding := *fields[0].dst

		plaintext, err := decrypt(ctx, ciphertext, cipherEncoding, sp)
		switch {
		case err == nil:
			return map[string]string{"plaintext": plaintext}, nil
		case errors.Is(err, cipher.ErrDecode), errors.Is(err, context.Canceled):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
		}
	}
}

// AuditedProvider wraps next so each elicitation is counted and written to
// the audit log under the invocation that triggered it.
func AuditedProvider(next symmetric.ParameterProvider, audit *logging.AuditLogger, logger *slog.Logger) symmetric.ParameterProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &auditedProvider{next: next, audit: audit, logger: logger}
}

type auditedProvider struct {
	next   symmetric.ParameterProvider
	audit  *logging.AuditLogger
	logger *slog.Logger
}

func (a *auditedProvider) Provide(ctx context.Context, req symmetric.Request) (symmetric.Params, bool) {
	start := time.Now()
	got, accepted := a.next.Provide(ctx, req)

	outcome := "provided"
	decision := logging.DecisionAllow
	switch {
	case ctx.Err() != nil:
		outcome, decision = "timeout", logging.DecisionDeny
	case !accepted || got.Key == "":
		outcome, decision = "declined", logging.DecisionDeny
	}
	tool := req.Algorithm + "_decrypt"
	metrics.RecordElicitation(tool, outcome)
	a.audit.EmitOrLog(a.logger, logging.AuditEvent{
		InvocationID: InvocationID(ctx),
		Tool:         tool,
		EventType:    logging.EventParameterElicited,
		Decision:     decision,
		Duration:     float64(time.Since(start)) / float64(time.Millisecond),
		Metadata: map[string]any{
			"algorithm": req.Algorithm,
			"fields":    req.Fields,
			"outcome":   outcome,
		},
	})
	return got, accepted
}
