package symmetric

import (
	"context"
	"crypto/rc4"
	"fmt"

	"github.com/RowanDark/cryptbreak/internal/cipher"
)

// RC4Decrypt decrypts ciphertext (in cipherEncoding) with p.Key. The key
// encoding defaults to raw.
func (d *Decrypter) RC4Decrypt(ctx context.Context, ciphertext, cipherEncoding string, p Params) (string, error) {
	ct, err := cipher.ParsePayload(ciphertext, cipherEncoding)
	if err != nil {
		return "", fmt.Errorf("ciphertext: %w", err)
	}
	p, ok := d.resolve(ctx, p, Request{
		Algorithm: AlgorithmRC4,
		Message:   "RC4 key required",
		Fields:    []string{"key", "key_encoding"},
	})
	if !ok {
		return "", nil
	}
	p = withDefaults(p, cipher.PayloadRaw)

	key, err := cipher.ParsePayload(p.Key, p.KeyEncoding)
	if err != nil {
		return "", fmt.Errorf("key: %w", err)
	}
	c, err := rc4.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("rc4: %w", err)
	}
	pt := make([]byte, len(ct))
	c.XORKeyStream(pt, ct)
	return toText(pt), nil
}
