package symmetric

import (
	"context"
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/des"
	"fmt"

	"github.com/RowanDark/cryptbreak/internal/cipher"
)

// AESDecrypt decrypts an AES-ECB or AES-CBC ciphertext and strips PKCS#7
// padding when it is well formed.
func (d *Decrypter) AESDecrypt(ctx context.Context, ciphertext, cipherEncoding string, p Params) (string, error) {
	return d.blockDecrypt(ctx, AlgorithmAES, ciphertext, cipherEncoding, p, aes.NewCipher)
}

// DESDecrypt decrypts a DES or 3DES ciphertext: 8-byte keys select DES,
// 16- and 24-byte keys select 3DES.
func (d *Decrypter) DESDecrypt(ctx context.Context, ciphertext, cipherEncoding string, p Params) (string, error) {
	return d.blockDecrypt(ctx, AlgorithmDES, ciphertext, cipherEncoding, p, newDESCipher)
}

func newDESCipher(key []byte) (gocipher.Block, error) {
	switch len(key) {
	case 8:
		return des.NewCipher(key)
	case 16:
		return des.NewTripleDESCipher(append(append([]byte(nil), key...), key[:8]...))
	case 24:
		return des.NewTripleDESCipher(key)
	default:
		return nil, fmt.Errorf("invalid DES key length %d", len(key))
	}
}

func (d *Decrypter) blockDecrypt(ctx context.Context, algorithm, ciphertext, cipherEncoding string, p Params, newBlock func([]byte) (gocipher.Block, error)) (string, error) {
	ct, err := cipher.ParsePayload(ciphertext, cipherEncoding)
	if err != nil {
		return "", fmt.Errorf("ciphertext: %w", err)
	}
	p, ok := d.resolve(ctx, p, Request{
		Algorithm: algorithm,
		Message:   algorithm + " decryption parameters required",
		Fields:    []string{"key", "key_encoding", "iv", "iv_encoding", "mode"},
	})
	if !ok {
		return "", nil
	}
	p = withDefaults(p, cipher.PayloadHex)

	key, iv, err := parseKeyMaterial(p)
	if err != nil {
		return "", err
	}
	block, err := newBlock(key)
	if err != nil {
		return "", fmt.Errorf("%s: %w", algorithm, err)
	}
	bs := block.BlockSize()
	if len(ct)%bs != 0 {
		return "", fmt.Errorf("%s: ciphertext length %d is not a multiple of the block size %d", algorithm, len(ct), bs)
	}

	pt := make([]byte, len(ct))
	switch p.Mode {
	case ModeECB:
		for i := 0; i < len(ct); i += bs {
			block.Decrypt(pt[i:i+bs], ct[i:i+bs])
		}
	case ModeCBC:
		if iv == nil {
			return "", ErrMissingIV
		}
		if len(iv) != bs {
			return "", fmt.Errorf("%s: IV length %d, want %d", algorithm, len(iv), bs)
		}
		gocipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMode, p.Mode)
	}
	return toText(pkcs7Unpad(pt)), nil
}

// pkcs7Unpad removes valid PKCS#7 padding and leaves anything else intact.
func pkcs7Unpad(b []byte) []byte {
	if len(b) == 0 {
		return b
	}
	pad := int(b[len(b)-1])
	if pad == 0 || pad > len(b) {
		return b
	}
	for _, c := range b[len(b)-pad:] {
		if int(c) != pad {
			return b
		}
	}
	return b[:len(b)-pad]
}
