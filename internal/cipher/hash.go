package cipher

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/md4"
	"golang.org/x/text/encoding/unicode"
)

// ErrUnknownAlgorithm is returned for hash algorithms CrackHash cannot compute.
var ErrUnknownAlgorithm = errors.New("unknown hash algorithm")

// HashCandidate reports the outcome of a dictionary attack.
type HashCandidate struct {
	Found     bool   `json:"found"`
	Word      string `json:"word,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
	Tried     int    `json:"tried"`
}

type hashFunc func(word string) ([]byte, error)

func digestWith(newHash func() hash.Hash) hashFunc {
	return func(word string) ([]byte, error) {
		h := newHash()
		h.Write([]byte(word))
		return h.Sum(nil), nil
	}
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// ntlmDigest is MD4 over the UTF-16LE encoding of word.
func ntlmDigest(word string) ([]byte, error) {
	encoded, err := utf16le.NewEncoder().Bytes([]byte(word))
	if err != nil {
		return nil, err
	}
	h := md4.New()
	h.Write(encoded)
	return h.Sum(nil), nil
}

// hashAlgorithms lists the supported digests in the order they are tried.
var hashAlgorithms = []struct {
	name string
	fn   hashFunc
}{
	{"md4", digestWith(md4.New)},
	{"ntlm", ntlmDigest},
	{"md5", digestWith(md5.New)},
	{"sha1", digestWith(sha1.New)},
	{"sha224", digestWith(sha256.New224)},
	{"sha256", digestWith(sha256.New)},
	{"sha384", digestWith(sha512.New384)},
	{"sha512", digestWith(sha512.New)},
}

// HashAlgorithms returns the names accepted by CrackHash.
func HashAlgorithms() []string {
	names := make([]string, len(hashAlgorithms))
	for i, a := range hashAlgorithms {
		names[i] = a.name
	}
	return names
}

func lookupHash(name string) (hashFunc, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, a := range hashAlgorithms {
		if a.name == name {
			return a.fn, true
		}
	}
	return nil, false
}

// IdentifyHash guesses digest families from the shape of text.
func IdentifyHash(text string) []string {
	s := strings.TrimSpace(text)
	out := []string{}
	if isHex(s) {
		switch len(s) {
		case 32:
			out = append(out, "MD5")
		case 40:
			out = append(out, "SHA1")
		case 56:
			out = append(out, "SHA224")
		case 64:
			out = append(out, "SHA256")
		case 96:
			out = append(out, "SHA384")
		case 128:
			out = append(out, "SHA512")
		}
	}
	if isBase64Like(s) {
		out = append(out, "Base64-like")
	}
	return out
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func isBase64Like(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '+', r == '/', r == '=':
		default:
			return false
		}
	}
	return true
}

// CrackHash hashes every word with every algorithm until one matches the
// hex digest. An empty algorithms list tries all supported digests whose
// length fits the target. A miss is not an error.
func CrackHash(ctx context.Context, digest string, words, algorithms []string) (HashCandidate, error) {
	target, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(digest)))
	if err != nil {
		return HashCandidate{}, fmt.Errorf("%w: digest is not hex: %v", ErrDecode, err)
	}
	if len(algorithms) == 0 {
		algorithms = HashAlgorithms()
	}

	type algo struct {
		name string
		fn   hashFunc
	}
	var algos []algo
	for _, name := range algorithms {
		fn, ok := lookupHash(name)
		if !ok {
			return HashCandidate{}, fmt.Errorf("%w: %s", ErrUnknownAlgorithm, name)
		}
		algos = append(algos, algo{strings.ToLower(strings.TrimSpace(name)), fn})
	}

	res := HashCandidate{}
	for i, word := range words {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		for _, a := range algos {
			sum, err := a.fn(word)
			if err != nil || len(sum) != len(target) {
				continue
			}
			res.Tried++
			if string(sum) == string(target) {
				res.Found = true
				res.Word = word
				res.Algorithm = a.name
				return res, nil
			}
		}
	}
	return res, nil
}

func hashOp(name, desc string) *codecOp {
	fn, _ := lookupHash(name)
	return newCodec(name+"_hash", OperationTypeHash, desc, func(in []byte) ([]byte, error) {
		sum, err := fn(string(in))
		if err != nil {
			return nil, err
		}
		return []byte(hex.EncodeToString(sum)), nil
	})
}

func init() {
	mustRegister(
		hashOp("md4", "Compute MD4 hash"),
		hashOp("ntlm", "Compute NTLM hash (MD4 of UTF-16LE)"),
		hashOp("md5", "Compute MD5 hash"),
		hashOp("sha1", "Compute SHA-1 hash"),
		hashOp("sha224", "Compute SHA-224 hash"),
		hashOp("sha256", "Compute SHA-256 hash"),
		hashOp("sha384", "Compute SHA-384 hash"),
		hashOp("sha512", "Compute SHA-512 hash"),
	)
}
