package cipher

import (
	"bytes"
	"context"
	"encoding/base32"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// codecOp adapts a plain transform function to the Operation interface.
type codecOp struct {
	BaseOperation
	fn func(input []byte) ([]byte, error)
}

func (op *codecOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	out, err := op.fn(input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.NameValue, err)
	}
	return out, nil
}

func newCodec(name string, typ OperationType, desc string, fn func([]byte) ([]byte, error)) *codecOp {
	return &codecOp{
		BaseOperation: BaseOperation{NameValue: name, TypeValue: typ, DescriptionValue: desc},
		fn:            fn,
	}
}

func textCodec(fn func(string) string) func([]byte) ([]byte, error) {
	return func(in []byte) ([]byte, error) {
		return []byte(fn(string(in))), nil
	}
}

func textDecoder(fn func(string) ([]byte, error)) func([]byte) ([]byte, error) {
	return func(in []byte) ([]byte, error) {
		return fn(string(in))
	}
}

// Base64

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func decodeBase64URL(s string) ([]byte, error) {
	decoded, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		// unpadded tokens
		return base64.RawURLEncoding.DecodeString(s)
	}
	return decoded, nil
}

// Base32 and base16 accept either case.

func decodeBase32(s string) ([]byte, error) {
	return base32.StdEncoding.DecodeString(strings.ToUpper(s))
}

func decodeBase16(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// Hex tolerates a 0x or \x prefix, whitespace and common byte separators.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "\\x")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == ':' || r == '-' {
			return -1
		}
		return r
	}, s)
	return hex.DecodeString(s)
}

// Base85 uses the RFC 1924 alphabet.

const base85Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz!#$%&()*+-;<=>?@^_`{|}~"

var base85Index = func() [256]int {
	var idx [256]int
	for i := range idx {
		idx[i] = -1
	}
	for i := 0; i < len(base85Alphabet); i++ {
		idx[base85Alphabet[i]] = i
	}
	return idx
}()

func encodeBase85(data []byte) string {
	padding := (4 - len(data)%4) % 4
	buf := make([]byte, len(data)+padding)
	copy(buf, data)

	out := make([]byte, 0, len(buf)/4*5)
	var chunk [5]byte
	for i := 0; i < len(buf); i += 4 {
		v := binary.BigEndian.Uint32(buf[i : i+4])
		for j := 4; j >= 0; j-- {
			chunk[j] = base85Alphabet[v%85]
			v /= 85
		}
		out = append(out, chunk[:]...)
	}
	return string(out[:len(out)-padding])
}

func decodeBase85(s string) ([]byte, error) {
	padding := (5 - len(s)%5) % 5
	buf := []byte(s + strings.Repeat("~", padding))

	out := make([]byte, 0, len(buf)/5*4)
	var word [4]byte
	for i := 0; i < len(buf); i += 5 {
		var acc uint64
		for j, c := range buf[i : i+5] {
			v := base85Index[c]
			if v < 0 {
				return nil, fmt.Errorf("bad base85 character at position %d", i+j)
			}
			acc = acc*85 + uint64(v)
		}
		if acc > 0xffffffff {
			return nil, fmt.Errorf("base85 overflow in chunk starting at %d", i)
		}
		binary.BigEndian.PutUint32(word[:], uint32(acc))
		out = append(out, word[:]...)
	}
	return out[:len(out)-padding], nil
}

// URL percent-encoding

// decodeURL decodes every valid %XX escape and keeps malformed ones as
// written. It never fails.
func decodeURL(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			hi, okHi := unhex(s[i+1])
			lo, okLo := unhex(s[i+2])
			if okHi && okLo {
				out = append(out, hi<<4|lo)
				i += 2
				continue
			}
		}
		out = append(out, s[i])
	}
	return out, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Backslash escapes

func encodeUnicodeEscape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '\\':
			sb.WriteString(`\\`)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\r':
			sb.WriteString(`\r`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r >= 0x20 && r < 0x7f:
			sb.WriteRune(r)
		case r < 0x100:
			fmt.Fprintf(&sb, `\x%02x`, r)
		case r < 0x10000:
			fmt.Fprintf(&sb, `\u%04x`, r)
		default:
			fmt.Fprintf(&sb, `\U%08x`, r)
		}
	}
	return sb.String()
}

// decodeUnicodeEscape expands backslash escapes. Unknown escapes are kept
// verbatim; a trailing lone backslash is an error.
func decodeUnicodeEscape(s string) ([]byte, error) {
	var sb strings.Builder
	for len(s) > 0 {
		if s[0] != '\\' {
			r, size := utf8.DecodeRuneInString(s)
			sb.WriteRune(r)
			s = s[size:]
			continue
		}
		if len(s) == 1 {
			return nil, errors.New("trailing backslash")
		}
		value, _, tail, err := strconv.UnquoteChar(s, 0)
		if err != nil {
			sb.WriteByte('\\')
			s = s[1:]
			continue
		}
		sb.WriteRune(value)
		s = tail
	}
	return []byte(sb.String()), nil
}

// Binary strings of 8-bit groups

func encodeBinary(input []byte) []byte {
	var buf bytes.Buffer
	for i, b := range input {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%08b", b)
	}
	return buf.Bytes()
}

func decodeBinary(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return nil, errors.New("empty binary string")
	}
	if len(s)%8 != 0 {
		return nil, fmt.Errorf("binary string length must be multiple of 8, got %d", len(s))
	}

	result := make([]byte, 0, len(s)/8)
	for i := 0; i < len(s); i += 8 {
		val, err := strconv.ParseUint(s[i:i+8], 2, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid binary string at position %d: %w", i, err)
		}
		result = append(result, byte(val))
	}
	return result, nil
}

func init() {
	base64Encode := newCodec("base64_encode", OperationTypeEncode, "Encode data as standard Base64",
		textCodec(func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }))
	base64Decode := newCodec("base64_decode", OperationTypeDecode, "Decode standard Base64 data",
		textDecoder(decodeBase64))
	pair(base64Encode, base64Decode)

	base64URLEncode := newCodec("base64url_encode", OperationTypeEncode, "Encode data as URL-safe Base64",
		textCodec(func(s string) string { return base64.URLEncoding.EncodeToString([]byte(s)) }))
	base64URLDecode := newCodec("base64url_decode", OperationTypeDecode, "Decode URL-safe Base64 data",
		textDecoder(decodeBase64URL))
	pair(base64URLEncode, base64URLDecode)

	base32Encode := newCodec("base32_encode", OperationTypeEncode, "Encode data as RFC 4648 Base32",
		textCodec(func(s string) string { return base32.StdEncoding.EncodeToString([]byte(s)) }))
	base32Decode := newCodec("base32_decode", OperationTypeDecode, "Decode Base32 data (case-insensitive)",
		textDecoder(decodeBase32))
	pair(base32Encode, base32Decode)

	base16Encode := newCodec("base16_encode", OperationTypeEncode, "Encode data as uppercase Base16",
		textCodec(func(s string) string { return strings.ToUpper(hex.EncodeToString([]byte(s))) }))
	base16Decode := newCodec("base16_decode", OperationTypeDecode, "Decode Base16 data (case-insensitive)",
		textDecoder(decodeBase16))
	pair(base16Encode, base16Decode)

	base85Encode := newCodec("base85_encode", OperationTypeEncode, "Encode data as RFC 1924 Base85",
		textCodec(func(s string) string { return encodeBase85([]byte(s)) }))
	base85Decode := newCodec("base85_decode", OperationTypeDecode, "Decode RFC 1924 Base85 data",
		textDecoder(decodeBase85))
	pair(base85Encode, base85Decode)

	hexEncode := newCodec("hex_encode", OperationTypeEncode, "Encode bytes as hexadecimal string",
		textCodec(func(s string) string { return hex.EncodeToString([]byte(s)) }))
	hexDecode := newCodec("hex_decode", OperationTypeDecode, "Decode hexadecimal string to bytes",
		textDecoder(decodeHex))
	pair(hexEncode, hexDecode)

	urlEncode := newCodec("url_encode", OperationTypeEncode, "URL encode (percent-encode) data",
		textCodec(url.QueryEscape))
	urlDecode := newCodec("url_decode", OperationTypeDecode, "URL decode (percent-decode) data",
		textDecoder(func(s string) ([]byte, error) {
			decoded, err := url.QueryUnescape(s)
			return []byte(decoded), err
		}))
	pair(urlEncode, urlDecode)

	escapeEncode := newCodec("unicode_escape_encode", OperationTypeEncode, "Escape non-printable characters with backslash sequences",
		textCodec(encodeUnicodeEscape))
	escapeDecode := newCodec("unicode_escape_decode", OperationTypeDecode, "Expand backslash escape sequences",
		textDecoder(decodeUnicodeEscape))
	pair(escapeEncode, escapeDecode)

	binaryEncode := newCodec("binary_encode", OperationTypeEncode, "Encode bytes as binary string",
		func(in []byte) ([]byte, error) { return encodeBinary(in), nil })
	binaryDecode := newCodec("binary_decode", OperationTypeDecode, "Decode binary string to bytes",
		textDecoder(decodeBinary))
	pair(binaryEncode, binaryDecode)

	mustRegister(
		base64Encode, base64Decode,
		base64URLEncode, base64URLDecode,
		base32Encode, base32Decode,
		base16Encode, base16Decode,
		base85Encode, base85Decode,
		hexEncode, hexDecode,
		urlEncode, urlDecode,
		escapeEncode, escapeDecode,
		binaryEncode, binaryDecode,
	)
}
