package cipher

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Payload encodings accepted by ParsePayload.
const (
	PayloadHex    = "hex"
	PayloadBase64 = "b64"
	PayloadRaw    = "raw"
)

// ParsePayload converts a transport string into bytes. hex is strict, b64 is
// standard Base64 with padding, raw takes the UTF-8 bytes of data. Every
// failure wraps ErrDecode.
func ParsePayload(data, encoding string) ([]byte, error) {
	switch encoding {
	case PayloadHex:
		b, err := hex.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("%w: hex: %v", ErrDecode, err)
		}
		return b, nil
	case PayloadBase64:
		b, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("%w: b64: %v", ErrDecode, err)
		}
		return b, nil
	case PayloadRaw:
		return []byte(data), nil
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrDecode, encoding)
	}
}
