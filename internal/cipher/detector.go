package cipher

import (
	"errors"
	"sort"
	"strings"
)

// Decoder attempts one encoding. Failures are reported as !ok and never
// surface as errors.
type Decoder struct {
	Name   string
	Decode func(text string) (string, bool)
}

var errUnchanged = errors.New("unescaping changed nothing")

func bytesDecoder(name string, fn func(string) ([]byte, error)) Decoder {
	return Decoder{
		Name: name,
		Decode: func(text string) (string, bool) {
			b, err := fn(text)
			if err != nil {
				return "", false
			}
			return strings.ToValidUTF8(string(b), ""), true
		},
	}
}

// decoders is the fixed order in which encodings are tried.
var decoders = []Decoder{
	bytesDecoder("base64", decodeBase64),
	bytesDecoder("base32", decodeBase32),
	bytesDecoder("base16", decodeBase16),
	bytesDecoder("base85", decodeBase85),
	bytesDecoder("hex", decodeHex),
	bytesDecoder("url", func(s string) ([]byte, error) {
		b, err := decodeURL(s)
		if err == nil && string(b) == s {
			return nil, errUnchanged
		}
		return b, err
	}),
	bytesDecoder("unicode_escape", decodeUnicodeEscape),
	bytesDecoder("binary", decodeBinary),
}

// Decoders returns the detector's decoders in the order they are tried.
func Decoders() []Decoder {
	return append([]Decoder(nil), decoders...)
}

// EncodingDetector guesses which common encoding a string is in by decoding
// it every known way and scoring the results.
type EncodingDetector struct {
	scorer Scorer
}

// NewEncodingDetector creates a detector that ranks decodes with scorer.
func NewEncodingDetector(scorer Scorer) *EncodingDetector {
	return &EncodingDetector{scorer: scorer}
}

// DetectEncoding scores every successful decode of text and returns the topK
// best. A non-positive topK keeps them all.
func (d *EncodingDetector) DetectEncoding(text string, topK int) []DetectionCandidate {
	var cands []DetectionCandidate
	for _, dec := range decoders {
		decoded, ok := dec.Decode(text)
		if !ok {
			continue
		}
		cands = append(cands, DetectionCandidate{
			Name:    dec.Name,
			Score:   d.scorer.Score(decoded),
			Decoded: decoded,
		})
	}
	return rankDetections(cands, topK)
}

// DecodeCommon runs the decoders in order, skipping outputs already produced
// by an earlier decoder, and stops after limit distinct results. The results
// are then ranked by score.
func (d *EncodingDetector) DecodeCommon(text string, limit int) []DetectionCandidate {
	seen := make(map[string]struct{})
	var out []DetectionCandidate
	for _, dec := range decoders {
		if limit > 0 && len(out) >= limit {
			break
		}
		decoded, ok := dec.Decode(text)
		if !ok {
			continue
		}
		if _, dup := seen[decoded]; dup {
			continue
		}
		seen[decoded] = struct{}{}
		out = append(out, DetectionCandidate{
			Name:    dec.Name,
			Score:   d.scorer.Score(decoded),
			Decoded: decoded,
		})
	}
	return rankDetections(out, 0)
}

func rankDetections(cands []DetectionCandidate, topK int) []DetectionCandidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Score > cands[j].Score
	})
	if topK > 0 && topK < len(cands) {
		cands = cands[:topK]
	}
	return cands
}
