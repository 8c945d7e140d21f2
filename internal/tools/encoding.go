package tools

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/RowanDark/cryptbreak/internal/cipher"
	"github.com/RowanDark/cryptbreak/internal/scoring"
)

var payloadEncodings = map[string]bool{
	cipher.PayloadHex:    true,
	cipher.PayloadBase64: true,
	cipher.PayloadRaw:    true,
}

// payload decodes the string parameter name in the encoding held by encName.
func payload(p Params, name, encName, def string) ([]byte, error) {
	data, err := p.String(name)
	if err != nil {
		return nil, err
	}
	enc, err := p.OptString(encName, def)
	if err != nil {
		return nil, err
	}
	if !payloadEncodings[enc] {
		return nil, invalidf("%s must be hex, b64 or raw, got %q", encName, enc)
	}
	b, err := cipher.ParsePayload(data, enc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b, nil
}

func (k *Toolkit) encodingTools() []Tool {
	return []Tool{
		New("detect_encoding", "Decode text every known way and rank the results.",
			[]Param{required("text", "string", "encoded text"), param("top_k", "integer", "number of candidates to return", 5)},
			func(_ context.Context, p Params) (any, error) {
				text, err := p.String("text")
				if err != nil {
					return nil, err
				}
				n, err := positive(p, "top_k", 5)
				if err != nil {
					return nil, err
				}
				return nonNil(k.Detector.DetectEncoding(text, n)), nil
			}),
		New("decode_common", "Decode text with the common decoders, dropping duplicate outputs.",
			[]Param{required("text", "string", "encoded text"), param("limit", "integer", "maximum number of decodings", 10)},
			func(_ context.Context, p Params) (any, error) {
				text, err := p.String("text")
				if err != nil {
					return nil, err
				}
				n, err := positive(p, "limit", 10)
				if err != nil {
					return nil, err
				}
				return nonNil(k.Detector.DecodeCommon(text, n)), nil
			}),
		New("decode_pipeline", "Run a chain of encode and decode operations.",
			[]Param{
				required("input", "string", "input text"),
				required("operations", "array", `steps such as [{"name":"hex_decode"},{"name":"base64_decode"}]`),
				param("reverse", "boolean", "run the inverse pipeline", false),
			},
			k.decodePipeline),
		New("score_text", "Rate how English-like text is.",
			[]Param{required("text", "string", "candidate plaintext")},
			func(_ context.Context, p Params) (any, error) {
				text, err := p.String("text")
				if err != nil {
					return nil, err
				}
				return map[string]float64{"score": k.Scorer.Score(text)}, nil
			}),
		New("text_stats", "Score text and report its index of coincidence and wordlist hits.",
			[]Param{
				required("text", "string", "candidate plaintext"),
				param("words", "array", "words to look for", nil),
				param("wordlist", "string", "built-in wordlist to look for", "common"),
			},
			func(_ context.Context, p Params) (any, error) {
				text, err := p.String("text")
				if err != nil {
					return nil, err
				}
				words, err := wordsParam(p, "common")
				if err != nil {
					return nil, err
				}
				return map[string]float64{
					"score":                k.Scorer.Score(text),
					"index_of_coincidence": scoring.IndexOfCoincidence(text),
					"wordlist_score":       scoring.WordlistScore(text, words),
				}, nil
			}),
		New("hamming", "Count differing bits between two equal-length inputs.",
			[]Param{
				required("a", "string", "first input"),
				required("b", "string", "second input"),
				param("encoding", "string", "hex, b64 or raw", "raw"),
			},
			func(_ context.Context, p Params) (any, error) {
				a, err := payload(p, "a", "encoding", cipher.PayloadRaw)
				if err != nil {
					return nil, err
				}
				b, err := payload(p, "b", "encoding", cipher.PayloadRaw)
				if err != nil {
					return nil, err
				}
				d, err := scoring.HammingDistance(a, b)
				if err != nil {
					return nil, invalidf("%v", err)
				}
				return map[string]int{"distance": d}, nil
			}),
		New("hash_identify", "Guess the digest family of a hash.",
			[]Param{required("text", "string", "digest")},
			func(_ context.Context, p Params) (any, error) {
				text, err := p.String("text")
				if err != nil {
					return nil, err
				}
				return cipher.IdentifyHash(text), nil
			}),
		New("hash_crack", "Dictionary attack a hex digest.",
			[]Param{
				required("digest", "string", "hex digest"),
				param("words", "array", "candidate words", nil),
				param("wordlist", "string", "built-in wordlist", "common+ctf"),
				param("algorithms", "array", strings.Join(cipher.HashAlgorithms(), ", "), nil),
			},
			func(ctx context.Context, p Params) (any, error) {
				digest, err := p.String("digest")
				if err != nil {
					return nil, err
				}
				words, err := wordsParam(p, "")
				if err != nil {
					return nil, err
				}
				algorithms, err := p.Strings("algorithms")
				if err != nil {
					return nil, err
				}
				res, err := cipher.CrackHash(ctx, digest, words, algorithms)
				if errors.Is(err, cipher.ErrUnknownAlgorithm) {
					return nil, invalidf("%v", err)
				}
				return res, err
			}),
		New("jwt_decode", "Decode a JWT without verifying it.",
			[]Param{required("token", "string", "compact JWT")},
			func(_ context.Context, p Params) (any, error) {
				token, err := p.String("token")
				if err != nil {
					return nil, err
				}
				return cipher.DecodeJWT(token)
			}),
		New("jwt_crack", "Dictionary attack the HMAC secret of a JWT.",
			[]Param{
				required("token", "string", "HS256/384/512 JWT"),
				param("words", "array", "candidate secrets", nil),
				param("wordlist", "string", "built-in wordlist", "common+ctf"),
			},
			func(ctx context.Context, p Params) (any, error) {
				token, err := p.String("token")
				if err != nil {
					return nil, err
				}
				words, err := wordsParam(p, "")
				if err != nil {
					return nil, err
				}
				res, err := cipher.CrackJWT(ctx, token, words)
				if errors.Is(err, cipher.ErrUnsupportedJWT) {
					return nil, invalidf("%v", err)
				}
				return res, err
			}),
	}
}

// wordsParam resolves "words" or the named built-in "wordlist". Without
// either it returns def, or every built-in list when def is empty.
func wordsParam(p Params, def string) ([]string, error) {
	words, err := p.Strings("words")
	if err != nil || len(words) > 0 {
		return words, err
	}
	name, err := p.OptString("wordlist", def)
	if err != nil {
		return nil, err
	}
	if name == "" {
		var all []string
		for _, n := range cipher.WordlistNames() {
			list, _ := cipher.Wordlist(n)
			all = append(all, list...)
		}
		return all, nil
	}
	list, ok := cipher.Wordlist(name)
	if !ok {
		return nil, invalidf("unknown wordlist %q, have %s", name, strings.Join(cipher.WordlistNames(), ", "))
	}
	return list, nil
}

type pipelineOutput struct {
	Output    string                   `json:"output"`
	OutputHex string                   `json:"output_hex,omitempty"`
	Steps     []cipher.OperationConfig `json:"steps"`
}

func (k *Toolkit) decodePipeline(ctx context.Context, p Params) (any, error) {
	input, err := p.String("input")
	if err != nil {
		return nil, err
	}
	raw := p.Field("operations")
	if raw == "" {
		return nil, invalidf("missing required parameter operations")
	}
	var steps []cipher.OperationConfig
	if err := json.Unmarshal([]byte(raw), &steps); err != nil {
		return nil, invalidf("operations: %v", err)
	}
	if len(steps) == 0 {
		return nil, invalidf("operations must not be empty")
	}
	for i, step := range steps {
		if _, ok := cipher.GetOperation(step.Name); !ok {
			return nil, invalidf("unknown operation %q at step %d", step.Name, i)
		}
	}
	reverse, err := p.Bool("reverse", false)
	if err != nil {
		return nil, err
	}

	pipeline := &cipher.Pipeline{Operations: steps, Reversible: reverse}
	if reverse {
		if pipeline, err = pipeline.Reverse(); err != nil {
			return nil, invalidf("%v", err)
		}
	}
	out, err := pipeline.Execute(ctx, []byte(input))
	if err != nil {
		if errors.Is(err, cipher.ErrDecode) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", cipher.ErrDecode, err)
	}
	res := pipelineOutput{Output: strings.ToValidUTF8(string(out), ""), Steps: pipeline.Operations}
	if !utf8.Valid(out) {
		res.OutputHex = hex.EncodeToString(out)
	}
	return res, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
