package tools

import (
	"context"
	"errors"

	"github.com/RowanDark/cryptbreak/internal/breaker"
)

func (k *Toolkit) classicTools() []Tool {
	topK := func(def int) Param { return param("top_k", "integer", "number of candidates to return", def) }
	return []Tool{
		New("rot_all", "Try every Caesar shift and rank the decodings.",
			[]Param{required("text", "string", "ciphertext"), topK(3)},
			func(_ context.Context, p Params) (any, error) {
				text, err := p.String("text")
				if err != nil {
					return nil, err
				}
				n, err := positive(p, "top_k", 3)
				if err != nil {
					return nil, err
				}
				return k.Breaker.RotAll(text, n), nil
			}),
		New("caesar_break", "Recover a Caesar shift by letter frequency.",
			[]Param{required("ciphertext", "string", "ciphertext")},
			func(_ context.Context, p Params) (any, error) {
				text, err := p.String("ciphertext")
				if err != nil {
					return nil, err
				}
				return k.Breaker.CaesarBreak(text), nil
			}),
		New("vigenere_break", "Recover a Vigenère key per candidate key length.",
			[]Param{
				required("ciphertext", "string", "ciphertext"),
				param("max_key_len", "integer", "longest key length to try", 16),
				topK(3),
			},
			func(_ context.Context, p Params) (any, error) {
				text, err := p.String("ciphertext")
				if err != nil {
					return nil, err
				}
				maxLen, err := positive(p, "max_key_len", 16)
				if err != nil {
					return nil, err
				}
				n, err := positive(p, "top_k", 3)
				if err != nil {
					return nil, err
				}
				return k.Breaker.VigenereBreak(text, maxLen, n), nil
			}),
		New("affine_break", "Try every valid affine key pair.",
			[]Param{required("ciphertext", "string", "ciphertext"), topK(3)},
			func(_ context.Context, p Params) (any, error) {
				text, err := p.String("ciphertext")
				if err != nil {
					return nil, err
				}
				n, err := positive(p, "top_k", 3)
				if err != nil {
					return nil, err
				}
				return k.Breaker.AffineBreak(text, n), nil
			}),
		New("rail_fence_break", "Try every rail count from 2 to max_rails.",
			[]Param{
				required("ciphertext", "string", "ciphertext"),
				param("max_rails", "integer", "largest rail count to try", 10),
				topK(3),
			},
			func(_ context.Context, p Params) (any, error) {
				text, err := p.String("ciphertext")
				if err != nil {
					return nil, err
				}
				rails, err := positive(p, "max_rails", 10)
				if err != nil {
					return nil, err
				}
				n, err := positive(p, "top_k", 3)
				if err != nil {
					return nil, err
				}
				return k.Breaker.RailFenceBreak(text, rails, n), nil
			}),
		New("transposition_break", "Try every column order of every key length up to max_key_len.",
			[]Param{
				required("ciphertext", "string", "ciphertext"),
				param("max_key_len", "integer", "longest key to try, at most 8", 5),
				topK(3),
			},
			func(_ context.Context, p Params) (any, error) {
				text, err := p.String("ciphertext")
				if err != nil {
					return nil, err
				}
				maxLen, err := positive(p, "max_key_len", 5)
				if err != nil {
					return nil, err
				}
				n, err := positive(p, "top_k", 3)
				if err != nil {
					return nil, err
				}
				cands, err := k.Breaker.TranspositionBreak(text, maxLen, n)
				if errors.Is(err, breaker.ErrKeySpaceTooLarge) {
					return nil, invalidf("%v", err)
				}
				return cands, err
			}),
		New("playfair_break", "Decrypt Playfair with a key hint.",
			[]Param{
				required("ciphertext", "string", "ciphertext"),
				param("key_hint", "string", "candidate key", nil),
				param("top_k", "integer", "number of candidates to return", 1),
			},
			func(_ context.Context, p Params) (any, error) {
				text, err := p.String("ciphertext")
				if err != nil {
					return nil, err
				}
				hint, err := p.OptString("key_hint", "")
				if err != nil {
					return nil, err
				}
				n, err := positive(p, "top_k", 1)
				if err != nil {
					return nil, err
				}
				return breaker.Rank(k.Breaker.PlayfairBreak(text, hint), n), nil
			}),
	}
}

func (k *Toolkit) xorTools() []Tool {
	data := required("data", "string", "ciphertext bytes in the given encoding")
	encoding := param("encoding", "string", "hex, b64 or raw", "hex")
	return []Tool{
		New("xor_single_break", "Try all 256 single-byte XOR keys.",
			[]Param{data, encoding, param("top_k", "integer", "number of candidates to return", 3)},
			func(ctx context.Context, p Params) (any, error) {
				b, err := payload(p, "data", "encoding", "hex")
				if err != nil {
					return nil, err
				}
				n, err := positive(p, "top_k", 3)
				if err != nil {
					return nil, err
				}
				return k.Breaker.XORSingleBreak(ctx, b, n)
			}),
		New("xor_repeating_break", "Recover a repeating XOR key via Hamming key-size estimation.",
			[]Param{
				data, encoding,
				param("min_key", "integer", "shortest key length", 2),
				param("max_key", "integer", "longest key length", 40),
			},
			func(_ context.Context, p Params) (any, error) {
				b, err := payload(p, "data", "encoding", "hex")
				if err != nil {
					return nil, err
				}
				minKey, maxKey, err := keyRange(p)
				if err != nil {
					return nil, err
				}
				return k.Breaker.XORRepeatingBreak(b, minKey, maxKey), nil
			}),
		New("xor_key_sizes", "Rank repeating XOR key lengths by normalised Hamming distance.",
			[]Param{
				data, encoding,
				param("min_key", "integer", "shortest key length", 2),
				param("max_key", "integer", "longest key length", 40),
				param("blocks", "integer", "blocks compared per key length", 4),
			},
			func(_ context.Context, p Params) (any, error) {
				b, err := payload(p, "data", "encoding", "hex")
				if err != nil {
					return nil, err
				}
				minKey, maxKey, err := keyRange(p)
				if err != nil {
					return nil, err
				}
				blocks, err := positive(p, "blocks", 4)
				if err != nil {
					return nil, err
				}
				guesses := breaker.EstimateKeySizes(b, minKey, maxKey, blocks)
				if guesses == nil {
					guesses = []breaker.KeySizeGuess{}
				}
				return guesses, nil
			}),
	}
}

func keyRange(p Params) (int, int, error) {
	minKey, err := positive(p, "min_key", 2)
	if err != nil {
		return 0, 0, err
	}
	maxKey, err := positive(p, "max_key", 40)
	if err != nil {
		return 0, 0, err
	}
	if maxKey < minKey {
		return 0, 0, invalidf("max_key %d is below min_key %d", maxKey, minKey)
	}
	return minKey, maxKey, nil
}
