package breaker

import (
	"fmt"
	"strings"
)

// modInverse26 returns the inverse of a modulo 26, or false when a shares a
// factor with 26.
func modInverse26(a int) (int, bool) {
	a = mod(a, 26)
	for i := 1; i < 26; i++ {
		if a*i%26 == 1 {
			return i, true
		}
	}
	return 0, false
}

// AffineDecode inverts c = a*p + b (mod 26). It reports false when a is not
// invertible.
func AffineDecode(text string, a, b int) (string, bool) {
	inv, ok := modInverse26(a)
	if !ok {
		return "", false
	}
	return affineMap(text, func(x int) int { return inv * (x - b) }), true
}

// AffineEncode computes c = a*p + b (mod 26) for every letter.
func AffineEncode(text string, a, b int) string {
	return affineMap(text, func(x int) int { return a*x + b })
}

func affineMap(text string, f func(int) int) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 'A' && r <= 'Z':
			sb.WriteRune('A' + rune(mod(f(int(r-'A')), 26)))
		case r >= 'a' && r <= 'z':
			sb.WriteRune('a' + rune(mod(f(int(r-'a')), 26)))
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// AffineBreak searches every invertible (a, b) pair.
func (b *Breaker) AffineBreak(text string, topK int) []Candidate {
	cands := make([]Candidate, 0, 312)
	for a := 1; a < 26; a++ {
		inv, ok := modInverse26(a)
		if !ok {
			continue
		}
		for shift := 0; shift < 26; shift++ {
			pt := affineMap(text, func(x int) int { return inv * (x - shift) })
			cands = append(cands, Candidate{
				Algorithm:  "Affine",
				Plaintext:  pt,
				Key:        fmt.Sprintf("a=%d,b=%d", a, shift),
				Confidence: b.scorer.Score(pt),
			})
		}
	}
	return Rank(cands, topK)
}
