package breaker

import (
	"fmt"
	"strconv"
	"strings"
)

// shiftRune rotates an ASCII letter backward by k within its case; every other
// rune passes through.
func shiftRune(r rune, k int) rune {
	switch {
	case r >= 'A' && r <= 'Z':
		return 'A' + rune(mod(int(r-'A')-k, 26))
	case r >= 'a' && r <= 'z':
		return 'a' + rune(mod(int(r-'a')-k, 26))
	default:
		return r
	}
}

func mod(a, m int) int {
	a %= m
	if a < 0 {
		a += m
	}
	return a
}

func isLetter(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

// ShiftDecode rotates every letter of text backward by k positions.
func ShiftDecode(text string, k int) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		sb.WriteRune(shiftRune(r, k))
	}
	return sb.String()
}

// ShiftEncode rotates every letter of text forward by k positions.
func ShiftEncode(text string, k int) string {
	return ShiftDecode(text, -k)
}

// RotAll tries every non-identity shift and returns the topK candidates.
func (b *Breaker) RotAll(text string, topK int) []Candidate {
	cands := make([]Candidate, 0, 25)
	for k := 1; k <= 25; k++ {
		pt := ShiftDecode(text, k)
		cands = append(cands, Candidate{
			Algorithm:  fmt.Sprintf("ROT%d", k),
			Plaintext:  pt,
			Key:        strconv.Itoa(k),
			Confidence: b.scorer.Score(pt),
		})
	}
	return Rank(cands, topK)
}

// CaesarBreak returns the single best shift in 0..25. When nothing scores
// above zero the result has an empty plaintext and key "0".
func (b *Breaker) CaesarBreak(text string) Candidate {
	best := Candidate{Algorithm: "Caesar", Key: "0"}
	for k := 0; k < 26; k++ {
		pt := ShiftDecode(text, k)
		if sc := b.scorer.Score(pt); sc > best.Confidence {
			best = Candidate{Algorithm: "Caesar", Plaintext: pt, Key: strconv.Itoa(k), Confidence: sc}
		}
	}
	return best
}

// bestShift returns the shift in 0..25 whose decoding of letters scores
// highest; ties keep the smallest shift.
func (b *Breaker) bestShift(letters string) int {
	best, bestScore := 0, 0.0
	for k := 0; k < 26; k++ {
		if sc := b.scorer.Score(ShiftDecode(letters, k)); sc > bestScore {
			best, bestScore = k, sc
		}
	}
	return best
}
