package scoring

import (
	"errors"
	"math/bits"
	"strings"
	"unicode"
)

// ErrLengthMismatch is returned when comparing buffers of different lengths.
var ErrLengthMismatch = errors.New("buffers must have equal length")

// HammingDistance returns the number of differing bits between two
// equal-length buffers.
func HammingDistance(a, b []byte) (int, error) {
	if len(a) != len(b) {
		return 0, ErrLengthMismatch
	}
	var d int
	for i := range a {
		d += bits.OnesCount8(a[i] ^ b[i])
	}
	return d, nil
}

// IndexOfCoincidence computes the case-insensitive index of coincidence over
// the alphabetic runes of text.
func IndexOfCoincidence(text string) float64 {
	freq := make(map[rune]int)
	var n int
	for _, r := range text {
		if unicode.IsLetter(r) {
			freq[unicode.ToLower(r)]++
			n++
		}
	}
	if n <= 1 {
		return 0
	}
	var num int
	for _, v := range freq {
		num += v * (v - 1)
	}
	return float64(num) / float64(n*(n-1))
}

// WordlistScore returns the fraction of words that occur in text,
// case-insensitively.
func WordlistScore(text string, words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	lowered := strings.ToLower(text)
	var hits int
	for _, w := range words {
		if w != "" && strings.Contains(lowered, strings.ToLower(w)) {
			hits++
		}
	}
	return min(1.0, float64(hits)/float64(len(words)))
}
