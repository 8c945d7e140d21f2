package breaker

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxTranspositionKeyLen bounds the columnar search. The cost of a search is
// the sum of k! for k in 2..maxKeyLen.
const MaxTranspositionKeyLen = 8

// columnLengths spreads n characters across k columns, earliest columns
// taking the remainder.
func columnLengths(n, k int) []int {
	lens := make([]int, k)
	for i := range lens {
		lens[i] = n / k
		if i < n%k {
			lens[i]++
		}
	}
	return lens
}

// readOrder maps each read position to the column holding that rank in perm.
func readOrder(perm []int) []int {
	order := make([]int, len(perm))
	for col, rank := range perm {
		order[rank] = col
	}
	return order
}

func validPermutation(perm []int) bool {
	seen := make([]bool, len(perm))
	for _, v := range perm {
		if v < 0 || v >= len(perm) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return len(perm) > 0
}

// ColumnarEncode writes text row by row under len(perm) columns and reads the
// columns off in the order given by perm: column c is read perm[c]-th.
func ColumnarEncode(text string, perm []int) (string, error) {
	if !validPermutation(perm) {
		return "", fmt.Errorf("invalid permutation %v", perm)
	}
	runes := []rune(text)
	k := len(perm)
	var sb strings.Builder
	for _, col := range readOrder(perm) {
		for i := col; i < len(runes); i += k {
			sb.WriteRune(runes[i])
		}
	}
	return sb.String(), nil
}

// ColumnarDecode inverts ColumnarEncode.
func ColumnarDecode(text string, perm []int) (string, error) {
	if !validPermutation(perm) {
		return "", fmt.Errorf("invalid permutation %v", perm)
	}
	return columnarDecode([]rune(text), perm), nil
}

func columnarDecode(runes []rune, perm []int) string {
	k := len(perm)
	lens := columnLengths(len(runes), k)
	cols := make([][]rune, k)
	pos := 0
	for _, col := range readOrder(perm) {
		cols[col] = runes[pos : pos+lens[col]]
		pos += lens[col]
	}
	out := make([]rune, 0, len(runes))
	for row := 0; row < lens[0]; row++ {
		for c := 0; c < k; c++ {
			if row < len(cols[c]) {
				out = append(out, cols[c][row])
			}
		}
	}
	return string(out)
}

func formatPermutation(perm []int) string {
	parts := make([]string, len(perm))
	for i, v := range perm {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, "-")
}

// TranspositionBreak tries every permutation of every key length in
// 2..maxKeyLen. maxKeyLen above MaxTranspositionKeyLen is rejected.
func (b *Breaker) TranspositionBreak(text string, maxKeyLen, topK int) ([]Candidate, error) {
	if maxKeyLen > MaxTranspositionKeyLen {
		return nil, fmt.Errorf("max key length %d exceeds %d: %w", maxKeyLen, MaxTranspositionKeyLen, ErrKeySpaceTooLarge)
	}
	runes := []rune(text)
	total := 0
	for k := 2; k <= maxKeyLen; k++ {
		total += factorial(k)
	}
	cands := make([]Candidate, 0, total)
	for k := 2; k <= maxKeyLen; k++ {
		perms := NewPermutations(k)
		for perm, ok := perms.Next(); ok; perm, ok = perms.Next() {
			pt := columnarDecode(runes, perm)
			cands = append(cands, Candidate{
				Algorithm:  "Transposition",
				Plaintext:  pt,
				Key:        formatPermutation(perm),
				Confidence: b.scorer.Score(pt),
			})
		}
	}
	return Rank(cands, topK), nil
}
