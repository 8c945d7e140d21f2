package breaker

import "strconv"

// railPattern returns the zig-zag row of each position in a message of
// length n written across rails rows.
func railPattern(n, rails int) []int {
	rows := make([]int, n)
	r, d := 0, 1
	for i := 0; i < n; i++ {
		rows[i] = r
		r += d
		if r == rails-1 {
			d = -1
		}
		if r == 0 {
			d = 1
		}
	}
	return rows
}

// RailFenceEncode writes text in a zig-zag over rails rows and reads it off
// row by row. Fewer than two rails leaves text unchanged.
func RailFenceEncode(text string, rails int) string {
	runes := []rune(text)
	if rails < 2 {
		return text
	}
	rows := railPattern(len(runes), rails)
	out := make([]rune, 0, len(runes))
	for r := 0; r < rails; r++ {
		for i, row := range rows {
			if row == r {
				out = append(out, runes[i])
			}
		}
	}
	return string(out)
}

// RailFenceDecode inverts RailFenceEncode.
func RailFenceDecode(text string, rails int) string {
	runes := []rune(text)
	if rails < 2 {
		return text
	}
	rows := railPattern(len(runes), rails)
	out := make([]rune, len(runes))
	pos := 0
	for r := 0; r < rails; r++ {
		for i, row := range rows {
			if row == r {
				out[i] = runes[pos]
				pos++
			}
		}
	}
	return string(out)
}

// RailFenceBreak tries every rail count in 2..maxRails.
func (b *Breaker) RailFenceBreak(text string, maxRails, topK int) []Candidate {
	cands := make([]Candidate, 0, max(maxRails-1, 0))
	for rails := 2; rails <= maxRails; rails++ {
		pt := RailFenceDecode(text, rails)
		cands = append(cands, Candidate{
			Algorithm:  "RailFence",
			Plaintext:  pt,
			Key:        strconv.Itoa(rails),
			Confidence: b.scorer.Score(pt),
		})
	}
	return Rank(cands, topK)
}
