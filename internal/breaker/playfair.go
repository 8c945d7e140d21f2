package breaker

import "strings"

const playfairFiller = 'x'

// playfairTable is a 5x5 Playfair square over a-z with j merged into i.
type playfairTable struct {
	cells [25]rune
	pos   map[rune][2]int
}

func foldPlayfair(r rune) (rune, bool) {
	if r >= 'A' && r <= 'Z' {
		r += 'a' - 'A'
	}
	if r < 'a' || r > 'z' {
		return 0, false
	}
	if r == 'j' {
		r = 'i'
	}
	return r, true
}

func newPlayfairTable(key string) *playfairTable {
	t := &playfairTable{pos: make(map[rune][2]int, 25)}
	n := 0
	add := func(r rune) {
		if _, seen := t.pos[r]; seen || n >= 25 {
			return
		}
		t.cells[n] = r
		t.pos[r] = [2]int{n / 5, n % 5}
		n++
	}
	for _, r := range key {
		if c, ok := foldPlayfair(r); ok {
			add(c)
		}
	}
	for r := 'a'; r <= 'z'; r++ {
		if c, ok := foldPlayfair(r); ok {
			add(c)
		}
	}
	return t
}

func (t *playfairTable) at(row, col int) rune {
	return t.cells[mod(row, 5)*5+mod(col, 5)]
}

// playfairDigraphs splits letters into pairs, breaking doubled letters and
// padding an odd tail with the filler.
func playfairDigraphs(letters []rune) [][2]rune {
	var pairs [][2]rune
	for i := 0; i < len(letters); {
		a := letters[i]
		b := playfairFiller
		if i+1 < len(letters) {
			b = letters[i+1]
		}
		if a == b {
			b = playfairFiller
			i++
		} else {
			i += 2
		}
		pairs = append(pairs, [2]rune{a, b})
	}
	return pairs
}

// PlayfairDecode decrypts text with the square built from key. Output is
// lowercase letters only.
func PlayfairDecode(text, key string) string {
	t := newPlayfairTable(key)
	letters := make([]rune, 0, len(text))
	for _, r := range text {
		if c, ok := foldPlayfair(r); ok {
			letters = append(letters, c)
		}
	}
	var sb strings.Builder
	for _, p := range playfairDigraphs(letters) {
		pa, pb := t.pos[p[0]], t.pos[p[1]]
		switch {
		case pa[0] == pb[0]:
			sb.WriteRune(t.at(pa[0], pa[1]-1))
			sb.WriteRune(t.at(pb[0], pb[1]-1))
		case pa[1] == pb[1]:
			sb.WriteRune(t.at(pa[0]-1, pa[1]))
			sb.WriteRune(t.at(pb[0]-1, pb[1]))
		default:
			sb.WriteRune(t.at(pa[0], pb[1]))
			sb.WriteRune(t.at(pb[0], pa[1]))
		}
	}
	return sb.String()
}

// PlayfairEncode encrypts text with the square built from key.
func PlayfairEncode(text, key string) string {
	t := newPlayfairTable(key)
	letters := make([]rune, 0, len(text))
	for _, r := range text {
		if c, ok := foldPlayfair(r); ok {
			letters = append(letters, c)
		}
	}
	var sb strings.Builder
	for _, p := range playfairDigraphs(letters) {
		pa, pb := t.pos[p[0]], t.pos[p[1]]
		switch {
		case pa[0] == pb[0]:
			sb.WriteRune(t.at(pa[0], pa[1]+1))
			sb.WriteRune(t.at(pb[0], pb[1]+1))
		case pa[1] == pb[1]:
			sb.WriteRune(t.at(pa[0]+1, pa[1]))
			sb.WriteRune(t.at(pb[0]+1, pb[1]))
		default:
			sb.WriteRune(t.at(pa[0], pb[1]))
			sb.WriteRune(t.at(pb[0], pa[1]))
		}
	}
	return sb.String()
}

// PlayfairBreak decrypts with a supplied key. Without a key there is nothing to
// search, so a single empty placeholder candidate is returned.
func (b *Breaker) PlayfairBreak(text, keyHint string) []Candidate {
	if strings.TrimSpace(keyHint) == "" {
		return []Candidate{{Algorithm: "Playfair"}}
	}
	pt := PlayfairDecode(text, keyHint)
	return []Candidate{{
		Algorithm:  "Playfair",
		Plaintext:  pt,
		Key:        keyHint,
		Confidence: b.scorer.Score(pt),
	}}
}
