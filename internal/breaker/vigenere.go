package breaker

import "strings"

// VigenereDecode decrypts text with key. The key advances only on letters;
// non-letter key characters are ignored.
func VigenereDecode(text, key string) string {
	return vigenere(text, key, 1)
}

// VigenereEncode encrypts text with key.
func VigenereEncode(text, key string) string {
	return vigenere(text, key, -1)
}

func vigenere(text, key string, dir int) string {
	shifts := keyShifts(key)
	if len(shifts) == 0 {
		return text
	}
	var sb strings.Builder
	sb.Grow(len(text))
	ci := 0
	for _, r := range text {
		if isLetter(r) {
			sb.WriteRune(shiftRune(r, dir*shifts[ci%len(shifts)]))
			ci++
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func keyShifts(key string) []int {
	shifts := make([]int, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'A' && r <= 'Z':
			shifts = append(shifts, int(r-'A'))
		case r >= 'a' && r <= 'z':
			shifts = append(shifts, int(r-'a'))
		}
	}
	return shifts
}

// VigenereBreak recovers a key for every length in 2..maxKeyLen by solving
// each column as an independent shift cipher, then ranks the full decodings.
func (b *Breaker) VigenereBreak(text string, maxKeyLen, topK int) []Candidate {
	letters := make([]rune, 0, len(text))
	for _, r := range text {
		if isLetter(r) {
			letters = append(letters, r)
		}
	}

	cands := make([]Candidate, 0, max(maxKeyLen-1, 0))
	for klen := 2; klen <= maxKeyLen; klen++ {
		key := make([]byte, klen)
		column := make([]rune, 0, len(letters)/klen+1)
		for i := 0; i < klen; i++ {
			column = column[:0]
			for j := i; j < len(letters); j += klen {
				column = append(column, letters[j])
			}
			key[i] = byte('A' + b.bestShift(string(column)))
		}
		pt := VigenereDecode(text, string(key))
		cands = append(cands, Candidate{
			Algorithm:  "Vigenere",
			Plaintext:  pt,
			Key:        string(key),
			Confidence: b.scorer.Score(pt),
		})
	}
	return Rank(cands, topK)
}
