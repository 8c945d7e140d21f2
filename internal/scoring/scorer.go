// Package scoring estimates how closely a candidate buffer resembles English
// plaintext. Every brute-force routine in cryptbreak ranks its candidates with
// a Scorer.
package scoring

import (
	"regexp"
	"unicode"
)

// Sentinel is returned for text containing a CTF flag marker such as
// flag{...}. It lies outside [0,1] so marker hits always outrank statistical
// matches.
const Sentinel = 10.0

var markerPattern = regexp.MustCompile(`(?i)(flag|ctf|key|secret)\{.*?\}`)

// Scorer computes plausibility scores, memoizing results in an injected Cache.
type Scorer struct {
	cache Cache
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithCache sets the memoization cache used by the scorer.
func WithCache(c Cache) Option {
	return func(s *Scorer) {
		if c != nil {
			s.cache = c
		}
	}
}

// New creates a scorer. Without WithCache the scorer owns a fresh LRU cache of
// DefaultCacheSize entries.
func New(opts ...Option) *Scorer {
	s := &Scorer{}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewLRUCache(DefaultCacheSize)
	}
	return s
}

// Score returns the plausibility of text in [0,1], or Sentinel when a flag
// marker is present.
func (s *Scorer) Score(text string) float64 {
	return s.cache.GetOrCompute(text, englishScore)
}

// Cache exposes the scorer's memoization cache.
func (s *Scorer) Cache() Cache {
	return s.cache
}

// englishScore is the uncached scoring function.
func englishScore(text string) float64 {
	if text == "" {
		return 0
	}
	if markerPattern.MatchString(text) {
		return Sentinel
	}

	runes := []rune(text)
	n := float64(len(runes))

	var letterSum float64
	var printable, alphabetic int
	for _, r := range runes {
		if f, ok := letterFreq[unicode.ToLower(r)]; ok {
			letterSum += f
		}
		if unicode.IsPrint(r) {
			printable++
		}
		if unicode.IsLetter(r) {
			alphabetic++
		}
	}

	if float64(printable)/n < minPrintableRatio {
		return 0
	}
	if float64(alphabetic)/n < minAlphabeticRatio {
		return 0
	}

	letter := clamp01((letterSum/n - randomLetterBaseline) / englishLetterSpan)
	bigram := bigramScore(runes)

	return clamp01(letter*letterWeight + bigram*bigramWeight)
}

func bigramScore(runes []rune) float64 {
	if len(runes) < 2 {
		return 0
	}
	var sum float64
	var hits int
	pair := make([]rune, 2)
	for i := 0; i < len(runes)-1; i++ {
		pair[0] = unicode.ToLower(runes[i])
		pair[1] = unicode.ToLower(runes[i+1])
		if f, ok := bigramFreq[string(pair)]; ok {
			sum += f
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	avg := sum / float64(hits)
	return clamp01(min(bigramCeiling, avg) / bigramExpectedAverage)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
