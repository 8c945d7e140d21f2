// Package breaker implements the brute-force search core: every routine
// enumerates a finite key space, decodes, scores each candidate plaintext and
// returns the best candidates ranked by confidence.
package breaker

import (
	"errors"
	"sort"
)

// ErrKeySpaceTooLarge is returned when a requested search would enumerate an
// unreasonable number of keys.
var ErrKeySpaceTooLarge = errors.New("key space too large")

// Scorer rates how plausible a decoded text is as plaintext.
type Scorer interface {
	Score(text string) float64
}

// Candidate is a single decoding attempt.
type Candidate struct {
	Algorithm  string  `json:"algorithm"`
	Plaintext  string  `json:"plaintext"`
	Key        string  `json:"key"`
	Confidence float64 `json:"confidence"`
}

// Breaker runs the enumerators against a shared scorer.
type Breaker struct {
	scorer  Scorer
	workers int
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithWorkers bounds the worker pool used by parallel sweeps.
func WithWorkers(n int) Option {
	return func(b *Breaker) {
		b.workers = n
	}
}

// New returns a Breaker that ranks candidates with scorer.
func New(scorer Scorer, opts ...Option) *Breaker {
	b := &Breaker{scorer: scorer, workers: DefaultWorkers()}
	for _, opt := range opts {
		opt(b)
	}
	b.workers = clampWorkers(b.workers)
	return b
}

// Rank orders candidates by descending confidence, keeping enumeration order
// among equal scores, and truncates to topK. A non-positive topK keeps every
// candidate.
func Rank(cands []Candidate, topK int) []Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Confidence > cands[j].Confidence
	})
	if topK > 0 && topK < len(cands) {
		cands = cands[:topK]
	}
	return cands
}
