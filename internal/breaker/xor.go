package breaker

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/RowanDark/cryptbreak/internal/scoring"
)

// KeySizeGuess is a candidate repeating-key length with its normalized
// Hamming distance; smaller distances are more likely.
type KeySizeGuess struct {
	Size     int     `json:"size"`
	Distance float64 `json:"distance"`
}

// unrankableDistance marks key sizes without enough data to measure.
const unrankableDistance = 1e9

const (
	keySizeBlocks   = 4
	keySizesToTry   = 5
	singleByteSpace = 256
)

// bestEffortText decodes b as UTF-8, dropping invalid sequences.
func bestEffortText(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}

// XORSingle xors every byte of data with key.
func XORSingle(data []byte, key byte) []byte {
	out := make([]byte, len(data))
	for i, c := range data {
		out[i] = c ^ key
	}
	return out
}

// RepeatingKeyXOR xors data with key repeated over its length.
func RepeatingKeyXOR(data, key []byte) []byte {
	if len(key) == 0 {
		return append([]byte(nil), data...)
	}
	out := make([]byte, len(data))
	for i, c := range data {
		out[i] = c ^ key[i%len(key)]
	}
	return out
}

// XORSingleBreak tries all 256 single-byte keys in parallel.
func (b *Breaker) XORSingleBreak(ctx context.Context, data []byte, topK int) ([]Candidate, error) {
	cands, err := sweep(ctx, b.workers, singleByteSpace, func(k int) Candidate {
		pt := bestEffortText(XORSingle(data, byte(k)))
		return Candidate{
			Algorithm:  "XOR-single",
			Plaintext:  pt,
			Key:        strconv.Itoa(k),
			Confidence: b.scorer.Score(pt),
		}
	})
	if err != nil {
		return nil, err
	}
	return Rank(cands, topK), nil
}

// EstimateKeySizes ranks key lengths in [minKey, maxKey] by the average
// normalized Hamming distance between the first blocks consecutive blocks.
func EstimateKeySizes(data []byte, minKey, maxKey, blocks int) []KeySizeGuess {
	if blocks < 2 {
		blocks = 2
	}
	if minKey < 1 {
		minKey = 1
	}
	var guesses []KeySizeGuess
	for size := minKey; size <= maxKey; size++ {
		guesses = append(guesses, KeySizeGuess{Size: size, Distance: normalizedDistance(data, size, blocks)})
	}
	sort.SliceStable(guesses, func(i, j int) bool {
		return guesses[i].Distance < guesses[j].Distance
	})
	return guesses
}

func normalizedDistance(data []byte, size, blocks int) float64 {
	if size*blocks > len(data) {
		return unrankableDistance
	}
	var total float64
	for i := 0; i < blocks-1; i++ {
		a := data[i*size : (i+1)*size]
		c := data[(i+1)*size : (i+2)*size]
		d, err := scoring.HammingDistance(a, c)
		if err != nil {
			return unrankableDistance
		}
		total += float64(d) / float64(size)
	}
	return total / float64(blocks-1)
}

// bestSingleByte returns the key byte whose decoding of column scores highest;
// ties keep the smallest byte.
func (b *Breaker) bestSingleByte(column []byte) byte {
	var best byte
	bestScore := -1.0
	for k := 0; k < singleByteSpace; k++ {
		if sc := b.scorer.Score(bestEffortText(XORSingle(column, byte(k)))); sc > bestScore {
			best, bestScore = byte(k), sc
		}
	}
	return best
}

// XORRepeatingBreak estimates likely key lengths, solves each column as a
// single-byte XOR and returns the best full decoding. Inputs too short to
// measure still yield a candidate, possibly with an empty plaintext.
func (b *Breaker) XORRepeatingBreak(data []byte, minKey, maxKey int) Candidate {
	best := Candidate{Algorithm: "XOR-repeating"}
	bestScore := -1.0

	guesses := EstimateKeySizes(data, minKey, maxKey, keySizeBlocks)
	if len(guesses) > keySizesToTry {
		guesses = guesses[:keySizesToTry]
	}
	for _, g := range guesses {
		key := make([]byte, g.Size)
		column := make([]byte, 0, len(data)/g.Size+1)
		for i := 0; i < g.Size; i++ {
			column = column[:0]
			for j := i; j < len(data); j += g.Size {
				column = append(column, data[j])
			}
			key[i] = b.bestSingleByte(column)
		}
		pt := bestEffortText(RepeatingKeyXOR(data, key))
		if sc := b.scorer.Score(pt); sc > bestScore {
			bestScore = sc
			best = Candidate{
				Algorithm:  "XOR-repeating",
				Plaintext:  pt,
				Key:        bestEffortText(key),
				Confidence: sc,
			}
		}
	}
	return best
}
