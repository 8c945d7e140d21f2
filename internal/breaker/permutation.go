package breaker

// Permutations generates every permutation of 0..k-1 in lexicographic order
// without materializing the full set.
type Permutations struct {
	cur     []int
	started bool
	done    bool
}

// NewPermutations returns a generator over permutations of k elements.
func NewPermutations(k int) *Permutations {
	p := &Permutations{cur: make([]int, max(k, 0))}
	p.Reset()
	return p
}

// Reset rewinds the generator to the identity permutation.
func (p *Permutations) Reset() {
	for i := range p.cur {
		p.cur[i] = i
	}
	p.started = false
	p.done = false
}

// Next returns the next permutation, or false once the sequence is exhausted.
// The returned slice is a copy the caller may keep.
func (p *Permutations) Next() ([]int, bool) {
	if p.done {
		return nil, false
	}
	if !p.started {
		p.started = true
		return append([]int(nil), p.cur...), true
	}
	if !nextPermutation(p.cur) {
		p.done = true
		return nil, false
	}
	return append([]int(nil), p.cur...), true
}

// nextPermutation advances a to its lexicographic successor in place.
func nextPermutation(a []int) bool {
	i := len(a) - 2
	for i >= 0 && a[i] >= a[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(a) - 1
	for a[j] <= a[i] {
		j--
	}
	a[i], a[j] = a[j], a[i]
	for l, r := i+1, len(a)-1; l < r; l, r = l+1, r-1 {
		a[l], a[r] = a[r], a[l]
	}
	return true
}

func factorial(n int) int {
	f := 1
	for i := 2; i <= n; i++ {
		f *= i
	}
	return f
}
