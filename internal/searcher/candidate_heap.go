package searcher

import "slices"

const heapArity = 4

// CandidateHeap is a 4-ary heap of Candidates with the worst candidate on top.
// It is used for collecting top-k results: once full, a new candidate either
// replaces the top or is dropped.
type CandidateHeap struct {
	Candidates []Candidate
}

// NewCandidateHeap creates a new CandidateHeap.
func NewCandidateHeap(capacity int) *CandidateHeap {
	return &CandidateHeap{
		Candidates: make([]Candidate, 0, capacity),
	}
}

// Reset clears the heap for reuse.
func (h *CandidateHeap) Reset() {
	h.Candidates = h.Candidates[:0]
}

func (h *CandidateHeap) Len() int { return len(h.Candidates) }

func (h *CandidateHeap) Push(x Candidate) {
	h.Candidates = append(h.Candidates, x)
	h.up(h.Len() - 1)
}

// PushBounded keeps the k best candidates seen so far.
// Returns true if x was admitted.
func (h *CandidateHeap) PushBounded(x Candidate, k int) bool {
	if h.Len() < k {
		h.Push(x)
		return true
	}
	if k == 0 || !Better(x, h.Candidates[0]) {
		return false
	}
	h.ReplaceTop(x)
	return true
}

func (h *CandidateHeap) Pop() Candidate {
	n := h.Len() - 1
	h.Candidates[0], h.Candidates[n] = h.Candidates[n], h.Candidates[0]
	h.down(0, n)
	x := h.Candidates[n]
	h.Candidates = h.Candidates[0:n]
	return x
}

// Peek returns the worst element without removing it.
// Panics if the heap is empty - caller should check Len() > 0.
func (h *CandidateHeap) Peek() Candidate {
	return h.Candidates[0]
}

// TryPeek returns the worst element and true, or zero value and false if empty.
func (h *CandidateHeap) TryPeek() (Candidate, bool) {
	if h.Len() == 0 {
		return Candidate{}, false
	}
	return h.Candidates[0], true
}

// ReplaceTop replaces the top element and restores heap invariant.
// Panics if the heap is empty - caller should check Len() > 0.
func (h *CandidateHeap) ReplaceTop(x Candidate) {
	h.Candidates[0] = x
	h.down(0, h.Len())
}

// AppendSorted appends the heap contents to dst in ascending order
// (best first) and empties the heap.
func (h *CandidateHeap) AppendSorted(dst []Candidate) []Candidate {
	start := len(dst)
	dst = slices.Grow(dst, h.Len())[:start+h.Len()]
	for i := len(dst) - 1; i >= start; i-- {
		dst[i] = h.Pop()
	}
	return dst
}

// up moves element at j up the heap.
// 4-ary heap: parent = (j-1)/4 instead of (j-1)/2
func (h *CandidateHeap) up(j int) {
	item := h.Candidates[j]
	for j > 0 {
		i := (j - 1) / heapArity
		if !Worse(item, h.Candidates[i]) {
			break
		}
		h.Candidates[j] = h.Candidates[i]
		j = i
	}
	h.Candidates[j] = item
}

// down moves element at i0 down the heap.
// 4-ary heap: first child = 4*i+1, up to 4 children to compare.
func (h *CandidateHeap) down(i0, n int) {
	i := i0
	item := h.Candidates[i]
	for {
		firstChild := heapArity*i + 1
		if firstChild >= n {
			break
		}

		worst := firstChild
		lastChild := min(firstChild+heapArity, n)
		for c := firstChild + 1; c < lastChild; c++ {
			if Worse(h.Candidates[c], h.Candidates[worst]) {
				worst = c
			}
		}

		if !Worse(h.Candidates[worst], item) {
			break
		}
		h.Candidates[i] = h.Candidates[worst]
		i = worst
	}
	h.Candidates[i] = item
}
