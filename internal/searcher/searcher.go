package searcher

import "sync"

// Searcher is a reusable execution context for one query at a time.
// It owns all scratch memory required for search, eliminating heap allocations
// in the steady state.
//
// Searcher is NOT thread-safe. It is intended to be owned by a single goroutine
// during a search operation.
type Searcher struct {
	// Visited tracks visited nodes during graph traversal.
	Visited *VisitedSet

	// Heap keeps the best candidates found so far (worst on top).
	Heap *CandidateHeap

	// Frontier holds candidates still to be expanded (closest first).
	Frontier *FrontierQueue

	// Probes is a reusable heap for selecting the nearest partitions.
	Probes *CandidateHeap

	// Results is a reusable buffer for sorted output.
	Results []Candidate

	// IDs is a reusable buffer for probe lists.
	IDs []uint32

	// Scores is a reusable buffer for batch distance calculations.
	Scores []float32

	// OpsPerformed tracks the number of distance calculations.
	OpsPerformed int
}

var searcherPool = sync.Pool{
	New: func() any {
		return NewSearcher(1024, 128)
	},
}

// NewSearcher creates a new searcher with the given initial capacities.
func NewSearcher(visitedCap, queueCap int) *Searcher {
	return &Searcher{
		Visited:  NewVisitedSet(visitedCap),
		Heap:     NewCandidateHeap(queueCap),
		Frontier: NewFrontierQueue(queueCap),
		Probes:   NewCandidateHeap(queueCap),
		Results:  make([]Candidate, 0, queueCap),
		IDs:      make([]uint32, 0, queueCap),
		Scores:   make([]float32, 0, 256),
	}
}

// Get returns a Searcher from the pool.
func Get() *Searcher {
	s := searcherPool.Get().(*Searcher)
	s.Reset()
	return s
}

// Put returns a Searcher to the pool.
func Put(s *Searcher) {
	searcherPool.Put(s)
}

// Reset clears the searcher state for reuse.
func (s *Searcher) Reset() {
	s.Visited.Reset()
	s.Heap.Reset()
	s.Frontier.Reset()
	s.Probes.Reset()
	s.Results = s.Results[:0]
	s.IDs = s.IDs[:0]
	s.Scores = s.Scores[:0]
	s.OpsPerformed = 0
}
