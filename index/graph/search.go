package graph

import (
	"github.com/hupe1980/vecann/index"
	"github.com/hupe1980/vecann/internal/searcher"
)

// SearchInto runs a best-first traversal from the entry points.
//
// The result set holds the W = max(opts.Width, k) best candidates seen so
// far. Traversal stops when the closest unexpanded candidate is worse than
// the W-th best, or after opts.MaxIterations expansions when that is > 0.
func (g *Graph) SearchInto(s *searcher.Searcher, query []float32, k int, opts index.SearchOptions, dst []index.SearchResult) []index.SearchResult {
	data := g.Data()
	dist := g.Distance()

	width := opts.Width
	if width <= 0 {
		width = DefaultWidth
	}
	width = max(width, k)

	s.Visited.Reset()
	s.Visited.EnsureCapacity(g.Len())
	s.Heap.Reset()
	s.Frontier.Reset()

	for _, e := range g.entries {
		if !s.Visited.Visit(e) {
			continue
		}
		c := searcher.Candidate{ID: e, Distance: dist(query, data.Row(int(e)))}
		s.OpsPerformed++
		s.Heap.PushBounded(c, width)
		s.Frontier.Push(c)
	}

	expansions := 0
	for s.Frontier.Len() > 0 {
		cur, _ := s.Frontier.Pop()
		if s.Heap.Len() >= width && searcher.Worse(cur, s.Heap.Peek()) {
			break
		}
		if opts.MaxIterations > 0 && expansions >= opts.MaxIterations {
			break
		}
		expansions++

		for _, nb := range g.neighbors(cur.ID) {
			if !s.Visited.Visit(nb) {
				continue
			}
			c := searcher.Candidate{ID: nb, Distance: dist(query, data.Row(int(nb)))}
			s.OpsPerformed++
			if s.Heap.PushBounded(c, width) {
				s.Frontier.Push(c)
			}
		}
	}

	s.Results = s.Heap.AppendSorted(s.Results[:0])
	return index.AppendResults(dst, s.Results[:min(k, len(s.Results))])
}
