package graph

import (
	"context"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/vecann/internal/searcher"
	"github.com/hupe1980/vecann/resource"
)

// robustPrune selects up to r diverse neighbours from cands, which must be
// sorted by ascending (distance, id) and free of the node itself.
//
// A candidate c is dropped when an already selected neighbour s satisfies
// alpha*d(c, s) < d(node, c). Remaining slots are then filled with the
// nearest dropped candidates, so the result has min(r, len(cands)) entries.
func (b *builder) robustPrune(cands []searcher.Candidate, r int, alpha float32, selected, rejected []searcher.Candidate) ([]searcher.Candidate, []searcher.Candidate) {
	selected = selected[:0]
	rejected = rejected[:0]

	for _, c := range cands {
		if len(selected) >= r {
			break
		}

		// Check if c is diverse enough from already selected
		diverse := true
		vc := b.data.Row(int(c.ID))
		for _, s := range selected {
			if alpha*b.dist(vc, b.data.Row(int(s.ID))) < c.Distance {
				diverse = false
				break
			}
		}

		if diverse {
			selected = append(selected, c)
		} else {
			rejected = append(rejected, c)
		}
	}

	for _, c := range rejected {
		if len(selected) >= r {
			break
		}
		selected = append(selected, c)
	}

	return selected, rejected
}

// setNeighbors writes the adjacency row of node i.
func (g *Graph) setNeighbors(i int, cands []searcher.Candidate) {
	row := g.arena.Row(i)
	for j, c := range cands {
		row[j] = c.ID
	}
	g.degrees[i] = int32(len(cands))
}

// pruneAll prunes every kNN row down to the graph degree.
func (b *builder) pruneAll(ctx context.Context, knn *knnGraph) error {
	n := b.data.Rows()
	kd := knn.ids.Cols()

	return b.rc.Parallel(ctx, n, func(_ context.Context, lo, hi int) error {
		cands := make([]searcher.Candidate, 0, kd)
		selected := make([]searcher.Candidate, 0, b.degree)
		rejected := make([]searcher.Candidate, 0, kd)
		for i := lo; i < hi; i++ {
			cands = knn.candidates(i, cands[:0])
			selected, rejected = b.robustPrune(cands, b.degree, b.opts.Alpha, selected, rejected)
			b.g.setNeighbors(i, selected)
		}
		return nil
	})
}

// mergeReverse adds the reverse of every edge and prunes each node's
// forward and reverse candidates back to the graph degree.
func (b *builder) mergeReverse(ctx context.Context) error {
	g := b.g
	n := b.data.Rows()

	// Reverse adjacency in CSR layout, sources in ascending order.
	var edges int64
	for i := 0; i < n; i++ {
		edges += int64(g.degrees[i])
	}
	release, err := resource.Reserve(b.rc, edges*4+int64(n+1)*8)
	if err != nil {
		return err
	}
	defer release()

	offsets := make([]int, n+1)
	for i := 0; i < n; i++ {
		for _, j := range g.neighbors(uint32(i)) {
			offsets[j+1]++
		}
	}
	for i := 0; i < n; i++ {
		offsets[i+1] += offsets[i]
	}
	sources := make([]uint32, edges)
	fill := make([]int, n)
	copy(fill, offsets[:n])
	for i := 0; i < n; i++ {
		for _, j := range g.neighbors(uint32(i)) {
			sources[fill[j]] = uint32(i)
			fill[j]++
		}
	}

	// Each node rewrites only its own row.
	return b.rc.Parallel(ctx, n, func(_ context.Context, lo, hi int) error {
		s := searcher.Get()
		defer searcher.Put(s)
		s.Visited.EnsureCapacity(n)

		var cands, selected, rejected []searcher.Candidate
		for i := lo; i < hi; i++ {
			s.Visited.Reset()
			s.Visited.Visit(uint32(i))
			vec := b.data.Row(i)

			cands = cands[:0]
			add := func(c uint32) {
				if s.Visited.Visit(c) {
					cands = append(cands, searcher.Candidate{ID: c, Distance: b.dist(vec, b.data.Row(int(c)))})
				}
			}
			for _, c := range g.neighbors(uint32(i)) {
				add(c)
			}
			for _, c := range sources[offsets[i]:offsets[i+1]] {
				add(c)
			}

			sortCandidates(cands)
			selected, rejected = b.robustPrune(cands, b.degree, b.opts.Alpha, selected, rejected)
			g.setNeighbors(i, selected)
		}
		return nil
	})
}

// repair links every node unreachable from the entry points to its nearest
// reachable node and returns the number of edges written.
//
// When the reachable node is already at full degree, its farthest edge whose
// target has another in-edge is replaced. Reachability is recomputed after
// each pass; the loop stops when every node is reachable or a pass makes no
// progress.
func (b *builder) repair(ctx context.Context) (int, error) {
	g := b.g
	n := b.data.Rows()

	indeg := make([]int32, n)
	for i := 0; i < n; i++ {
		for _, j := range g.neighbors(uint32(i)) {
			indeg[j]++
		}
	}

	written := 0
	for pass := 0; pass < 4; pass++ {
		reached := g.reachable()
		if reached.Count() == uint(n) {
			break
		}

		progress := false
		for u, ok := reached.NextClear(0); ok && u < uint(n); u, ok = reached.NextClear(u + 1) {
			if err := ctx.Err(); err != nil {
				return written, err
			}
			if reached.Test(u) {
				continue
			}

			v, found := b.nearestReached(reached, uint32(u))
			if !found {
				break
			}
			if g.link(v, uint32(u), indeg) {
				written++
				progress = true
			}
			g.markFrom(reached, uint32(u))
		}

		if !progress {
			break
		}
	}
	return written, nil
}

// nearestReached scans the reached set for the node nearest to u, ties by id.
func (b *builder) nearestReached(reached *bitset.BitSet, u uint32) (uint32, bool) {
	vec := b.data.Row(int(u))
	best := searcher.Candidate{}
	found := false
	for v, ok := reached.NextSet(0); ok; v, ok = reached.NextSet(v + 1) {
		c := searcher.Candidate{ID: uint32(v), Distance: b.dist(vec, b.data.Row(int(v)))}
		if !found || searcher.Better(c, best) {
			best, found = c, true
		}
	}
	return best.ID, found
}

// link adds the edge v->u, evicting v's last evictable edge when v is full.
func (g *Graph) link(v, u uint32, indeg []int32) bool {
	row := g.arena.Row(int(v))
	deg := int(g.degrees[v])
	if deg < g.degree {
		row[deg] = u
		g.degrees[v]++
		indeg[u]++
		return true
	}

	for j := deg - 1; j >= 0; j-- {
		if indeg[row[j]] > 1 {
			indeg[row[j]]--
			row[j] = u
			indeg[u]++
			return true
		}
	}
	return false
}

// reachable returns the nodes reachable from the entry points.
func (g *Graph) reachable() *bitset.BitSet {
	reached := bitset.New(uint(g.Len()))
	for _, e := range g.entries {
		g.markFrom(reached, e)
	}
	return reached
}

// markFrom marks every node reachable from start (breadth-first).
func (g *Graph) markFrom(reached *bitset.BitSet, start uint32) {
	if reached.Test(uint(start)) {
		return
	}
	reached.Set(uint(start))
	queue := []uint32{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range g.neighbors(cur) {
			if !reached.Test(uint(nb)) {
				reached.Set(uint(nb))
				queue = append(queue, nb)
			}
		}
	}
}
