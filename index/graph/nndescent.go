package graph

import (
	"context"
	"math/rand"
	"slices"
	"sync/atomic"

	"github.com/hupe1980/vecann/internal/searcher"
	"github.com/hupe1980/vecann/resource"
)

// nnDescent builds an approximate kNN graph by iterative neighbour-of-neighbour
// refinement. Each iteration reads the previous graph and writes a fresh one,
// so nodes are refined in parallel without locks.
func (b *builder) nnDescent(ctx context.Context, kd int) (*knnGraph, func(), error) {
	n := b.data.Rows()

	cur, releaseCur, err := newKNNGraph(b.rc, n, kd)
	if err != nil {
		return nil, nil, err
	}
	next, releaseNext, err := newKNNGraph(b.rc, n, kd)
	if err != nil {
		releaseCur()
		return nil, nil, err
	}
	defer func() { releaseNext() }() // buffers swap roles every iteration

	// isNew marks neighbour slots that entered a row in the last iteration.
	releaseFlags, err := resource.Reserve(b.rc, 2*int64(n)*int64(kd))
	if err != nil {
		releaseCur()
		return nil, nil, err
	}
	defer releaseFlags()
	curNew := make([]bool, n*kd)
	nextNew := make([]bool, n*kd)

	if err := b.randomKNN(ctx, cur, kd); err != nil {
		releaseCur()
		return nil, nil, err
	}
	for i := range curNew {
		curNew[i] = true
	}

	threshold := int64(float64(b.opts.NNDescentDelta) * float64(n) * float64(kd))

	for iter := 0; iter < b.opts.NNDescentIterations; iter++ {
		if err := ctx.Err(); err != nil {
			releaseCur()
			return nil, nil, err
		}

		rev := reverseNew(cur, curNew, kd)

		var updates atomic.Int64
		err := b.rc.Parallel(ctx, n, func(_ context.Context, lo, hi int) error {
			s := searcher.Get()
			defer searcher.Put(s)
			s.Visited.EnsureCapacity(n)

			var local int64
			for i := lo; i < hi; i++ {
				local += b.refineRow(s, i, kd, cur, curNew, rev, next, nextNew)
			}
			updates.Add(local)
			return nil
		})
		if err != nil {
			releaseCur()
			return nil, nil, err
		}

		cur, next = next, cur
		curNew, nextNew = nextNew, curNew
		releaseCur, releaseNext = releaseNext, releaseCur

		b.log.Debug("nn-descent iteration", "iteration", iter+1, "updates", updates.Load())
		if updates.Load() <= threshold {
			break
		}
	}

	return cur, releaseCur, nil
}

// randomKNN seeds every row with kd distinct random neighbours.
func (b *builder) randomKNN(ctx context.Context, knn *knnGraph, kd int) error {
	n := b.data.Rows()
	rng := rand.New(rand.NewSource(b.opts.Seed))

	for i := 0; i < n; i++ {
		row := knn.ids.Row(i)
		for j := 0; j < kd; {
			c := uint32(rng.Intn(n))
			if c == uint32(i) || slices.Contains(row[:j], c) {
				continue
			}
			row[j] = c
			j++
		}
		knn.counts[i] = int32(kd)
	}

	return b.rc.Parallel(ctx, n, func(_ context.Context, lo, hi int) error {
		cands := make([]searcher.Candidate, 0, kd)
		for i := lo; i < hi; i++ {
			cands = cands[:0]
			for _, c := range knn.ids.Row(i) {
				cands = append(cands, searcher.Candidate{ID: c, Distance: b.dist(b.data.Row(i), b.data.Row(int(c)))})
			}
			sortCandidates(cands)
			knn.setRow(i, cands)
		}
		return nil
	})
}

// reverseNew lists, for every node, the nodes that gained it as a new neighbour.
func reverseNew(knn *knnGraph, isNew []bool, kd int) [][]uint32 {
	rev := make([][]uint32, len(knn.counts))
	for i := range knn.counts {
		row := knn.ids.Row(i)
		for j := range int(knn.counts[i]) {
			if isNew[i*kd+j] {
				rev[row[j]] = append(rev[row[j]], uint32(i))
			}
		}
	}
	return rev
}

// refineRow writes the improved neighbour row of node i into next and
// returns the number of slots that changed.
func (b *builder) refineRow(s *searcher.Searcher, i, kd int, cur *knnGraph, curNew []bool, rev [][]uint32, next *knnGraph, nextNew []bool) int64 {
	s.Visited.Reset()
	s.Heap.Reset()

	vec := b.data.Row(i)
	s.Visited.Visit(uint32(i))

	prev := cur.ids.Row(i)[:cur.counts[i]]
	prevDists := cur.dists.Row(i)
	for j, id := range prev {
		s.Visited.Visit(id)
		s.Heap.PushBounded(searcher.Candidate{ID: id, Distance: prevDists[j]}, kd)
	}

	explore := func(c uint32) {
		if !s.Visited.Visit(c) {
			return
		}
		s.OpsPerformed++
		s.Heap.PushBounded(searcher.Candidate{ID: c, Distance: b.dist(vec, b.data.Row(int(c)))}, kd)
	}

	// Neighbours of neighbours, where at least one hop is new.
	for j, nb := range prev {
		nbNew := curNew[i*kd+j]
		row := cur.ids.Row(int(nb))[:cur.counts[nb]]
		for l, c := range row {
			if nbNew || curNew[int(nb)*kd+l] {
				explore(c)
			}
		}
	}

	// Nodes that just linked to i, and their neighbours.
	for _, r := range rev[i] {
		explore(r)
		row := cur.ids.Row(int(r))[:cur.counts[r]]
		for _, c := range row {
			explore(c)
		}
	}

	s.Results = s.Heap.AppendSorted(s.Results[:0])
	next.setRow(i, s.Results)

	var changed int64
	for j, c := range s.Results {
		isNew := !slices.Contains(prev, c.ID)
		nextNew[i*kd+j] = isNew
		if isNew {
			changed++
		}
	}
	return changed
}

// sortCandidates orders by ascending (distance, id).
func sortCandidates(cands []searcher.Candidate) {
	slices.SortFunc(cands, func(a, b searcher.Candidate) int {
		switch {
		case searcher.Better(a, b):
			return -1
		case searcher.Better(b, a):
			return 1
		}
		return 0
	})
}
