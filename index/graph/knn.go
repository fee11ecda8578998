package graph

import (
	"context"
	"fmt"
	"math"

	"github.com/hupe1980/vecann/index"
	"github.com/hupe1980/vecann/index/flat"
	"github.com/hupe1980/vecann/index/ivf"
	"github.com/hupe1980/vecann/internal/searcher"
	"github.com/hupe1980/vecann/matrix"
	"github.com/hupe1980/vecann/resource"
)

// knnGraph is the initial neighbour graph. Row i holds counts[i] neighbours
// of node i sorted by ascending (distance, id).
type knnGraph struct {
	ids    *matrix.Matrix[uint32]
	dists  *matrix.Matrix[float32]
	counts []int32
}

// candidates appends the neighbours of node i to dst.
func (k *knnGraph) candidates(i int, dst []searcher.Candidate) []searcher.Candidate {
	ids, dists := k.ids.Row(i), k.dists.Row(i)
	for j := range int(k.counts[i]) {
		dst = append(dst, searcher.Candidate{ID: ids[j], Distance: dists[j]})
	}
	return dst
}

// setRow stores sorted candidates as row i.
func (k *knnGraph) setRow(i int, cands []searcher.Candidate) {
	ids, dists := k.ids.Row(i), k.dists.Row(i)
	n := min(len(cands), len(ids))
	for j := range n {
		ids[j] = cands[j].ID
		dists[j] = cands[j].Distance
	}
	k.counts[i] = int32(n)
}

// newKNNGraph allocates an accounted n x kd neighbour graph.
func newKNNGraph(rc *resource.Context, n, kd int) (*knnGraph, func(), error) {
	ids, releaseIDs, err := resource.Alloc[uint32](rc, n, kd)
	if err != nil {
		return nil, nil, err
	}
	dists, releaseDists, err := resource.Alloc[float32](rc, n, kd)
	if err != nil {
		releaseIDs()
		return nil, nil, err
	}
	releaseCounts, err := resource.Reserve(rc, int64(n)*4)
	if err != nil {
		releaseIDs()
		releaseDists()
		return nil, nil, err
	}

	release := func() {
		releaseIDs()
		releaseDists()
		releaseCounts()
	}
	return &knnGraph{ids: ids, dists: dists, counts: make([]int32, n)}, release, nil
}

func (b *builder) initialGraph(ctx context.Context, algo BuildAlgo, kd int) (*knnGraph, func(), error) {
	switch algo {
	case BuildBruteForce:
		return b.bruteForceKNN(ctx, kd)
	case BuildNNDescent:
		return b.nnDescent(ctx, kd)
	case BuildPartition:
		return b.partitionKNN(ctx, kd)
	default:
		return nil, nil, fmt.Errorf("unsupported build algorithm %s", algo)
	}
}

// bruteForceKNN computes the exact kd nearest neighbours of every node.
func (b *builder) bruteForceKNN(ctx context.Context, kd int) (*knnGraph, func(), error) {
	exact, err := flat.Build(ctx, b.rc, b.data, func(o *flat.Options) {
		o.Metric = b.opts.Metric
	})
	if err != nil {
		return nil, nil, err
	}

	return b.searchKNN(ctx, kd, func(s *searcher.Searcher, i int, dst []index.SearchResult) []index.SearchResult {
		self := uint32(i)
		return exact.SearchFiltered(s, b.data.Row(i), kd, func(id uint32) bool { return id != self }, dst)
	})
}

// partitionKNN searches every node against a partition index over the dataset.
func (b *builder) partitionKNN(ctx context.Context, kd int) (*knnGraph, func(), error) {
	n := b.data.Rows()
	nlists := max(1, min(n, int(math.Sqrt(float64(n)))))

	part, err := ivf.Build(ctx, b.rc, b.data, func(o *ivf.Options) {
		o.NLists = nlists
		o.Metric = b.opts.Metric
		o.Seed = b.opts.Seed
		o.Logger = b.opts.Logger
	})
	if err != nil {
		return nil, nil, err
	}
	defer part.Close()

	opts := index.SearchOptions{NProbes: b.opts.PartitionProbes}
	return b.searchKNN(ctx, kd, func(s *searcher.Searcher, i int, dst []index.SearchResult) []index.SearchResult {
		res := part.SearchInto(s, b.data.Row(i), kd+1, opts, dst)
		for j, r := range res {
			if r.ID == uint32(i) {
				return append(res[:j], res[j+1:]...)
			}
		}
		return res[:min(len(res), kd)]
	})
}

// searchKNN fills a kNN graph by running search for every node in parallel.
func (b *builder) searchKNN(ctx context.Context, kd int, search func(s *searcher.Searcher, i int, dst []index.SearchResult) []index.SearchResult) (*knnGraph, func(), error) {
	n := b.data.Rows()
	knn, release, err := newKNNGraph(b.rc, n, kd)
	if err != nil {
		return nil, nil, err
	}

	err = b.rc.Parallel(ctx, n, func(_ context.Context, lo, hi int) error {
		s := searcher.Get()
		defer searcher.Put(s)

		res := make([]index.SearchResult, 0, kd+1)
		cands := make([]searcher.Candidate, 0, kd+1)
		for i := lo; i < hi; i++ {
			res = search(s, i, res[:0])
			cands = cands[:0]
			for _, r := range res {
				cands = append(cands, searcher.Candidate{ID: r.ID, Distance: r.Distance})
			}
			knn.setRow(i, cands)
		}
		return nil
	})
	if err != nil {
		release()
		return nil, nil, err
	}
	return knn, release, nil
}
