package kmeans

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync/atomic"

	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/internal/searcher"
	"github.com/hupe1980/vecann/matrix"
	"github.com/hupe1980/vecann/resource"
)

// ErrTooFewVectors is returned when there are fewer vectors than clusters.
var ErrTooFewVectors = errors.New("kmeans: fewer vectors than clusters")

// Options configures training.
type Options struct {
	// MaxIterations bounds the number of Lloyd iterations.
	MaxIterations int
	// Tolerance stops training once no centroid moves more than this
	// (squared L2) between iterations.
	Tolerance float32
	// Seed drives the initial centroid sample.
	Seed int64
}

// DefaultOptions returns the default training options.
func DefaultOptions() Options {
	return Options{
		MaxIterations: 20,
		Tolerance:     1e-4,
		Seed:          42,
	}
}

// Result holds the trained centroids.
type Result struct {
	// Centroids is a k x dim matrix.
	Centroids *matrix.Matrix[float32]
	// Assignments holds the cluster of each training vector as of the last
	// assignment step.
	Assignments []int32
	// Iterations is the number of assignment steps performed.
	Iterations int
	// Converged is false when training stopped on the iteration budget.
	Converged bool
}

// TrainKMeans trains k centroids from the rows of vectors using Lloyd's algorithm.
func TrainKMeans(ctx context.Context, rc *resource.Context, vectors *matrix.Matrix[float32], k int, metric distance.Metric, opts Options) (*Result, error) {
	n, dim := vectors.Rows(), vectors.Cols()
	if k <= 0 || n < k {
		return nil, fmt.Errorf("%w: %d vectors, %d clusters", ErrTooFewVectors, n, k)
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 1
	}

	distFunc, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}

	// Working set: assignments, per-point distance, sums and counts.
	release, err := resource.Reserve(rc, int64(n)*8+int64(k)*int64(dim)*8+int64(k)*8)
	if err != nil {
		return nil, err
	}
	defer release()

	centroids, err := matrix.New[float32](k, dim)
	if err != nil {
		return nil, err
	}

	// Initialize centroids randomly from data points
	rng := rand.New(rand.NewSource(opts.Seed))
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		copy(centroids.Row(i), vectors.Row(perm[i]))
	}

	assignments := make([]int32, n)
	for i := range assignments {
		assignments[i] = -1
	}
	dists := make([]float32, n)
	counts := make([]int, k)
	sums := make([]float64, k*dim)
	next := make([]float32, dim)

	res := &Result{Centroids: centroids, Assignments: assignments}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Assignment step
		var changed atomic.Int64
		err := rc.Parallel(ctx, n, func(_ context.Context, lo, hi int) error {
			var local int64
			for i := lo; i < hi; i++ {
				best, d := AssignPartition(vectors.Row(i), centroids, distFunc)
				dists[i] = d
				if assignments[i] != int32(best) {
					assignments[i] = int32(best)
					local++
				}
			}
			changed.Add(local)
			return nil
		})
		if err != nil {
			return nil, err
		}
		res.Iterations = iter + 1

		if changed.Load() == 0 {
			res.Converged = true
			break
		}

		// Update step
		clear(sums)
		clear(counts)
		for i := 0; i < n; i++ {
			c := int(assignments[i])
			row := sums[c*dim : (c+1)*dim]
			for d, v := range vectors.Row(i) {
				row[d] += float64(v)
			}
			counts[c]++
		}

		reseedEmpty(vectors, assignments, dists, counts, sums)

		var maxShift float32
		for j := 0; j < k; j++ {
			scale := 1.0 / float64(counts[j])
			for d := 0; d < dim; d++ {
				next[d] = float32(sums[j*dim+d] * scale)
			}
			shift := distance.SquaredL2(next, centroids.Row(j))
			maxShift = max(maxShift, shift)
			copy(centroids.Row(j), next)
		}

		if maxShift <= opts.Tolerance {
			res.Converged = true
			break
		}
	}

	return res, nil
}

// reseedEmpty moves, for every empty cluster, the point farthest from its
// centroid into it. Only clusters holding more than one point give one up.
func reseedEmpty(vectors *matrix.Matrix[float32], assignments []int32, dists []float32, counts []int, sums []float64) {
	dim := vectors.Cols()
	for j, cnt := range counts {
		if cnt > 0 {
			continue
		}

		far := -1
		farDist := float32(-1)
		for i, d := range dists {
			if counts[assignments[i]] > 1 && d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			continue // unreachable while n >= k
		}

		old := int(assignments[far])
		vec := vectors.Row(far)
		for d, v := range vec {
			sums[old*dim+d] -= float64(v)
			sums[j*dim+d] = float64(v)
		}
		counts[old]--
		counts[j] = 1
		assignments[far] = int32(j)
		dists[far] = 0
	}
}

// AssignPartition finds the closest centroid for a vector.
// Ties go to the lower centroid index.
func AssignPartition(vec []float32, centroids *matrix.Matrix[float32], distFunc distance.Func) (int, float32) {
	best := -1
	minDist := float32(math.Inf(1))

	for j := 0; j < centroids.Rows(); j++ {
		d := distFunc(vec, centroids.Row(j))
		if d < minDist || best < 0 {
			minDist = d
			best = j
		}
	}

	return best, minDist
}

// FindClosestCentroids appends the indices of the n closest centroids to the
// query, nearest first with ties by index, to dst. h is scratch space.
func FindClosestCentroids(dst []uint32, h *searcher.CandidateHeap, query []float32, centroids *matrix.Matrix[float32], n int, distFunc distance.Func) []uint32 {
	n = min(n, centroids.Rows())

	h.Reset()
	for j := 0; j < centroids.Rows(); j++ {
		h.PushBounded(searcher.Candidate{ID: uint32(j), Distance: distFunc(query, centroids.Row(j))}, n)
	}

	start := len(dst)
	dst = slices.Grow(dst, h.Len())[:start+h.Len()]
	for i := len(dst) - 1; i >= start; i-- {
		dst[i] = h.Pop().ID
	}
	return dst
}
