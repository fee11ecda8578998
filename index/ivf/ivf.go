package ivf

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/index"
	"github.com/hupe1980/vecann/internal/kmeans"
	"github.com/hupe1980/vecann/internal/searcher"
	"github.com/hupe1980/vecann/matrix"
	"github.com/hupe1980/vecann/resource"
)

// DefaultNProbes is the number of lists probed when SearchOptions.NProbes is 0.
const DefaultNProbes = 20

// Compile-time check to ensure IVF satisfies the index interface.
var _ index.Index = (*IVF)(nil)

// Options contains configuration options for the partition index.
type Options struct {
	// NLists is the number of partitions. Must be in [1, n].
	NLists int

	// TrainsetFraction is the share of the dataset sampled for k-means
	// training, in (0, 1]. If the sample is smaller than NLists the full
	// dataset is used.
	TrainsetFraction float64

	// Metric is the distance metric.
	Metric distance.Metric

	// MaxIterations bounds k-means training.
	MaxIterations int

	// Tolerance stops training once no centroid moves more than this.
	Tolerance float32

	// Seed drives sampling and centroid initialization.
	Seed int64

	// Logger receives build diagnostics. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions contains the default configuration options for the partition index.
var DefaultOptions = Options{
	NLists:           100,
	TrainsetFraction: 0.5,
	Metric:           distance.MetricL2,
	MaxIterations:    20,
	Tolerance:        1e-4,
	Seed:             42,
}

// IVF is a built partition index.
type IVF struct {
	*index.Base

	centroids *matrix.Matrix[float32]

	// Lists in CSR layout: list j holds ids[offsets[j]:offsets[j+1]].
	ids     []uint32
	offsets []int

	trainSize  int
	iterations int
	converged  bool
}

// Build creates a partition index over data. No copy of data is made.
func Build(ctx context.Context, rc *resource.Context, data *matrix.Matrix[float32], optFns ...func(o *Options)) (*IVF, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validate(data, opts); err != nil {
		return nil, err
	}

	base, err := index.NewBase(data, opts.Metric)
	if err != nil {
		return nil, err
	}
	log = log.With("index_id", base.ID(), "kind", index.KindIVF)

	n, dim := data.Rows(), data.Cols()
	start := time.Now()

	// Training sample
	trainN := int(math.Ceil(opts.TrainsetFraction * float64(n)))
	if trainN < opts.NLists {
		trainN = n
	}
	trainN = min(trainN, n)

	train := data
	if trainN < n {
		sample, release, err := resource.Alloc[float32](rc, trainN, dim)
		if err != nil {
			return nil, fmt.Errorf("ivf: training sample: %w", err)
		}
		defer release()

		rng := rand.New(rand.NewSource(opts.Seed))
		picked := rng.Perm(n)[:trainN]
		slices.Sort(picked)
		for i, id := range picked {
			copy(sample.Row(i), data.Row(id))
		}
		train = sample
	}
	log.Debug("training sample ready", "train_size", trainN)

	km, err := kmeans.TrainKMeans(ctx, rc, train, opts.NLists, opts.Metric, kmeans.Options{
		MaxIterations: opts.MaxIterations,
		Tolerance:     opts.Tolerance,
		Seed:          opts.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("ivf: train: %w", err)
	}
	log.Debug("k-means trained", "iterations", km.Iterations, "converged", km.Converged, "elapsed", time.Since(start))

	// Index structures are charged for the lifetime of the index.
	indexBytes := km.Centroids.SizeBytes() + int64(n)*4 + int64(opts.NLists+1)*8
	releaseIndex, err := resource.Reserve(rc, indexBytes)
	if err != nil {
		return nil, fmt.Errorf("ivf: index structures: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			releaseIndex()
		}
	}()

	x := &IVF{
		Base:       base,
		centroids:  km.Centroids,
		trainSize:  trainN,
		iterations: km.Iterations,
		converged:  km.Converged,
	}

	if err := x.populate(ctx, rc); err != nil {
		return nil, err
	}
	if err := x.verifyCoverage(); err != nil {
		return nil, err
	}

	ok = true
	x.Hold(indexBytes, releaseIndex)

	log.Debug("lists populated", "n_lists", opts.NLists, "elapsed", time.Since(start))
	return x, nil
}

func validate(data *matrix.Matrix[float32], opts Options) error {
	if err := index.ValidateDataset(data); err != nil {
		return err
	}
	n := data.Rows()
	if opts.NLists <= 0 || opts.NLists > n {
		return &index.ErrInvalidParameter{Name: "n_lists", Value: opts.NLists, Reason: fmt.Sprintf("must be in [1, %d]", n)}
	}
	if !(opts.TrainsetFraction > 0 && opts.TrainsetFraction <= 1) {
		return &index.ErrInvalidParameter{Name: "trainset_fraction", Value: opts.TrainsetFraction, Reason: "must be in (0, 1]"}
	}
	if opts.MaxIterations <= 0 {
		return &index.ErrInvalidParameter{Name: "max_iterations", Value: opts.MaxIterations, Reason: "must be > 0"}
	}
	return nil
}

// populate assigns every vector to its nearest centroid and lays the lists out.
func (x *IVF) populate(ctx context.Context, rc *resource.Context) error {
	data := x.Data()
	n, nlists := data.Rows(), x.centroids.Rows()
	dist := x.Distance()

	release, err := resource.Reserve(rc, int64(n)*8)
	if err != nil {
		return fmt.Errorf("ivf: assignment: %w", err)
	}
	defer release()

	assign := make([]int32, n)
	dists := make([]float32, n)
	err = rc.Parallel(ctx, n, func(_ context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			best, d := kmeans.AssignPartition(data.Row(i), x.centroids, dist)
			assign[i] = int32(best)
			dists[i] = d
		}
		return nil
	})
	if err != nil {
		return err
	}

	counts := make([]int, nlists)
	for _, a := range assign {
		counts[a]++
	}

	// Re-seed empty lists with the farthest member of a list that can spare one.
	for j, cnt := range counts {
		if cnt > 0 {
			continue
		}
		far := -1
		farDist := float32(-1)
		for i, d := range dists {
			if counts[assign[i]] > 1 && d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			return fmt.Errorf("ivf: %w: no donor for empty list %d", index.ErrCoverage, j)
		}
		counts[assign[far]]--
		counts[j] = 1
		assign[far] = int32(j)
		dists[far] = 0
		copy(x.centroids.Row(j), data.Row(far))
	}

	x.offsets = make([]int, nlists+1)
	for j, cnt := range counts {
		x.offsets[j+1] = x.offsets[j] + cnt
	}

	x.ids = make([]uint32, n)
	fill := slices.Clone(x.offsets[:nlists])
	for i, a := range assign {
		x.ids[fill[a]] = uint32(i)
		fill[a]++
	}
	return nil
}

// verifyCoverage checks that every id in [0, n) is in exactly one list.
func (x *IVF) verifyCoverage() error {
	seen := roaring.New()
	for j := 0; j < x.NLists(); j++ {
		for _, id := range x.list(j) {
			if !seen.CheckedAdd(id) {
				return fmt.Errorf("ivf: %w: id %d in more than one list", index.ErrCoverage, id)
			}
		}
	}

	n := uint64(x.Len())
	if seen.GetCardinality() != n || (n > 0 && uint64(seen.Maximum()) != n-1) {
		return fmt.Errorf("ivf: %w: %d of %d ids assigned", index.ErrCoverage, seen.GetCardinality(), n)
	}
	return nil
}

// Kind returns index.KindIVF.
func (*IVF) Kind() index.Kind { return index.KindIVF }

// NLists returns the number of partitions.
func (x *IVF) NLists() int { return x.centroids.Rows() }

// Centroid returns a copy of centroid i.
func (x *IVF) Centroid(i int) []float32 {
	return slices.Clone(x.centroids.Row(i))
}

// List returns a copy of the ids in partition i, in ascending order.
func (x *IVF) List(i int) []uint32 {
	return slices.Clone(x.list(i))
}

func (x *IVF) list(i int) []uint32 {
	return x.ids[x.offsets[i]:x.offsets[i+1]]
}

// clampProbes maps a requested probe count to [1, NLists]; 0 selects the default.
func (x *IVF) clampProbes(n int) int {
	if n == 0 {
		n = DefaultNProbes
	}
	return max(1, min(n, x.NLists()))
}

// SearchInto scans the opts.NProbes lists nearest to query.
func (x *IVF) SearchInto(s *searcher.Searcher, query []float32, k int, opts index.SearchOptions, dst []index.SearchResult) []index.SearchResult {
	data := x.Data()
	dist := x.Distance()

	s.IDs = kmeans.FindClosestCentroids(s.IDs[:0], s.Probes, query, x.centroids, x.clampProbes(opts.NProbes), dist)
	s.OpsPerformed += x.NLists()

	s.Heap.Reset()
	for _, list := range s.IDs {
		for _, id := range x.list(int(list)) {
			s.Heap.PushBounded(searcher.Candidate{ID: id, Distance: dist(query, data.Row(int(id)))}, k)
		}
		s.OpsPerformed += x.offsets[list+1] - x.offsets[list]
	}

	s.Results = s.Heap.AppendSorted(s.Results[:0])
	return index.AppendResults(dst, s.Results)
}

// Stats returns statistics about the index.
func (x *IVF) Stats() index.Stats {
	minSize, maxSize := math.MaxInt, 0
	for j := 0; j < x.NLists(); j++ {
		size := x.offsets[j+1] - x.offsets[j]
		minSize = min(minSize, size)
		maxSize = max(maxSize, size)
	}

	return index.Stats{
		ID:          x.ID(),
		Kind:        index.KindIVF,
		Len:         x.Len(),
		Dim:         x.Dim(),
		Metric:      x.Metric(),
		MemoryBytes: x.MemoryBytes(),
		Fields: []index.Field{
			{Name: "n_lists", Value: x.NLists()},
			{Name: "list_min", Value: minSize},
			{Name: "list_max", Value: maxSize},
			{Name: "list_mean", Value: float64(x.Len()) / float64(x.NLists())},
			{Name: "train_size", Value: x.trainSize},
			{Name: "kmeans_iterations", Value: x.iterations},
			{Name: "kmeans_converged", Value: x.converged},
		},
	}
}
