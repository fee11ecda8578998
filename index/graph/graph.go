package graph

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/index"
	"github.com/hupe1980/vecann/matrix"
	"github.com/hupe1980/vecann/resource"
)

// DefaultWidth is the search width used when SearchOptions.Width is 0.
const DefaultWidth = 64

// bruteForceThreshold is the largest dataset BuildAuto builds exactly.
const bruteForceThreshold = 4096

// maxAutoEntryPoints caps the entry point count chosen when EntryPoints is 0.
const maxAutoEntryPoints = 256

// Compile-time check to ensure Graph satisfies the index interface.
var _ index.Index = (*Graph)(nil)

// BuildAlgo selects how the initial kNN graph is computed.
type BuildAlgo int

const (
	// BuildAuto picks BuildBruteForce for small datasets and BuildNNDescent otherwise.
	BuildAuto BuildAlgo = iota
	// BuildBruteForce computes exact neighbours with a linear scan per node.
	BuildBruteForce
	// BuildNNDescent refines a random graph by exploring neighbours of neighbours.
	BuildNNDescent
	// BuildPartition searches every node against a partition index.
	BuildPartition
)

func (a BuildAlgo) String() string {
	switch a {
	case BuildAuto:
		return "auto"
	case BuildBruteForce:
		return "brute_force"
	case BuildNNDescent:
		return "nn_descent"
	case BuildPartition:
		return "partition"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// ParseBuildAlgo parses a build algorithm name (case-insensitive).
func ParseBuildAlgo(s string) (BuildAlgo, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return BuildAuto, nil
	case "brute_force", "bruteforce", "exact":
		return BuildBruteForce, nil
	case "nn_descent", "nndescent":
		return BuildNNDescent, nil
	case "partition", "ivf":
		return BuildPartition, nil
	default:
		return 0, fmt.Errorf("unknown build algorithm %q", s)
	}
}

// Options contains configuration options for the graph index.
type Options struct {
	// GraphDegree is the maximum out-degree of every node. Must be in [1, n-1].
	GraphDegree int

	// IntermediateDegree is the width of the initial kNN graph.
	// 0 selects 2*GraphDegree. Clamped to [GraphDegree, n-1].
	IntermediateDegree int

	// BuildAlgo selects how the initial kNN graph is computed.
	BuildAlgo BuildAlgo

	// Alpha is the pruning factor for edge selection (>= 1.0).
	// Higher Alpha keeps more diverse edges. Typical: 1.0-1.5.
	Alpha float32

	// NNDescentIterations bounds NN-descent refinement.
	NNDescentIterations int

	// NNDescentDelta stops NN-descent once fewer than Delta*n*IntermediateDegree
	// neighbour slots change in an iteration.
	NNDescentDelta float32

	// PartitionProbes is the number of lists probed per node by BuildPartition.
	PartitionProbes int

	// EntryPoints is the number of search entry points: the medoid plus
	// EntryPoints-1 farthest-first picks. 0 selects ceil(sqrt(n)), capped
	// at 256.
	EntryPoints int

	// Metric is the distance metric.
	Metric distance.Metric

	// Seed drives every random choice of the build.
	Seed int64

	// Logger receives build diagnostics. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions contains the default configuration options for the graph index.
var DefaultOptions = Options{
	GraphDegree:         32,
	BuildAlgo:           BuildAuto,
	Alpha:               1.2,
	NNDescentIterations: 20,
	NNDescentDelta:      0.001,
	PartitionProbes:     8,
	Metric:              distance.MetricL2,
	Seed:                42,
}

// Graph is a built proximity-graph index.
type Graph struct {
	*index.Base

	degree  int
	arena   *matrix.Matrix[uint32]
	degrees []int32
	entries []uint32

	algo               BuildAlgo
	intermediateDegree int
	repairedEdges      int
}

// Build creates a graph index over data. No copy of data is made.
func Build(ctx context.Context, rc *resource.Context, data *matrix.Matrix[float32], optFns ...func(o *Options)) (*Graph, error) {
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
	log = log.With("index_id", base.ID(), "kind", index.KindGraph)

	n := data.Rows()
	kd := opts.IntermediateDegree
	if kd <= 0 {
		kd = 2 * opts.GraphDegree
	}
	kd = max(opts.GraphDegree, min(kd, n-1))

	algo := opts.BuildAlgo
	if algo == BuildAuto {
		algo = BuildNNDescent
		if n <= bruteForceThreshold {
			algo = BuildBruteForce
		}
	}

	b := &builder{
		rc:     rc,
		data:   data,
		dist:   base.Distance(),
		opts:   opts,
		log:    log,
		degree: opts.GraphDegree,
	}

	start := time.Now()

	knn, releaseKNN, err := b.initialGraph(ctx, algo, kd)
	if err != nil {
		return nil, fmt.Errorf("graph: %s: %w", algo, err)
	}
	defer releaseKNN()
	log.Debug("initial knn graph built", "algo", algo, "intermediate_degree", kd, "elapsed", time.Since(start))

	arena, releaseArena, err := resource.Alloc[uint32](rc, n, opts.GraphDegree)
	if err != nil {
		return nil, fmt.Errorf("graph: adjacency: %w", err)
	}
	releaseDegrees, err := resource.Reserve(rc, int64(n)*4)
	if err != nil {
		releaseArena()
		return nil, fmt.Errorf("graph: adjacency: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			releaseArena()
			releaseDegrees()
		}
	}()

	g := &Graph{
		Base:               base,
		degree:             opts.GraphDegree,
		arena:              arena,
		degrees:            make([]int32, n),
		algo:               algo,
		intermediateDegree: kd,
	}
	b.g = g

	if err := b.pruneAll(ctx, knn); err != nil {
		return nil, fmt.Errorf("graph: prune: %w", err)
	}
	releaseKNN()
	log.Debug("robust prune done", "elapsed", time.Since(start))

	if err := b.mergeReverse(ctx); err != nil {
		return nil, fmt.Errorf("graph: reverse edges: %w", err)
	}
	log.Debug("reverse edges merged", "elapsed", time.Since(start))

	g.entries, err = b.entryPoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: entry points: %w", err)
	}

	repaired, err := b.repair(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph: repair: %w", err)
	}
	g.repairedEdges = repaired
	log.Debug("graph built", "entry_points", len(g.entries), "repaired_edges", repaired, "elapsed", time.Since(start))

	ok = true
	g.Hold(arena.SizeBytes(), releaseArena)
	g.Hold(int64(n)*4, releaseDegrees)
	return g, nil
}

func validate(data *matrix.Matrix[float32], opts Options) error {
	if err := index.ValidateDataset(data); err != nil {
		return err
	}
	n := data.Rows()
	if opts.GraphDegree <= 0 || opts.GraphDegree >= n {
		return &index.ErrInvalidParameter{Name: "graph_degree", Value: opts.GraphDegree, Reason: fmt.Sprintf("must be in [1, %d]", n-1)}
	}
	if !(opts.Alpha >= 1) {
		return &index.ErrInvalidParameter{Name: "alpha", Value: opts.Alpha, Reason: "must be >= 1"}
	}
	if opts.EntryPoints < 0 {
		return &index.ErrInvalidParameter{Name: "entry_points", Value: opts.EntryPoints, Reason: "must be >= 0"}
	}
	if opts.BuildAlgo < BuildAuto || opts.BuildAlgo > BuildPartition {
		return &index.ErrInvalidParameter{Name: "build_algo", Value: opts.BuildAlgo, Reason: "unknown algorithm"}
	}
	if opts.NNDescentIterations <= 0 {
		return &index.ErrInvalidParameter{Name: "nn_descent_iterations", Value: opts.NNDescentIterations, Reason: "must be > 0"}
	}
	return nil
}

// builder holds the state shared by the build stages.
type builder struct {
	rc     *resource.Context
	data   *matrix.Matrix[float32]
	dist   distance.Func
	opts   Options
	log    *slog.Logger
	degree int
	g      *Graph
}

// entryPoints returns the medoid followed by farthest-first picks: each
// further entry is the node farthest from all entries chosen so far, so
// every well-separated region of the dataset holds an entry point.
func (b *builder) entryPoints(ctx context.Context) ([]uint32, error) {
	n := b.data.Rows()

	count := b.opts.EntryPoints
	if count == 0 {
		count = min(int(math.Ceil(math.Sqrt(float64(n)))), maxAutoEntryPoints)
	}
	count = min(count, n)

	entries := make([]uint32, 1, count)
	entries[0] = b.medoid()
	if count == 1 {
		return entries, nil
	}

	release, err := resource.Reserve(b.rc, int64(n)*5)
	if err != nil {
		return nil, err
	}
	defer release()

	chosen := make([]bool, n)
	chosen[entries[0]] = true

	// nearest[i] is the distance from node i to its closest entry.
	nearest := make([]float32, n)
	for i := range nearest {
		nearest[i] = float32(math.Inf(1))
	}

	for len(entries) < count {
		last := b.data.Row(int(entries[len(entries)-1]))
		err := b.rc.Parallel(ctx, n, func(_ context.Context, lo, hi int) error {
			for i := lo; i < hi; i++ {
				nearest[i] = min(nearest[i], b.dist(last, b.data.Row(i)))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		far, farDist := -1, float32(math.Inf(-1))
		for i, d := range nearest {
			if d > farDist && !chosen[i] {
				far, farDist = i, d
			}
		}
		if far < 0 {
			// Only NaN distances remain.
			break
		}
		chosen[far] = true
		entries = append(entries, uint32(far))
	}
	return entries, nil
}

// medoid returns the node nearest to the dataset mean, ties by id.
func (b *builder) medoid() uint32 {
	n, dim := b.data.Rows(), b.data.Cols()

	mean64 := make([]float64, dim)
	for i := 0; i < n; i++ {
		for j, v := range b.data.Row(i) {
			mean64[j] += float64(v)
		}
	}
	mean := make([]float32, dim)
	for j := range mean {
		mean[j] = float32(mean64[j] / float64(n))
	}

	medoid := uint32(0)
	best := b.dist(mean, b.data.Row(0))
	for i := 1; i < n; i++ {
		if d := b.dist(mean, b.data.Row(i)); d < best {
			best, medoid = d, uint32(i)
		}
	}
	return medoid
}

// Kind returns index.KindGraph.
func (*Graph) Kind() index.Kind { return index.KindGraph }

// Degree returns the maximum out-degree.
func (g *Graph) Degree() int { return g.degree }

// Neighbors returns a copy of the out-neighbours of id.
func (g *Graph) Neighbors(id uint32) []uint32 {
	return slices.Clone(g.neighbors(id))
}

func (g *Graph) neighbors(id uint32) []uint32 {
	return g.arena.Row(int(id))[:g.degrees[id]]
}

// EntryPoints returns a copy of the search entry points. The first is the medoid.
func (g *Graph) EntryPoints() []uint32 {
	return slices.Clone(g.entries)
}

// BuildAlgo returns the algorithm that built the initial kNN graph.
func (g *Graph) BuildAlgo() BuildAlgo { return g.algo }
