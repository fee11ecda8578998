package graph

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/index"
	"github.com/hupe1980/vecann/internal/searcher"
	"github.com/hupe1980/vecann/matrix"
	"github.com/hupe1980/vecann/resource"
	"github.com/hupe1980/vecann/testutil"
)

func buildGraph(t *testing.T, data *matrix.Matrix[float32], optFns ...func(o *Options)) *Graph {
	t.Helper()
	g, err := Build(context.Background(), resource.New(resource.Config{Workers: 4}), data, optFns...)
	require.NoError(t, err)
	return g
}

// perturbed returns copies of every step-th row of data with Gaussian noise.
func perturbed(data *matrix.Matrix[float32], step int, noise float64, seed int64) *matrix.Matrix[float32] {
	rng := rand.New(rand.NewSource(seed))
	rows := make([][]float32, 0, data.Rows()/step+1)
	for i := 0; i < data.Rows(); i += step {
		row := make([]float32, data.Cols())
		for j, v := range data.Row(i) {
			row[j] = v + float32(rng.NormFloat64()*noise)
		}
		rows = append(rows, row)
	}
	return testutil.Matrix(rows)
}

func assertWellFormed(t *testing.T, g *Graph) {
	t.Helper()
	n := uint32(g.Len())
	for i := uint32(0); i < n; i++ {
		nbs := g.Neighbors(i)
		require.LessOrEqual(t, len(nbs), g.Degree(), "node %d exceeds degree", i)
		require.NotEmpty(t, nbs, "node %d has no edges", i)
		seen := make(map[uint32]struct{}, len(nbs))
		for _, nb := range nbs {
			require.NotEqual(t, i, nb, "self-loop at %d", i)
			require.Less(t, nb, n)
			_, dup := seen[nb]
			require.False(t, dup, "duplicate edge %d->%d", i, nb)
			seen[nb] = struct{}{}
		}
	}
}

func statField(st index.Stats, name string) any {
	for _, f := range st.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

func TestBuild_Algorithms(t *testing.T) {
	data := testutil.NewRNG(1).ClusteredMatrix(600, 16, 6, 0.15)

	for _, algo := range []BuildAlgo{BuildBruteForce, BuildNNDescent, BuildPartition} {
		t.Run(algo.String(), func(t *testing.T) {
			g := buildGraph(t, data, func(o *Options) {
				o.GraphDegree = 12
				o.BuildAlgo = algo
			})

			assert.Equal(t, index.KindGraph, g.Kind())
			assert.Equal(t, algo, g.BuildAlgo())
			assert.Equal(t, 12, g.Degree())
			assertWellFormed(t, g)

			st := g.Stats()
			assert.Equal(t, 600, statField(st, "reachable"))
			assert.Equal(t, 24, statField(st, "intermediate_degree"))

			entries := g.EntryPoints()
			assert.Len(t, entries, 25)
			assert.Equal(t, len(entries), statField(st, "entry_points"))
		})
	}
}

func TestBuild_AutoPicksBruteForceForSmallData(t *testing.T) {
	data := testutil.NewRNG(2).UniformMatrix(200, 8)
	g := buildGraph(t, data, func(o *Options) { o.GraphDegree = 8 })
	assert.Equal(t, BuildBruteForce, g.BuildAlgo())
}

func TestBuild_Validation(t *testing.T) {
	ctx := context.Background()
	data := testutil.NewRNG(3).UniformMatrix(10, 4)

	_, err := Build(ctx, nil, nil)
	assert.ErrorIs(t, err, index.ErrEmptyDataset)

	var paramErr *index.ErrInvalidParameter

	_, err = Build(ctx, nil, data, func(o *Options) { o.GraphDegree = 10 })
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "graph_degree", paramErr.Name)

	_, err = Build(ctx, nil, data, func(o *Options) { o.GraphDegree = 0 })
	assert.ErrorAs(t, err, &paramErr)

	_, err = Build(ctx, nil, data, func(o *Options) {
		o.GraphDegree = 4
		o.Alpha = 0.5
	})
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "alpha", paramErr.Name)

	_, err = Build(ctx, nil, data, func(o *Options) {
		o.GraphDegree = 4
		o.BuildAlgo = BuildAlgo(42)
	})
	assert.ErrorAs(t, err, &paramErr)
}

func TestBuild_EntryPoints(t *testing.T) {
	data := testutil.NewRNG(13).ClusteredMatrix(400, 8, 4, 0.05)

	one := buildGraph(t, data, func(o *Options) {
		o.GraphDegree = 8
		o.EntryPoints = 1
	})
	require.Len(t, one.EntryPoints(), 1)

	g := buildGraph(t, data, func(o *Options) {
		o.GraphDegree = 8
		o.EntryPoints = 9
	})
	entries := g.EntryPoints()
	assert.Equal(t, one.EntryPoints()[0], entries[0], "medoid comes first")
	assert.Len(t, entries, 9)

	// Every cluster holds an entry point. Ids are assigned to clusters round-robin.
	covered := make(map[uint32]bool)
	for _, e := range entries {
		covered[e%4] = true
	}
	assert.Len(t, covered, 4)

	var paramErr *index.ErrInvalidParameter
	_, err := Build(context.Background(), nil, data, func(o *Options) {
		o.GraphDegree = 8
		o.EntryPoints = -1
	})
	assert.ErrorAs(t, err, &paramErr)
}

func TestBuild_MaxDegree(t *testing.T) {
	// graph_degree = n-1 is the largest valid degree: a complete graph.
	data := testutil.NewRNG(4).UniformMatrix(8, 3)
	g := buildGraph(t, data, func(o *Options) { o.GraphDegree = 7 })
	assertWellFormed(t, g)
	for i := uint32(0); i < 8; i++ {
		assert.Len(t, g.Neighbors(i), 7)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	data := testutil.NewRNG(5).UniformMatrix(300, 8)
	for _, algo := range []BuildAlgo{BuildBruteForce, BuildNNDescent} {
		a := buildGraph(t, data, func(o *Options) {
			o.GraphDegree = 8
			o.BuildAlgo = algo
		})
		b := buildGraph(t, data, func(o *Options) {
			o.GraphDegree = 8
			o.BuildAlgo = algo
		})
		assert.Equal(t, a.EntryPoints(), b.EntryPoints())
		for i := uint32(0); i < 300; i++ {
			require.Equal(t, a.Neighbors(i), b.Neighbors(i), "%s node %d", algo, i)
		}
	}
}

func TestBuild_ResourceExhausted(t *testing.T) {
	data := testutil.NewRNG(6).UniformMatrix(500, 8)
	rc := resource.New(resource.Config{MemoryLimitBytes: 4096})

	g, err := Build(context.Background(), rc, data, func(o *Options) { o.GraphDegree = 8 })
	assert.ErrorIs(t, err, resource.ErrResourceExhausted)
	assert.Nil(t, g)
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestBuild_Canceled(t *testing.T) {
	data := testutil.NewRNG(7).UniformMatrix(100, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := Build(ctx, nil, data, func(o *Options) { o.GraphDegree = 4 })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, g)
}

func TestBuild_MemoryHeldUntilClose(t *testing.T) {
	data := testutil.NewRNG(8).UniformMatrix(300, 8)
	rc := resource.New(resource.Config{})

	g, err := Build(context.Background(), rc, data, func(o *Options) { o.GraphDegree = 8 })
	require.NoError(t, err)
	assert.Equal(t, int64(300*8*4+300*4), rc.MemoryUsage())
	assert.Equal(t, rc.MemoryUsage(), g.Stats().MemoryBytes)

	require.NoError(t, g.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	data := testutil.NewRNG(9).ClusteredMatrix(2000, 32, 20, 0.1)
	g := buildGraph(t, data, func(o *Options) { o.GraphDegree = 24 })

	queries := perturbed(data, 40, 0.02, 10)
	truth := testutil.GroundTruth(data, queries, 10, distance.SquaredL2)

	search := func(width int) [][]index.SearchResult {
		out := make([][]index.SearchResult, queries.Rows())
		for i := range out {
			res, err := index.Search(ctx, g, queries.Row(i), 10, index.SearchOptions{Width: width})
			require.NoError(t, err)
			out[i] = res
		}
		return out
	}

	t.Run("ResultSize", func(t *testing.T) {
		for _, k := range []int{1, 10, 100} {
			res, err := index.Search(ctx, g, data.Row(3), k, index.SearchOptions{})
			require.NoError(t, err)
			assert.Len(t, res, k)
			assert.True(t, testutil.IsSorted(res))
		}
	})

	t.Run("SelfQuery", func(t *testing.T) {
		hits := 0
		for i := 0; i < data.Rows(); i++ {
			res, err := index.Search(ctx, g, data.Row(i), 1, index.SearchOptions{})
			require.NoError(t, err)
			if res[0].ID == uint32(i) && res[0].Distance == 0 {
				hits++
			}
		}
		assert.GreaterOrEqual(t, float64(hits)/float64(data.Rows()), 0.99)
	})

	t.Run("Recall", func(t *testing.T) {
		recall := testutil.MeanRecall(truth, search(DefaultWidth))
		assert.GreaterOrEqual(t, recall, 0.9)
	})

	t.Run("MonotonicRecall", func(t *testing.T) {
		prev := 0.0
		for _, w := range []int{10, 16, 32, 64, 128, 256} {
			r := testutil.MeanRecall(truth, search(w))
			assert.GreaterOrEqual(t, r, prev-0.01, "width %d", w)
			prev = max(prev, r)
		}
		assert.GreaterOrEqual(t, prev, 0.95)
	})

	t.Run("MaxIterations", func(t *testing.T) {
		res, err := index.Search(ctx, g, queries.Row(0), 10, index.SearchOptions{MaxIterations: 1})
		require.NoError(t, err)
		assert.Len(t, res, 10)
		assert.True(t, testutil.IsSorted(res))
	})

	t.Run("Deterministic", func(t *testing.T) {
		a, err := index.Search(ctx, g, queries.Row(1), 10, index.SearchOptions{Width: 32})
		require.NoError(t, err)
		b, err := index.Search(ctx, g, queries.Row(1), 10, index.SearchOptions{Width: 32})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestSearch_KLargerThanN(t *testing.T) {
	data := testutil.NewRNG(11).UniformMatrix(20, 4)
	g := buildGraph(t, data, func(o *Options) { o.GraphDegree = 4 })

	res, err := index.Search(context.Background(), g, data.Row(0), 50, index.SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, res, 20)
	assert.Equal(t, testutil.BruteForceSearch(data, data.Row(0), 50, distance.SquaredL2), res)
}

func TestSearch_TieOrder(t *testing.T) {
	data := testutil.Matrix([][]float32{{1, 0}, {0, 1}, {-1, 0}, {0, -1}, {2, 2}, {3, 3}})
	g := buildGraph(t, data, func(o *Options) { o.GraphDegree = 2 })

	res, err := index.Search(context.Background(), g, []float32{0, 0}, 4, index.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, res, 4)
	for i, r := range res {
		assert.Equal(t, uint32(i), r.ID)
		assert.Equal(t, float32(1), r.Distance)
	}
}

func TestBuild_CosineMetric(t *testing.T) {
	data := testutil.Matrix(testutil.NewRNG(12).UnitVectors(300, 8))
	g := buildGraph(t, data, func(o *Options) {
		o.GraphDegree = 8
		o.Metric = distance.MetricCosine
	})
	assertWellFormed(t, g)

	res, err := index.Search(context.Background(), g, data.Row(7), 1, index.SearchOptions{Width: 128})
	require.NoError(t, err)
	assert.Equal(t, uint32(7), res[0].ID)
}

func TestParseBuildAlgo(t *testing.T) {
	for in, want := range map[string]BuildAlgo{
		"":            BuildAuto,
		"auto":        BuildAuto,
		"brute_force": BuildBruteForce,
		"NN_DESCENT":  BuildNNDescent,
		"ivf":         BuildPartition,
	} {
		got, err := ParseBuildAlgo(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseBuildAlgo("cagra")
	assert.Error(t, err)
	assert.Equal(t, "unknown(9)", BuildAlgo(9).String())
}

func TestSearch_ReusedSearcher(t *testing.T) {
	ctx := context.Background()
	data := testutil.NewRNG(15).UniformMatrix(500, 8)
	g := buildGraph(t, data, func(o *Options) { o.GraphDegree = 8 })

	s := searcher.Get()
	defer searcher.Put(s)

	for i := 0; i < 20; i++ {
		got := g.SearchInto(s, data.Row(i), 5, index.SearchOptions{}, nil)
		want, err := index.Search(ctx, g, data.Row(i), 5, index.SearchOptions{})
		require.NoError(t, err)
		require.Len(t, got, 5, "query %d", i)
		assert.Equal(t, want, got, "query %d", i)
	}
}

func TestEntryPoints_NaNData(t *testing.T) {
	nan := float32(math.NaN())
	data := testutil.Matrix([][]float32{{nan, nan}, {nan, nan}, {nan, nan}, {nan, nan}})
	b := &builder{data: data, dist: distance.SquaredL2, opts: Options{EntryPoints: 3}}

	entries, err := b.entryPoints(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []uint32{0}, entries)
}
