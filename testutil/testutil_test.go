package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/index"
)

func TestUniformVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UniformVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], float32(1.0))
	assert.GreaterOrEqual(t, v[1][0], float32(0.0))
}

func TestUnitVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.UnitVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))

	for _, vec := range v {
		var sum float32
		for _, val := range vec {
			sum += val * val
		}
		assert.InDelta(t, float32(1.0), sum, 1e-5)
	}
}

func TestRNGReset(t *testing.T) {
	rng := NewRNG(7)
	a := rng.GaussianVectors(2, 4)
	rng.Reset()
	b := rng.GaussianVectors(2, 4)
	assert.Equal(t, a, b)
	assert.Equal(t, int64(7), rng.Seed())
}

func TestClusteredMatrix(t *testing.T) {
	rng := NewRNG(4711)
	m := rng.ClusteredMatrix(100, 16, 4, 0.01)
	assert.Equal(t, 100, m.Rows())
	assert.Equal(t, 16, m.Cols())

	// Rows i and i+4 share a centroid.
	assert.Less(t, distance.SquaredL2(m.Row(0), m.Row(4)), distance.SquaredL2(m.Row(0), m.Row(1)))
}

func TestBruteForceSearch(t *testing.T) {
	data := Matrix([][]float32{{0, 0}, {1, 0}, {0, 1}, {3, 3}})

	res := BruteForceSearch(data, []float32{0, 0}, 3, distance.SquaredL2)
	assert.Equal(t, []index.SearchResult{{ID: 0, Distance: 0}, {ID: 1, Distance: 1}, {ID: 2, Distance: 1}}, res)
	assert.True(t, IsSorted(res))

	all := BruteForceSearch(data, []float32{0, 0}, 10, distance.SquaredL2)
	assert.Len(t, all, 4)

	queries := Matrix([][]float32{{0, 0}, {3, 3}})
	gt := GroundTruth(data, queries, 1, distance.SquaredL2)
	assert.Equal(t, uint32(0), gt[0][0].ID)
	assert.Equal(t, uint32(3), gt[1][0].ID)
}

func TestComputeRecall(t *testing.T) {
	truth := []index.SearchResult{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}

	assert.Equal(t, 1.0, ComputeRecall(truth, truth))
	assert.Equal(t, 0.5, ComputeRecall(truth, []index.SearchResult{{ID: 1}, {ID: 9}, {ID: 3}, {ID: 8}}))
	assert.Equal(t, 1.0, ComputeRecall(nil, nil))
	assert.Equal(t, 0.0, ComputeRecall(truth, nil))

	assert.Equal(t, 0.75, MeanRecall(
		[][]index.SearchResult{truth, truth},
		[][]index.SearchResult{truth, {{ID: 1}, {ID: 2}, {ID: 7}, {ID: 8}}},
	))
}

func TestIsSorted(t *testing.T) {
	assert.True(t, IsSorted(nil))
	assert.False(t, IsSorted([]index.SearchResult{{ID: 2, Distance: 1}, {ID: 1, Distance: 1}}))
	assert.False(t, IsSorted([]index.SearchResult{{ID: 1, Distance: 2}, {ID: 2, Distance: 1}}))
}
