package integration_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecann"
	"github.com/hupe1980/vecann/matrix"
	"github.com/hupe1980/vecann/resource"
	"github.com/hupe1980/vecann/testutil"
)

func identical(n, dim int) *matrix.Matrix[float32] {
	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = make([]float32, dim)
		for j := range rows[i] {
			rows[i][j] = 0.5
		}
	}
	return testutil.Matrix(rows)
}

func TestEdgeCases_IdenticalVectors(t *testing.T) {
	ctx := context.Background()
	rc := resource.New(resource.Config{Workers: 2})
	data := identical(50, 4)
	queries := testutil.Matrix([][]float32{{0.5, 0.5, 0.5, 0.5}})

	t.Run("IVF", func(t *testing.T) {
		idx, err := vecann.IVF(4).NLists(4).Build(ctx, rc, data)
		require.NoError(t, err)
		defer idx.Close()

		for i := 0; i < idx.NLists(); i++ {
			assert.NotEmpty(t, idx.List(i), "list %d", i)
		}

		res, err := vecann.Search(idx, queries).KNN(5).NProbes(4).Execute(ctx, rc)
		require.NoError(t, err)
		assert.Equal(t, []uint32{0, 1, 2, 3, 4}, res.IDs().Row(0))
		assert.Equal(t, []float32{0, 0, 0, 0, 0}, res.Distances().Row(0))
	})

	t.Run("Graph", func(t *testing.T) {
		idx, err := vecann.Graph(4).Degree(4).Build(ctx, rc, data)
		require.NoError(t, err)
		defer idx.Close()

		res, err := vecann.Search(idx, queries).KNN(5).Execute(ctx, rc)
		require.NoError(t, err)
		assert.Equal(t, []uint32{0, 1, 2, 3, 4}, res.IDs().Row(0))
	})
}

func TestEdgeCases_Shapes(t *testing.T) {
	ctx := context.Background()
	data := testutil.NewRNG(5).UniformMatrix(16, 1)

	t.Run("NListsEqualsN", func(t *testing.T) {
		idx, err := vecann.IVF(1).NLists(16).Build(ctx, nil, data)
		require.NoError(t, err)
		for i := 0; i < 16; i++ {
			assert.Len(t, idx.List(i), 1)
		}
	})

	t.Run("KLargerThanN", func(t *testing.T) {
		idx, err := vecann.IVF(1).NLists(2).Build(ctx, nil, data)
		require.NoError(t, err)

		res, err := vecann.Search(idx, data).KNN(40).NProbes(2).Execute(ctx, nil)
		require.NoError(t, err)
		for i, hits := range res.All() {
			assert.Len(t, hits, 16, "query %d", i)
			assert.Equal(t, vecann.InvalidID, res.IDs().Row(i)[16])
		}
	})

	t.Run("SingleVector", func(t *testing.T) {
		one := testutil.Matrix([][]float32{{3}})
		idx, err := vecann.IVF(1).NLists(1).Build(ctx, nil, one)
		require.NoError(t, err)

		res, err := vecann.Search(idx, testutil.Matrix([][]float32{{1}})).KNN(3).Execute(ctx, nil)
		require.NoError(t, err)
		require.Len(t, res.At(0), 1)
		assert.Equal(t, float32(4), res.At(0)[0].Distance)
	})
}

func TestEdgeCases_CosineZeroVector(t *testing.T) {
	ctx := context.Background()
	rows := testutil.NewRNG(6).UnitVectors(40, 8)
	rows = append(rows, make([]float32, 8))
	data := testutil.Matrix(rows)

	idx, err := vecann.IVF(8).Cosine().NLists(4).Build(ctx, nil, data)
	require.NoError(t, err)

	res, err := vecann.Search(idx, data).KNN(41).NProbes(4).Execute(ctx, nil)
	require.NoError(t, err)
	for _, hits := range res.All() {
		for _, h := range hits {
			assert.False(t, math.IsNaN(float64(h.Distance)))
		}
	}
}
