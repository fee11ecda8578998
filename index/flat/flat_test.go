package flat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/index"
	"github.com/hupe1980/vecann/internal/searcher"
	"github.com/hupe1980/vecann/matrix"
)

func newFlat(t *testing.T, rows [][]float32, optFns ...func(o *Options)) *Flat {
	t.Helper()
	m, err := matrix.FromRows(rows)
	require.NoError(t, err)
	f, err := Build(context.Background(), nil, m, optFns...)
	require.NoError(t, err)
	return f
}

func TestFlat(t *testing.T) {
	ctx := context.Background()
	rows := [][]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}

	t.Run("Build", func(t *testing.T) {
		f := newFlat(t, rows)
		assert.Equal(t, index.KindFlat, f.Kind())
		assert.Equal(t, 3, f.Len())
		assert.Equal(t, 3, f.Dim())

		_, err := Build(ctx, nil, nil)
		assert.ErrorIs(t, err, index.ErrEmptyDataset)
	})

	t.Run("Search", func(t *testing.T) {
		f := newFlat(t, rows)

		result, err := index.Search(ctx, f, []float32{10, 10, 10}, 2, index.SearchOptions{})
		require.NoError(t, err)
		require.Len(t, result, 2)
		assert.Equal(t, uint32(2), result[0].ID)
		assert.Equal(t, uint32(1), result[1].ID)

		_, err = index.Search(ctx, f, []float32{1, 2}, 2, index.SearchOptions{})
		assert.IsType(t, &index.ErrDimensionMismatch{}, err)
	})

	t.Run("SelfQuery", func(t *testing.T) {
		f := newFlat(t, rows)
		for i, r := range rows {
			result, err := index.Search(ctx, f, r, 1, index.SearchOptions{})
			require.NoError(t, err)
			assert.Equal(t, uint32(i), result[0].ID)
			assert.Equal(t, float32(0), result[0].Distance)
		}
	})

	t.Run("KLargerThanN", func(t *testing.T) {
		f := newFlat(t, rows)
		result, err := index.Search(ctx, f, []float32{0, 0, 0}, 10, index.SearchOptions{})
		require.NoError(t, err)
		assert.Len(t, result, 3)
	})

	t.Run("Ties", func(t *testing.T) {
		f := newFlat(t, [][]float32{{1, 0}, {0, 1}, {-1, 0}, {0, -1}})
		result, err := index.Search(ctx, f, []float32{0, 0}, 4, index.SearchOptions{})
		require.NoError(t, err)
		for i, r := range result {
			assert.Equal(t, uint32(i), r.ID)
			assert.Equal(t, float32(1), r.Distance)
		}
	})

	t.Run("Filtered", func(t *testing.T) {
		f := newFlat(t, rows)
		s := searcher.Get()
		defer searcher.Put(s)

		result := f.SearchFiltered(s, rows[0], 2, func(id uint32) bool { return id != 0 }, nil)
		require.Len(t, result, 2)
		assert.Equal(t, uint32(1), result[0].ID)
		assert.Equal(t, uint32(2), result[1].ID)
	})

	t.Run("InnerProduct", func(t *testing.T) {
		f := newFlat(t, [][]float32{{1, 0}, {2, 0}, {0, 3}}, func(o *Options) {
			o.Metric = distance.MetricInnerProduct
		})
		result, err := index.Search(ctx, f, []float32{1, 0}, 1, index.SearchOptions{})
		require.NoError(t, err)
		assert.Equal(t, uint32(1), result[0].ID)
		assert.Equal(t, float32(-2), result[0].Distance)
	})

	t.Run("Stream", func(t *testing.T) {
		f := newFlat(t, rows)
		var ids []uint32
		for r, err := range f.SearchStream(ctx, []float32{0, 0, 0}, 3) {
			require.NoError(t, err)
			ids = append(ids, r.ID)
			if len(ids) == 2 {
				break
			}
		}
		assert.Equal(t, []uint32{0, 1}, ids)

		for _, err := range f.SearchStream(ctx, []float32{0}, 3) {
			assert.Error(t, err)
		}
	})

	t.Run("Stats", func(t *testing.T) {
		f := newFlat(t, rows)
		st := f.Stats()
		assert.Equal(t, f.ID(), st.ID)
		assert.Equal(t, 3, st.Len)
	})
}
