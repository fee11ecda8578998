package index

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/internal/searcher"
	"github.com/hupe1980/vecann/matrix"
)

// scanIndex is a minimal exact index used to exercise the shared helpers.
type scanIndex struct {
	*Base
}

func (x *scanIndex) Kind() Kind { return KindFlat }

func (x *scanIndex) SearchInto(s *searcher.Searcher, q []float32, k int, _ SearchOptions, dst []SearchResult) []SearchResult {
	for i := 0; i < x.Len(); i++ {
		s.Heap.PushBounded(searcher.Candidate{ID: uint32(i), Distance: x.Distance()(q, x.Data().Row(i))}, k)
	}
	s.Results = s.Heap.AppendSorted(s.Results[:0])
	return AppendResults(dst, s.Results)
}

func (x *scanIndex) Stats() Stats { return Stats{ID: x.ID(), Kind: x.Kind(), Len: x.Len(), Dim: x.Dim()} }

func newScanIndex(t *testing.T, rows [][]float32) *scanIndex {
	t.Helper()
	m, err := matrix.FromRows(rows)
	require.NoError(t, err)
	b, err := NewBase(m, distance.MetricL2)
	require.NoError(t, err)
	return &scanIndex{Base: b}
}

func TestSearch(t *testing.T) {
	idx := newScanIndex(t, [][]float32{{0, 0}, {1, 0}, {0, 1}, {5, 5}})
	ctx := context.Background()

	res, err := Search(ctx, idx, []float32{0, 0}, 3, SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []SearchResult{{ID: 0, Distance: 0}, {ID: 1, Distance: 1}, {ID: 2, Distance: 1}}, res)

	res, err = Search(ctx, idx, []float32{0, 0}, 10, SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, res, 4)

	_, err = Search(ctx, idx, []float32{0, 0}, 0, SearchOptions{})
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = Search(ctx, idx, []float32{0}, 1, SearchOptions{})
	var dimErr *ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 1, dimErr.Actual)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Search(canceled, idx, []float32{0, 0}, 1, SearchOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBase(t *testing.T) {
	a := newScanIndex(t, [][]float32{{1, 2, 3}})
	b := newScanIndex(t, [][]float32{{1, 2, 3}})

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 3, a.Dim())
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, distance.MetricL2, a.Metric())

	m, err := matrix.FromRows([][]float32{{1}})
	require.NoError(t, err)
	_, err = NewBase(m, distance.Metric(42))
	var paramErr *ErrInvalidParameter
	assert.ErrorAs(t, err, &paramErr)
}

func TestBaseHoldAndClose(t *testing.T) {
	idx := newScanIndex(t, [][]float32{{1}})
	released := 0
	idx.Hold(16, func() { released++ })
	idx.Hold(8, func() { released++ })
	assert.Equal(t, int64(24), idx.MemoryBytes())

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close())
	assert.Equal(t, 2, released)
	assert.Equal(t, int64(0), idx.MemoryBytes())
}

func TestValidateDataset(t *testing.T) {
	assert.ErrorIs(t, ValidateDataset(nil), ErrEmptyDataset)

	empty, err := matrix.New[float32](0, 4)
	require.NoError(t, err)
	assert.ErrorIs(t, ValidateDataset(empty), ErrEmptyDataset)

	zeroDim, err := matrix.New[float32](3, 0)
	require.NoError(t, err)
	var paramErr *ErrInvalidParameter
	assert.True(t, errors.As(ValidateDataset(zeroDim), &paramErr))

	ok, err := matrix.New[float32](3, 2)
	require.NoError(t, err)
	assert.NoError(t, ValidateDataset(ok))
}

func TestStatsString(t *testing.T) {
	s := Stats{Kind: KindIVF, Len: 10, Dim: 4, Metric: distance.MetricL2, Fields: []Field{{Name: "n_lists", Value: 2}}}
	assert.Equal(t, "kind=IVF n=10 dim=4 metric=L2 memory=0 n_lists=2", s.String())
	assert.Equal(t, "Graph", KindGraph.String())
	assert.Equal(t, "Unknown", Kind(9).String())
}
