// Package flat provides an exact, brute-force index over a dataset matrix.
package flat

import (
	"context"
	"iter"
	"log/slog"

	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/index"
	"github.com/hupe1980/vecann/internal/searcher"
	"github.com/hupe1980/vecann/matrix"
	"github.com/hupe1980/vecann/resource"
)

// Compile-time check to ensure Flat satisfies the index interface.
var _ index.Index = (*Flat)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// Metric is the distance metric.
	Metric distance.Metric

	// Logger receives build diagnostics. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Metric: distance.MetricL2,
}

// Flat answers queries by scanning every vector.
type Flat struct {
	*index.Base
}

// Build creates a flat index over data. No copy of data is made.
func Build(ctx context.Context, _ *resource.Context, data *matrix.Matrix[float32], optFns ...func(o *Options)) (*Flat, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := index.ValidateDataset(data); err != nil {
		return nil, err
	}

	base, err := index.NewBase(data, opts.Metric)
	if err != nil {
		return nil, err
	}

	f := &Flat{Base: base}
	if opts.Logger != nil {
		opts.Logger.Debug("flat index built", "index_id", f.ID(), "n", f.Len(), "dim", f.Dim())
	}
	return f, nil
}

// Kind returns index.KindFlat.
func (*Flat) Kind() index.Kind { return index.KindFlat }

// SearchInto scans the whole dataset.
func (f *Flat) SearchInto(s *searcher.Searcher, query []float32, k int, _ index.SearchOptions, dst []index.SearchResult) []index.SearchResult {
	return f.SearchFiltered(s, query, k, nil, dst)
}

// SearchFiltered scans the dataset, skipping ids rejected by filter.
// A nil filter accepts every id.
func (f *Flat) SearchFiltered(s *searcher.Searcher, query []float32, k int, filter func(id uint32) bool, dst []index.SearchResult) []index.SearchResult {
	data := f.Data()
	dist := f.Distance()

	s.Heap.Reset()
	for i := 0; i < data.Rows(); i++ {
		id := uint32(i)
		if filter != nil && !filter(id) {
			continue
		}
		s.Heap.PushBounded(searcher.Candidate{ID: id, Distance: dist(query, data.Row(i))}, k)
	}
	s.OpsPerformed += data.Rows()

	s.Results = s.Heap.AppendSorted(s.Results[:0])
	return index.AppendResults(dst, s.Results)
}

// SearchStream returns an iterator over the k nearest neighbours of q.
// Results are yielded in order from nearest to farthest.
// The iterator supports early termination - stop iterating to cancel.
//
// Example:
//
//	for result, err := range f.SearchStream(ctx, query, 100) {
//	    if err != nil {
//	        return err
//	    }
//	    if result.Distance > threshold {
//	        break // Early termination
//	    }
//	    process(result)
//	}
func (f *Flat) SearchStream(ctx context.Context, q []float32, k int) iter.Seq2[index.SearchResult, error] {
	return func(yield func(index.SearchResult, error) bool) {
		results, err := index.Search(ctx, f, q, k, index.SearchOptions{})
		if err != nil {
			yield(index.SearchResult{}, err)
			return
		}

		for _, result := range results {
			if !yield(result, nil) {
				return // Early termination
			}
		}
	}
}

// Stats returns statistics about the index.
func (f *Flat) Stats() index.Stats {
	return index.Stats{
		ID:          f.ID(),
		Kind:        index.KindFlat,
		Len:         f.Len(),
		Dim:         f.Dim(),
		Metric:      f.Metric(),
		MemoryBytes: f.MemoryBytes(),
	}
}
