// This file implements the fluent batch search API.
package vecann

import (
	"context"
	"iter"
	"math"
	"time"

	"github.com/hupe1980/vecann/index"
	"github.com/hupe1980/vecann/internal/searcher"
	"github.com/hupe1980/vecann/matrix"
	"github.com/hupe1980/vecann/resource"
)

// DefaultK is the number of neighbours returned when KNN is not called.
const DefaultK = 10

// Search creates a new fluent search builder for a batch of queries.
//
// Example:
//
//	res, err := vecann.Search(idx, queries).
//	    KNN(10).
//	    NProbes(20).
//	    Execute(ctx, rc)
func Search(idx Index, queries *matrix.Matrix[float32]) *SearchBuilder {
	return &SearchBuilder{
		idx:     idx,
		queries: queries,
		k:       DefaultK,
	}
}

// SearchBuilder is a fluent builder for constructing batch searches.
type SearchBuilder struct {
	idx     Index
	queries *matrix.Matrix[float32]
	k       int
	opts    index.SearchOptions
	logger  *Logger
	metrics MetricsCollector
}

// KNN sets the number of nearest neighbors to return per query.
func (sb *SearchBuilder) KNN(k int) *SearchBuilder {
	sb.k = k
	return sb
}

// NProbes sets the number of partitions scanned per query by IVF indexes.
// Values are clamped to [1, NLists]. 0 selects the index default.
func (sb *SearchBuilder) NProbes(n int) *SearchBuilder {
	sb.opts.NProbes = n
	return sb
}

// Width sets the result set size of graph traversal.
// Higher values improve recall but slow down search. Values below k are raised to k.
func (sb *SearchBuilder) Width(w int) *SearchBuilder {
	sb.opts.Width = w
	return sb
}

// MaxIterations bounds the node expansions of graph traversal. 0 means unbounded.
func (sb *SearchBuilder) MaxIterations(n int) *SearchBuilder {
	sb.opts.MaxIterations = n
	return sb
}

// Logger sets the structured logger for search tracing.
func (sb *SearchBuilder) Logger(l *Logger) *SearchBuilder {
	sb.logger = l
	return sb
}

// Metrics sets the metrics collector for monitoring.
func (sb *SearchBuilder) Metrics(mc MetricsCollector) *SearchBuilder {
	sb.metrics = mc
	return sb
}

// Execute runs every query and returns the results once all have finished.
// On error no partial results are returned.
func (sb *SearchBuilder) Execute(ctx context.Context, rc *resource.Context) (*Results, error) {
	hits, err := sb.run(ctx, rc)
	if err != nil {
		return nil, err
	}
	return &Results{k: sb.k, hits: hits}, nil
}

// Enqueue schedules the search on the stream of rc and returns immediately.
// The returned Results are valid once rc.Sync has returned. With a nil rc
// the search runs before Enqueue returns.
func (sb *SearchBuilder) Enqueue(ctx context.Context, rc *resource.Context) *Results {
	r := &Results{k: sb.k}
	if rc == nil {
		r.hits, r.err = sb.run(ctx, nil)
		return r
	}

	rc.Enqueue(ctx, func(ctx context.Context) error {
		r.hits, r.err = sb.run(ctx, rc)
		return r.err
	})
	return r
}

func (sb *SearchBuilder) validate() error {
	if sb.idx == nil || sb.queries == nil {
		return ErrInvalidArgument
	}
	if sb.k <= 0 {
		return ErrInvalidK
	}
	if sb.queries.Cols() != sb.idx.Dim() {
		return &ErrDimensionMismatch{Expected: sb.idx.Dim(), Actual: sb.queries.Cols()}
	}
	return nil
}

func (sb *SearchBuilder) run(ctx context.Context, rc *resource.Context) ([][]SearchResult, error) {
	start := time.Now()

	logger := sb.logger
	if logger == nil {
		logger = NoopLogger()
	}
	metrics := sb.metrics
	if metrics == nil {
		metrics = NoopMetricsCollector{}
	}

	q := 0
	if sb.queries != nil {
		q = sb.queries.Rows()
	}

	hits, err := sb.dispatch(ctx, rc)
	err = translateError(err)

	elapsed := time.Since(start)
	logger.LogSearch(ctx, sb.k, q, elapsed, err)
	metrics.RecordSearch(sb.k, q, elapsed, err)

	if err != nil {
		return nil, err
	}
	return hits, nil
}

// dispatch fans the queries out over the workers of rc. Result i is written
// to slot i only.
func (sb *SearchBuilder) dispatch(ctx context.Context, rc *resource.Context) ([][]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := sb.validate(); err != nil {
		return nil, err
	}

	q := sb.queries.Rows()
	perQuery := min(sb.k, sb.idx.Len())
	hits := make([][]SearchResult, q)

	err := rc.Parallel(ctx, q, func(ctx context.Context, lo, hi int) error {
		if err := rc.Limit(ctx, hi-lo); err != nil {
			return err
		}

		s := searcher.Get()
		defer searcher.Put(s)

		for i := lo; i < hi; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			hits[i] = sb.idx.SearchInto(s, sb.queries.Row(i), sb.k, sb.opts, make([]SearchResult, 0, perQuery))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// Results holds the hits of a batch search, one row per query.
type Results struct {
	k    int
	hits [][]SearchResult
	err  error
}

// Err returns the error of an enqueued search, or nil.
func (r *Results) Err() error { return r.err }

// Len returns the number of queries.
func (r *Results) Len() int { return len(r.hits) }

// K returns the requested number of neighbours per query.
func (r *Results) K() int { return r.k }

// At returns the hits of query i, nearest first.
func (r *Results) At(i int) []SearchResult { return r.hits[i] }

// All iterates over the queries in order.
func (r *Results) All() iter.Seq2[int, []SearchResult] {
	return func(yield func(int, []SearchResult) bool) {
		for i, h := range r.hits {
			if !yield(i, h) {
				return
			}
		}
	}
}

// IDs returns the hit ids as a Len x K matrix. Rows with fewer than K hits
// are padded with InvalidID.
func (r *Results) IDs() *matrix.Matrix[uint32] {
	m, _ := matrix.New[uint32](len(r.hits), r.k)
	for i, h := range r.hits {
		row := m.Row(i)
		for j := range row {
			if j < len(h) {
				row[j] = h[j].ID
			} else {
				row[j] = InvalidID
			}
		}
	}
	return m
}

// Distances returns the hit distances as a Len x K matrix. Rows with fewer
// than K hits are padded with +Inf.
func (r *Results) Distances() *matrix.Matrix[float32] {
	m, _ := matrix.New[float32](len(r.hits), r.k)
	inf := float32(math.Inf(1))
	for i, h := range r.hits {
		row := m.Row(i)
		for j := range row {
			if j < len(h) {
				row[j] = h[j].Distance
			} else {
				row[j] = inf
			}
		}
	}
	return m
}

// Recall returns the mean recall of r against exact results: per query, the
// fraction of truth's hits that r also found.
func (r *Results) Recall(truth *Results) float64 {
	n := min(len(r.hits), len(truth.hits))
	if n == 0 {
		return 1
	}

	var sum float64
	for i := 0; i < n; i++ {
		want := truth.hits[i]
		if len(want) == 0 {
			sum++
			continue
		}

		found := 0
		for _, t := range want {
			for _, h := range r.hits[i] {
				if h.ID == t.ID {
					found++
					break
				}
			}
		}
		sum += float64(found) / float64(len(want))
	}
	return sum / float64(n)
}
