package index

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/internal/searcher"
	"github.com/hupe1980/vecann/matrix"
)

// InvalidID pads result matrices when fewer than k results exist.
const InvalidID uint32 = math.MaxUint32

// Kind identifies the index variant.
type Kind int

const (
	KindFlat Kind = iota
	KindIVF
	KindGraph
)

// String returns a string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindFlat:
		return "Flat"
	case KindIVF:
		return "IVF"
	case KindGraph:
		return "Graph"
	default:
		return "Unknown"
	}
}

// SearchResult represents a search result.
type SearchResult struct {
	// ID is the row of the result vector in the dataset.
	ID uint32

	// Distance is the distance between the query vector and the result vector.
	Distance float32
}

// SearchOptions tunes the recall/latency trade-off of a search. Each index
// reads the knobs that apply to it and ignores the rest; zero values select
// the index defaults.
type SearchOptions struct {
	// NProbes is the number of partitions scanned (IVF). Clamped to [1, NLists].
	NProbes int

	// Width is the size of the graph search result set (Graph). Raised to k if smaller.
	Width int

	// MaxIterations bounds the number of node expansions (Graph). 0 = unlimited.
	MaxIterations int
}

// Index is a built, immutable vector index.
//
// The set of implementations is closed: only types embedding Base satisfy it.
type Index interface {
	// ID returns the unique identity assigned at build time.
	ID() uuid.UUID

	// Kind returns the index variant.
	Kind() Kind

	// Dim returns the vector dimensionality.
	Dim() int

	// Len returns the number of indexed vectors.
	Len() int

	// Metric returns the distance metric.
	Metric() distance.Metric

	// SearchInto appends the k nearest neighbours of query to dst, sorted by
	// ascending distance with ties by ascending id. The query length must
	// equal Dim; callers validate it. s must not be shared between goroutines.
	SearchInto(s *searcher.Searcher, query []float32, k int, opts SearchOptions, dst []SearchResult) []SearchResult

	// Stats returns index statistics.
	Stats() Stats

	// Close returns the memory charged to the execution context at build time.
	Close() error

	sealed()
}

// Base holds the state shared by every index and seals the Index interface.
type Base struct {
	id     uuid.UUID
	data   *matrix.Matrix[float32]
	metric distance.Metric
	dist   distance.Func

	mu       sync.Mutex
	releases []func()
	memBytes int64
}

// NewBase creates the shared state for an index over data.
func NewBase(data *matrix.Matrix[float32], metric distance.Metric) (*Base, error) {
	fn, err := distance.Provider(metric)
	if err != nil {
		return nil, &ErrInvalidParameter{Name: "metric", Value: metric, Reason: err.Error()}
	}
	return &Base{
		id:     uuid.New(),
		data:   data,
		metric: metric,
		dist:   fn,
	}, nil
}

func (b *Base) ID() uuid.UUID { return b.id }

func (b *Base) Dim() int { return b.data.Cols() }

func (b *Base) Len() int { return b.data.Rows() }

func (b *Base) Metric() distance.Metric { return b.metric }

// Data returns the indexed dataset.
func (b *Base) Data() *matrix.Matrix[float32] { return b.data }

// Distance returns the distance function of the index metric.
func (b *Base) Distance() distance.Func { return b.dist }

// Hold attaches a memory reservation of bytes to the index. It is returned by Close.
func (b *Base) Hold(bytes int64, release func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releases = append(b.releases, release)
	b.memBytes += bytes
}

// MemoryBytes returns the bytes held by the index structures.
func (b *Base) MemoryBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.memBytes
}

// Close releases held reservations. It is idempotent.
func (b *Base) Close() error {
	b.mu.Lock()
	releases := b.releases
	b.releases = nil
	b.memBytes = 0
	b.mu.Unlock()

	for _, release := range releases {
		release()
	}
	return nil
}

func (*Base) sealed() {}

// ValidateDataset checks the dataset shared preconditions of every build.
func ValidateDataset(data *matrix.Matrix[float32]) error {
	if data == nil || data.Rows() == 0 {
		return ErrEmptyDataset
	}
	if data.Cols() == 0 {
		return &ErrInvalidParameter{Name: "dim", Value: 0, Reason: "must be > 0"}
	}
	if uint64(data.Rows()) >= uint64(InvalidID) {
		return &ErrInvalidParameter{Name: "n", Value: data.Rows(), Reason: "exceeds the id space"}
	}
	return nil
}

// Search runs a single query with a pooled searcher.
func Search(ctx context.Context, idx Index, query []float32, k int, opts SearchOptions) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != idx.Dim() {
		return nil, &ErrDimensionMismatch{Expected: idx.Dim(), Actual: len(query)}
	}

	s := searcher.Get()
	defer searcher.Put(s)

	return idx.SearchInto(s, query, k, opts, make([]SearchResult, 0, min(k, idx.Len()))), nil
}

// AppendResults converts sorted searcher candidates into results.
func AppendResults(dst []SearchResult, cands []searcher.Candidate) []SearchResult {
	for _, c := range cands {
		dst = append(dst, SearchResult{ID: c.ID, Distance: c.Distance})
	}
	return dst
}

// Stats describes a built index.
type Stats struct {
	ID          uuid.UUID
	Kind        Kind
	Len         int
	Dim         int
	Metric      distance.Metric
	MemoryBytes int64

	// Fields holds index-specific statistics in display order.
	Fields []Field
}

// Field is a named statistic.
type Field struct {
	Name  string
	Value any
}

// String renders the stats as "key=value" pairs.
func (s Stats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "kind=%s n=%d dim=%d metric=%s memory=%d", s.Kind, s.Len, s.Dim, s.Metric, s.MemoryBytes)
	for _, f := range s.Fields {
		fmt.Fprintf(&sb, " %s=%v", f.Name, f.Value)
	}
	return sb.String()
}
