// This file implements index-specific fluent builder APIs.
// Builders are immutable - each method returns a new builder with the updated configuration.
package vecann

import (
	"context"

	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/index/flat"
	"github.com/hupe1980/vecann/index/graph"
	"github.com/hupe1980/vecann/index/ivf"
	"github.com/hupe1980/vecann/matrix"
	"github.com/hupe1980/vecann/resource"
)

// =============================================================================
// IVF Builder (Immutable)
// =============================================================================

// IVF creates a new partition index builder for vectors of the given dimension.
// A dimension of 0 accepts any dataset.
//
// Example:
//
//	idx, err := vecann.IVF(64).
//	    SquaredL2().
//	    NLists(100).
//	    TrainsetFraction(0.5).
//	    Build(ctx, rc, data)
func IVF(dimension int) IVFBuilder {
	return IVFBuilder{
		options:          defaultOptions(dimension),
		nlists:           ivf.DefaultOptions.NLists,
		trainsetFraction: ivf.DefaultOptions.TrainsetFraction,
		maxIterations:    ivf.DefaultOptions.MaxIterations,
		tolerance:        ivf.DefaultOptions.Tolerance,
	}
}

// IVFBuilder is an immutable fluent builder for partition indexes.
type IVFBuilder struct {
	options
	nlists           int
	trainsetFraction float64
	maxIterations    int
	tolerance        float32
}

// SquaredL2 sets the distance metric to squared Euclidean distance.
func (b IVFBuilder) SquaredL2() IVFBuilder {
	b.metric = distance.MetricL2
	return b
}

// Cosine sets the distance metric to cosine distance.
func (b IVFBuilder) Cosine() IVFBuilder {
	b.metric = distance.MetricCosine
	return b
}

// DotProduct sets the distance metric to negated inner product.
func (b IVFBuilder) DotProduct() IVFBuilder {
	b.metric = distance.MetricInnerProduct
	return b
}

// Metric sets the distance metric.
func (b IVFBuilder) Metric(m Metric) IVFBuilder {
	b.metric = m
	return b
}

// NLists sets the number of k-means partitions. Must be in [1, n].
// Default: 100.
func (b IVFBuilder) NLists(n int) IVFBuilder {
	b.nlists = n
	return b
}

// TrainsetFraction sets the fraction of the dataset k-means trains on.
// When the fraction yields fewer than NLists vectors the full dataset is used.
// Default: 0.5.
func (b IVFBuilder) TrainsetFraction(f float64) IVFBuilder {
	b.trainsetFraction = f
	return b
}

// MaxIterations bounds the k-means iterations. Default: 20.
func (b IVFBuilder) MaxIterations(n int) IVFBuilder {
	b.maxIterations = n
	return b
}

// Tolerance sets the k-means convergence threshold on the largest squared
// centroid shift. Default: 1e-4.
func (b IVFBuilder) Tolerance(tol float32) IVFBuilder {
	b.tolerance = tol
	return b
}

// RandomSeed sets the seed for training set sampling and centroid initialization.
func (b IVFBuilder) RandomSeed(seed int64) IVFBuilder {
	b.seed = &seed
	return b
}

// Logger sets the structured logger for build tracing.
func (b IVFBuilder) Logger(l *Logger) IVFBuilder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b IVFBuilder) Metrics(mc MetricsCollector) IVFBuilder {
	b.metrics = mc
	return b
}

// Build trains and populates the partition index over data.
func (b IVFBuilder) Build(ctx context.Context, rc *resource.Context, data *matrix.Matrix[float32]) (*ivf.IVF, error) {
	return build(ctx, b.options, KindIVF, data, func() (*ivf.IVF, error) {
		return ivf.Build(ctx, rc, data, func(o *ivf.Options) {
			o.NLists = b.nlists
			o.TrainsetFraction = b.trainsetFraction
			o.Metric = b.metric
			o.MaxIterations = b.maxIterations
			o.Tolerance = b.tolerance
			if b.seed != nil {
				o.Seed = *b.seed
			}
			o.Logger = b.slogger()
		})
	})
}

// =============================================================================
// Graph Builder (Immutable)
// =============================================================================

// Graph creates a new proximity-graph index builder for vectors of the given
// dimension. A dimension of 0 accepts any dataset.
//
// Example:
//
//	idx, err := vecann.Graph(64).
//	    Degree(32).
//	    Algo(graph.BuildNNDescent).
//	    Build(ctx, rc, data)
func Graph(dimension int) GraphBuilder {
	return GraphBuilder{
		options:             defaultOptions(dimension),
		degree:              graph.DefaultOptions.GraphDegree,
		algo:                graph.DefaultOptions.BuildAlgo,
		alpha:               graph.DefaultOptions.Alpha,
		nnDescentIterations: graph.DefaultOptions.NNDescentIterations,
		partitionProbes:     graph.DefaultOptions.PartitionProbes,
		entryPoints:         graph.DefaultOptions.EntryPoints,
	}
}

// GraphBuilder is an immutable fluent builder for proximity-graph indexes.
type GraphBuilder struct {
	options
	degree              int
	intermediateDegree  int
	algo                graph.BuildAlgo
	alpha               float32
	nnDescentIterations int
	partitionProbes     int
	entryPoints         int
}

// SquaredL2 sets the distance metric to squared Euclidean distance.
func (b GraphBuilder) SquaredL2() GraphBuilder {
	b.metric = distance.MetricL2
	return b
}

// Cosine sets the distance metric to cosine distance.
func (b GraphBuilder) Cosine() GraphBuilder {
	b.metric = distance.MetricCosine
	return b
}

// DotProduct sets the distance metric to negated inner product.
func (b GraphBuilder) DotProduct() GraphBuilder {
	b.metric = distance.MetricInnerProduct
	return b
}

// Metric sets the distance metric.
func (b GraphBuilder) Metric(m Metric) GraphBuilder {
	b.metric = m
	return b
}

// Degree sets the maximum out-degree of every node. Must be in [1, n-1].
// Default: 32.
func (b GraphBuilder) Degree(d int) GraphBuilder {
	b.degree = d
	return b
}

// IntermediateDegree sets the width of the initial kNN graph before pruning.
// Default: 2*Degree.
func (b GraphBuilder) IntermediateDegree(d int) GraphBuilder {
	b.intermediateDegree = d
	return b
}

// Algo selects how the initial kNN graph is computed. Default: graph.BuildAuto.
func (b GraphBuilder) Algo(a graph.BuildAlgo) GraphBuilder {
	b.algo = a
	return b
}

// Alpha sets the pruning factor (>= 1). Higher values keep more diverse edges.
// Default: 1.2.
func (b GraphBuilder) Alpha(alpha float32) GraphBuilder {
	b.alpha = alpha
	return b
}

// NNDescentIterations bounds NN-descent refinement. Default: 20.
func (b GraphBuilder) NNDescentIterations(n int) GraphBuilder {
	b.nnDescentIterations = n
	return b
}

// PartitionProbes sets the lists probed per node by graph.BuildPartition.
// Default: 8.
func (b GraphBuilder) PartitionProbes(n int) GraphBuilder {
	b.partitionProbes = n
	return b
}

// EntryPoints sets the number of search entry points. 0 selects ceil(sqrt(n)).
func (b GraphBuilder) EntryPoints(n int) GraphBuilder {
	b.entryPoints = n
	return b
}

// RandomSeed sets the seed for deterministic graph construction.
func (b GraphBuilder) RandomSeed(seed int64) GraphBuilder {
	b.seed = &seed
	return b
}

// Logger sets the structured logger for build tracing.
func (b GraphBuilder) Logger(l *Logger) GraphBuilder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b GraphBuilder) Metrics(mc MetricsCollector) GraphBuilder {
	b.metrics = mc
	return b
}

// Build constructs the proximity graph over data.
func (b GraphBuilder) Build(ctx context.Context, rc *resource.Context, data *matrix.Matrix[float32]) (*graph.Graph, error) {
	return build(ctx, b.options, KindGraph, data, func() (*graph.Graph, error) {
		return graph.Build(ctx, rc, data, func(o *graph.Options) {
			o.GraphDegree = b.degree
			o.IntermediateDegree = b.intermediateDegree
			o.BuildAlgo = b.algo
			o.Alpha = b.alpha
			o.NNDescentIterations = b.nnDescentIterations
			o.PartitionProbes = b.partitionProbes
			o.EntryPoints = b.entryPoints
			o.Metric = b.metric
			if b.seed != nil {
				o.Seed = *b.seed
			}
			o.Logger = b.slogger()
		})
	})
}

// =============================================================================
// Flat Builder (Immutable)
// =============================================================================

// Flat creates a new exact, brute-force index builder.
func Flat(dimension int) FlatBuilder {
	return FlatBuilder{options: defaultOptions(dimension)}
}

// FlatBuilder is an immutable fluent builder for flat indexes.
type FlatBuilder struct {
	options
}

// Metric sets the distance metric.
func (b FlatBuilder) Metric(m Metric) FlatBuilder {
	b.metric = m
	return b
}

// Logger sets the structured logger for build tracing.
func (b FlatBuilder) Logger(l *Logger) FlatBuilder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b FlatBuilder) Metrics(mc MetricsCollector) FlatBuilder {
	b.metrics = mc
	return b
}

// Build wraps data in a flat index.
func (b FlatBuilder) Build(ctx context.Context, rc *resource.Context, data *matrix.Matrix[float32]) (*flat.Flat, error) {
	return build(ctx, b.options, KindFlat, data, func() (*flat.Flat, error) {
		return flat.Build(ctx, rc, data, func(o *flat.Options) {
			o.Metric = b.metric
			o.Logger = b.slogger()
		})
	})
}
