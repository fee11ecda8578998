package vecann

import (
	"github.com/hupe1980/vecann/distance"
	"github.com/hupe1980/vecann/index"
)

// Index is a built, read-only nearest neighbour index.
type Index = index.Index

// Kind identifies an index implementation.
type Kind = index.Kind

// SearchResult is a single (id, distance) hit.
type SearchResult = index.SearchResult

// Stats describes a built index.
type Stats = index.Stats

// Metric selects the distance function of an index.
type Metric = distance.Metric

// Index kinds.
const (
	KindFlat  = index.KindFlat
	KindIVF   = index.KindIVF
	KindGraph = index.KindGraph
)

// Distance metrics.
const (
	MetricL2           = distance.MetricL2
	MetricCosine       = distance.MetricCosine
	MetricInnerProduct = distance.MetricInnerProduct
)

// InvalidID pads result rows of queries that found fewer than k hits.
const InvalidID = index.InvalidID
