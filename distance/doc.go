// Package distance provides vector distance calculations with SIMD acceleration.
//
// Every metric is expressed as a dissimilarity: smaller is closer. Index
// algorithms only ever see a Func, so adding a metric never touches them.
//
// # Supported Metrics
//
//   - MetricL2: Squared Euclidean distance (default)
//   - MetricCosine: 1 - cosine similarity
//   - MetricInnerProduct: negated dot product (maximum inner product search)
//
// # Usage
//
//	fn, _ := distance.Provider(distance.MetricL2)
//	d := fn(a, b)
package distance
