// Package distance provides public API for vector distance calculations.
// All distance functions use the kernels from internal/simd, which select an
// accelerated implementation at init when the CPU supports one.
package distance

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/vecann/internal/simd"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	return simd.Dot(a, b)
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	return simd.SquaredL2(a, b)
}

// CosineDistance returns 1 - cos(a, b), clamped to [0, 2].
// A zero vector is at distance 0 from another zero vector and 1 from anything else.
func CosineDistance(a, b []float32) float32 {
	na := simd.Dot(a, a)
	nb := simd.Dot(b, b)
	if na == 0 || nb == 0 {
		if na == nb {
			return 0
		}
		return 1
	}
	d := 1 - simd.Dot(a, b)/(simd.Sqrt(na)*simd.Sqrt(nb))
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	}
	return d
}

// NegativeDot returns -<a, b>, so that a larger inner product sorts first.
func NegativeDot(a, b []float32) float32 {
	return -simd.Dot(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := simd.Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / simd.Sqrt(norm2)
	simd.ScaleInPlace(v, inv)
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	// MetricL2 is the squared Euclidean distance.
	MetricL2 Metric = iota
	// MetricCosine is the cosine distance (1 - cosine similarity).
	MetricCosine
	// MetricInnerProduct ranks by descending inner product. Its values are
	// negated dot products and may be negative, so it orders but does not measure.
	MetricInnerProduct
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricCosine:
		return "Cosine"
	case MetricInnerProduct:
		return "InnerProduct"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseMetric parses a metric name (case-insensitive).
// Accepted: "l2", "sqeuclidean", "cosine", "ip", "inner_product", "dot".
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "l2", "sqeuclidean", "euclidean":
		return MetricL2, nil
	case "cosine":
		return MetricCosine, nil
	case "ip", "inner_product", "innerproduct", "dot":
		return MetricInnerProduct, nil
	default:
		return 0, fmt.Errorf("unknown metric %q", s)
	}
}

// Func is a function type for distance calculation.
// Smaller values mean closer vectors.
type Func func(a, b []float32) float32

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return SquaredL2, nil
	case MetricCosine:
		return CosineDistance, nil
	case MetricInnerProduct:
		return NegativeDot, nil
	default:
		return nil, fmt.Errorf("unsupported metric for float32: %v", m)
	}
}
