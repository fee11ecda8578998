package simd

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Kernel function pointers, set once at init.
// Generic implementations are the default; installKernels overrides them
// when the active ISA has an accelerated path.
var (
	kernelDot       = dotGeneric
	kernelSquaredL2 = squaredL2Generic
	kernelScale     = scaleGeneric
)

// installKernels wires the kernel table for isa.
func installKernels(isa ISA) {
	kernelDot = dotGeneric
	kernelSquaredL2 = squaredL2Generic
	kernelScale = scaleGeneric

	switch isa {
	case AVX2:
		kernelDot = dotVek
	case NEON:
		// No NEON kernels; the generic loops run.
	}
}

// dotVek guards vek32.Dot, which panics on empty input.
func dotVek(a, b []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vek32.Dot(a, b[:len(a)])
}

// Dot calculates the dot product of two vectors.
//
// SAFETY: Assumes len(a) == len(b). Caller MUST ensure lengths match.
func Dot(a, b []float32) float32 {
	return kernelDot(a, b)
}

// SquaredL2 calculates the squared L2 distance.
//
// SAFETY: Assumes len(a) == len(b). Caller MUST ensure lengths match.
func SquaredL2(a, b []float32) float32 {
	return kernelSquaredL2(a, b)
}

// ScaleInPlace multiplies all elements of a by scalar.
func ScaleInPlace(a []float32, scalar float32) {
	kernelScale(a, scalar)
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float32 {
	return Sqrt(kernelDot(v, v))
}

// Sqrt returns the float32 square root of x.
func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// DotBatch calculates dot products between query and a flattened batch of vectors.
// targets holds N vectors of dimension dim; out must have length >= N.
func DotBatch(query []float32, targets []float32, dim int, out []float32) {
	if dim <= 0 || len(out) == 0 || len(query) < dim {
		return
	}
	q := query[:dim]
	n := min(len(out), len(targets)/dim)
	for i := 0; i < n; i++ {
		off := i * dim
		out[i] = kernelDot(q, targets[off:off+dim])
	}
}

// SquaredL2Batch calculates squared L2 distances between query and a
// flattened batch of vectors.
func SquaredL2Batch(query []float32, targets []float32, dim int, out []float32) {
	if dim <= 0 || len(out) == 0 || len(query) < dim {
		return
	}
	q := query[:dim]
	n := min(len(out), len(targets)/dim)
	for i := 0; i < n; i++ {
		off := i * dim
		out[i] = kernelSquaredL2(q, targets[off:off+dim])
	}
}

// ============================================================================
// Generic implementations (pure Go fallbacks)
// ============================================================================

func dotGeneric(a, b []float32) float32 {
	n := len(a)
	b = b[:n]

	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= n; i += 4 {
		s0 += a[i] * b[i]
		s1 += a[i+1] * b[i+1]
		s2 += a[i+2] * b[i+2]
		s3 += a[i+3] * b[i+3]
	}
	for ; i < n; i++ {
		s0 += a[i] * b[i]
	}
	return (s0 + s1) + (s2 + s3)
}

func squaredL2Generic(a, b []float32) float32 {
	n := len(a)
	b = b[:n]

	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= n; i += 4 {
		d0 := a[i] - b[i]
		d1 := a[i+1] - b[i+1]
		d2 := a[i+2] - b[i+2]
		d3 := a[i+3] - b[i+3]
		s0 += d0 * d0
		s1 += d1 * d1
		s2 += d2 * d2
		s3 += d3 * d3
	}
	for ; i < n; i++ {
		d := a[i] - b[i]
		s0 += d * d
	}
	return (s0 + s1) + (s2 + s3)
}

func scaleGeneric(a []float32, scalar float32) {
	for i := range a {
		a[i] *= scalar
	}
}
