package simd

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Positive values (size 3)", []float32{1, 2, 3}, []float32{4, 5, 6}, 32.0},
		{"Negative values (size 3)", []float32{-1, -2, -3}, []float32{-4, -5, -6}, 32.0},
		{"More than 4 (size 6)", []float32{1, 2, 3, 1, 2, 3}, []float32{4, 5, 6, 4, 5, 6}, 64.0},
		{"Mixed values (size 3)", []float32{1, -2, 3}, []float32{-4, 5, -6}, -32.0},
		{"Zero values (size 3)", []float32{0, 0, 0}, []float32{0, 0, 0}, 0.0},
		{"Positive values (size 9)", []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, 285.0},
		{"Positive values (size 16)", []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}, 1496.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Dot(tc.a, tc.b))
			assert.Equal(t, tc.expected, dotGeneric(tc.a, tc.b))
		})
	}
}

func TestSquaredL2(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float32
	}{
		{"Positive values", []float32{1, 2, 3}, []float32{4, 5, 6}, 27.0},
		{"Negative values", []float32{-1, -2, -3}, []float32{-4, -5, -6}, 27.0},
		{"1 Remainder", []float32{1, 2, 3, 1, 2, 3}, []float32{4, 5, 6, 4, 5, 6}, 54.0},
		{"Mixed values", []float32{1, -2, 3}, []float32{-4, 5, -6}, 155.0},
		{"Zero values", []float32{0, 0, 0}, []float32{0, 0, 0}, 0.0},
		{"Empty", []float32{}, []float32{}, 0.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, SquaredL2(tc.a, tc.b))
		})
	}
}

func TestSquaredL2IdenticalIsZero(t *testing.T) {
	v := randomFloats(131)
	assert.Equal(t, float32(0), SquaredL2(v, v))
}

func TestDispatchMatchesGeneric(t *testing.T) {
	a := randomFloats(257)
	b := randomFloats(257)
	assert.InDelta(t, dotGeneric(a, b), Dot(a, b), 1e-3)
	assert.InDelta(t, squaredL2Generic(a, b), SquaredL2(a, b), 1e-3)
}

func TestBatch(t *testing.T) {
	dim := 4
	q := []float32{1, 0, 0, 0}
	targets := []float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		2, 0, 0, 0,
	}
	out := make([]float32, 3)

	SquaredL2Batch(q, targets, dim, out)
	assert.Equal(t, []float32{0, 2, 1}, out)

	DotBatch(q, targets, dim, out)
	assert.Equal(t, []float32{1, 0, 2}, out)
}

func TestScaleAndNorm(t *testing.T) {
	v := []float32{3, 4}
	assert.InDelta(t, float32(5), Norm(v), 1e-6)
	ScaleInPlace(v, 0.5)
	assert.Equal(t, []float32{1.5, 2}, v)
}

func TestParseISA(t *testing.T) {
	isa, ok := ParseISA(" AVX2 ")
	assert.True(t, ok)
	assert.Equal(t, AVX2, isa)

	_, ok = ParseISA("avx1024")
	assert.False(t, ok)

	assert.Equal(t, "generic", Generic.String())
	assert.Equal(t, "neon", NEON.String())
	assert.Equal(t, "unknown", ISA(42).String())
	assert.True(t, isISAAvailable(Generic))
}

func TestInstallKernelsGeneric(t *testing.T) {
	defer installKernels(ActiveISA())

	installKernels(Generic)
	a := randomFloats(33)
	assert.Equal(t, dotGeneric(a, a), Dot(a, a))
}

func randomFloats(n int) []float32 {
	rng := rand.New(rand.NewSource(42))
	out := make([]float32, n)
	for i := range out {
		out[i] = rng.Float32()*2 - 1
	}
	return out
}

func BenchmarkSquaredL2(b *testing.B) {
	va := randomFloats(768)
	vb := randomFloats(768)
	b.ResetTimer()
	for b.Loop() {
		_ = SquaredL2(va, vb)
	}
}

func TestDotVek(t *testing.T) {
	assert.Equal(t, float32(0), dotVek(nil, nil))
	assert.Equal(t, float32(0), dotVek([]float32{}, []float32{}))

	rng := rand.New(rand.NewSource(3))
	for _, n := range []int{1, 7, 8, 33} {
		a, b := make([]float32, n), make([]float32, n)
		for i := range a {
			a[i], b[i] = rng.Float32(), rng.Float32()
		}
		assert.InDelta(t, dotGeneric(a, b), dotVek(a, b), 1e-4, "n=%d", n)
	}
}

func TestInstallKernels_EmptyInput(t *testing.T) {
	defer installKernels(ActiveISA())

	for _, isa := range []ISA{Generic, NEON, AVX2} {
		installKernels(isa)
		assert.Equal(t, float32(0), Dot(nil, nil), isa.String())
		assert.Equal(t, float32(0), Norm([]float32{}), isa.String())
	}
}
