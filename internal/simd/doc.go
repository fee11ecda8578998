// Package simd provides float32 vector kernels with runtime CPU dispatch.
//
// # Supported Platforms
//
//   - x86-64: AVX2+FMA (dot products routed through vek32)
//   - ARM64: NEON detection (generic unrolled kernels)
//
// Runtime CPU feature detection selects the implementation once at init.
// Set VECANN_SIMD=generic to force the pure Go fallback.
//
// # Operations
//
//   - Distance: Dot, SquaredL2
//   - Batch: SquaredL2Batch, DotBatch
//   - Utility: ScaleInPlace, Norm
package simd
