// Package testutil provides testing utilities for vecann.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors, computing exact
// nearest neighbors, and verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	data := rng.ClusteredMatrix(10_000, 64, 100, 0.1)
//
// # Exact Search (Ground Truth)
//
//	truth := testutil.BruteForceSearch(data, query, k, distance.SquaredL2)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(truth, approx)
package testutil
