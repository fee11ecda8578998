// Package dataset generates synthetic vector datasets and query batches.
//
// Vectors are drawn from isotropic Gaussian blobs around uniformly placed
// centres, which gives well-separated clusters that partition and graph
// indexes can be measured against. Generation is deterministic for a seed.
package dataset
