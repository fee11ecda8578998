// Package kmeans implements Lloyd's k-means clustering for partition training.
//
// The assignment step runs in parallel on the execution context and acts as a
// barrier: the reduction into new centroid means only starts after every
// vector has been assigned. Empty clusters are re-seeded with the point
// farthest from its current centroid.
package kmeans
