// Package graph implements the proximity-graph index.
//
// Build proceeds in stages:
//
//  1. An initial k-nearest-neighbour graph of IntermediateDegree neighbours
//     per node, computed exactly (brute force), by NN-descent refinement, or
//     with the help of a partition index.
//  2. Robust pruning (alpha diversity) down to GraphDegree neighbours,
//     saturated with the nearest pruned candidates.
//  3. Reverse edges: every kept edge proposes its reverse, and each node's
//     forward and reverse candidates are pruned again to GraphDegree.
//  4. Entry points: the medoid plus farthest-first picks, so separated
//     clusters each get an entry.
//  5. Connectivity repair: nodes unreachable from the entry points are
//     linked from their nearest reachable node.
//
// Adjacency lives in one n x GraphDegree arena with a per-node degree. No node
// links to itself and no edge appears twice.
//
// Search is a best-first traversal from the entry points with a bounded
// result set of Width candidates. Larger widths trade latency for recall.
package graph
