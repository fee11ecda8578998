// Package index provides the shared contract of the in-memory vector indexes.
//
// Two approximate index types and one exact baseline satisfy Index:
//
//   - ivf: Partition index. K-means coarse clustering into inverted lists;
//     a query probes the NProbes nearest lists.
//   - graph: Proximity-graph index. A bounded-degree navigable graph searched
//     greedily from a few entry points.
//   - flat: Exact linear scan. Used as ground truth.
//
// # Index Selection
//
//   - Flat: small datasets, 100% recall required
//   - IVF: fast to build, recall tuned by NProbes
//   - Graph: slower to build, best recall per distance computation, tuned by Width
//
// # Identity
//
// A vector's id is its row index in the dataset matrix. Results are sorted by
// ascending distance with ties broken by ascending id, so equal inputs always
// give equal outputs.
//
// Indexes are immutable after build and safe for concurrent searches. They
// hold a reference to the dataset matrix, which must not be mutated.
package index
