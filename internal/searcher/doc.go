// Package searcher provides pooled scratch state for zero-allocation queries.
//
// The Searcher struct owns all reusable resources needed for search:
//   - a bounded result heap (top-k, worst on top)
//   - a frontier queue (closest first) for graph traversal
//   - a visited set
//   - scratch buffers for centroid distances and probe lists
//
// Searchers are pooled with sync.Pool and handed to one goroutine at a time.
package searcher
