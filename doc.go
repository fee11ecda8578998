// Package vecann builds in-memory approximate nearest neighbour indexes over
// dense float32 vectors and answers batched top-k queries against them.
//
// Three index kinds share one contract:
//
//   - IVF partitions the dataset with k-means into inverted lists and scans
//     the NProbes lists nearest to each query.
//   - Graph connects every vector to a bounded number of neighbours and runs
//     a best-first traversal from a set of entry points.
//   - Flat scans every vector. It is exact and serves as the recall baseline.
//
// Indexes are built once and are read-only afterwards, so any number of
// searches may run concurrently. Every query yields up to k (id, distance)
// pairs sorted by ascending distance, ties by ascending id. Ids are dataset
// row positions.
//
// # Quick Start
//
//	rc := resource.New(resource.Config{Workers: runtime.NumCPU()})
//	data, queries, _ := dataset.Generate(ctx, dataset.Config{Samples: 10000, Queries: 100, Dim: 64})
//
//	idx, _ := vecann.IVF(64).NLists(100).Build(ctx, rc, data)
//	defer idx.Close()
//
//	res, _ := vecann.Search(idx, queries).KNN(10).NProbes(20).Execute(ctx, rc)
//	for i, hits := range res.All() {
//	    fmt.Println(i, hits)
//	}
//
// # Asynchronous Search
//
// Enqueue schedules a search on the execution context's stream. Results are
// valid once Sync returns:
//
//	res := vecann.Search(idx, queries).KNN(10).Enqueue(ctx, rc)
//	if err := rc.Sync(ctx); err != nil { ... }
//	ids := res.IDs()
//
// # Resources
//
// Builds account their working memory against resource.Config.MemoryLimitBytes
// and fail with ErrResourceExhausted when it would be exceeded. Index memory
// stays accounted until Close.
package vecann
