// Package ivf implements the partition (inverted file) index.
//
// Build trains NLists centroids with k-means on a sample of the dataset and
// assigns every vector to the list of its nearest centroid. Lists hold ids in
// ascending order and together cover every id exactly once.
//
// Search computes the query's distance to all centroids, scans the NProbes
// nearest lists exhaustively and returns the k best candidates. Recall grows
// monotonically with NProbes; NProbes = NLists is an exact search.
//
// # Usage
//
//	idx, err := ivf.Build(ctx, rc, data, func(o *ivf.Options) {
//	    o.NLists = 100
//	})
//	res, err := index.Search(ctx, idx, query, 10, index.SearchOptions{NProbes: 20})
package ivf
