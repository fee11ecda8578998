package graph

import (
	"math"

	"github.com/hupe1980/vecann/index"
)

// Stats returns statistics about the index.
func (g *Graph) Stats() index.Stats {
	minDeg, maxDeg, sum := math.MaxInt, 0, 0
	for _, d := range g.degrees {
		minDeg = min(minDeg, int(d))
		maxDeg = max(maxDeg, int(d))
		sum += int(d)
	}

	return index.Stats{
		ID:          g.ID(),
		Kind:        index.KindGraph,
		Len:         g.Len(),
		Dim:         g.Dim(),
		Metric:      g.Metric(),
		MemoryBytes: g.MemoryBytes(),
		Fields: []index.Field{
			{Name: "graph_degree", Value: g.degree},
			{Name: "intermediate_degree", Value: g.intermediateDegree},
			{Name: "build_algo", Value: g.algo.String()},
			{Name: "degree_min", Value: minDeg},
			{Name: "degree_max", Value: maxDeg},
			{Name: "degree_mean", Value: float64(sum) / float64(len(g.degrees))},
			{Name: "entry_points", Value: len(g.entries)},
			{Name: "reachable", Value: int(g.reachable().Count())},
			{Name: "repaired_edges", Value: g.repairedEdges},
		},
	}
}
