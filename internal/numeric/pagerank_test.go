package numeric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRankConvergesAndSumsToOne(t *testing.T) {
	// A simple 3-cycle with uniform weight: every node should converge
	// to an equal score (1/3), summing to 1.
	edges := []WeightedEdge{
		{From: 0, To: 1, Weight: 1},
		{From: 1, To: 2, Weight: 1},
		{From: 2, To: 0, Weight: 1},
	}
	g := NewGraph(3, edges)
	pr := g.Run(nil, DefaultPageRankConfig())

	require := assert.New(t)
	require.Len(pr, 3)
	var sum float64
	for _, v := range pr {
		sum += v
		require.InDelta(1.0/3.0, v, 1e-6)
	}
	require.InDelta(1.0, sum, 1e-6)
}

func TestPageRankHandlesDanglingNode(t *testing.T) {
	// Node 1 has no outgoing edges (dangling); PageRank should still
	// converge and not leak mass off the graph.
	edges := []WeightedEdge{
		{From: 0, To: 1, Weight: 1},
	}
	g := NewGraph(2, edges)
	pr := g.Run(nil, DefaultPageRankConfig())

	var sum float64
	for _, v := range pr {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestPageRankWeightedEdgesFavorHighWeightTarget(t *testing.T) {
	edges := []WeightedEdge{
		{From: 0, To: 1, Weight: 9},
		{From: 0, To: 2, Weight: 1},
		{From: 1, To: 0, Weight: 1},
		{From: 2, To: 0, Weight: 1},
	}
	g := NewGraph(3, edges)
	pr := g.Run(nil, DefaultPageRankConfig())
	assert.Greater(t, pr[1], pr[2], "node reached by a heavier edge should rank higher")
}
