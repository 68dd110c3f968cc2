package numeric

import "math"

// WeightedEdge is one directed, weighted edge in a PageRank graph.
// From/To are indices into the node slice the graph was built over.
type WeightedEdge struct {
	From, To int
	Weight   float64
}

// Graph is an adjacency-list representation of a directional weighted
// graph over N nodes, built once per PageRank call and iterated in
// place — no per-iteration allocation.
type Graph struct {
	n       int
	out     [][]WeightedEdge // out[i] = edges leaving node i
	outSum  []float64        // out[i] total weight, precomputed
}

// NewGraph allocates a graph over n nodes and indexes edges by source,
// summing each node's total outgoing weight once up front (spec.md
// §4.3-S5: "for each source node j with total out-weight Wj").
func NewGraph(n int, edges []WeightedEdge) *Graph {
	g := &Graph{n: n, out: make([][]WeightedEdge, n), outSum: make([]float64, n)}
	for _, e := range edges {
		if e.Weight <= 0 || e.From < 0 || e.From >= n || e.To < 0 || e.To >= n {
			continue
		}
		g.out[e.From] = append(g.out[e.From], e)
		g.outSum[e.From] += e.Weight
	}
	return g
}

// PageRankConfig parameterizes the iteration (spec.md §4.3-S5).
type PageRankConfig struct {
	Damping       float64
	MaxIterations int
	Tolerance     float64 // L1 convergence threshold; spec.md default 1e-6
}

// DefaultPageRankConfig mirrors the confirmed original defaults
// (damping=0.85, 100 iterations) plus the L1 tolerance spec.md names.
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{Damping: 0.85, MaxIterations: 100, Tolerance: 1e-6}
}

// Run iterates damped PageRank to convergence (or MaxIterations),
// seeded from init (normalized internally; uniform 1/n is used if init
// is nil or sums to zero). Score is reverse-distributed from each
// source: "for each source node j with Wj>0 and PR(j)>0, distribute
// d·PR(j)·edge_weight/Wj to each target" (spec.md §4.3-S5) — the
// remaining (1-d) mass is the fixed teleport term plus any dangling
// (zero out-weight) node's score, redistributed uniformly so PR keeps
// summing to 1 rather than leaking off the graph.
func (g *Graph) Run(init []float64, cfg PageRankConfig) []float64 {
	if g.n == 0 {
		return nil
	}
	pr := make([]float64, g.n)
	if sum := sumFloat64(init); len(init) == g.n && sum > 0 {
		for i, v := range init {
			pr[i] = v / sum
		}
	} else {
		uniform := 1.0 / float64(g.n)
		for i := range pr {
			pr[i] = uniform
		}
	}

	teleport := (1 - cfg.Damping) / float64(g.n)
	next := make([]float64, g.n)

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		for i := range next {
			next[i] = teleport
		}

		var danglingMass float64
		for j := 0; j < g.n; j++ {
			if pr[j] <= 0 {
				continue
			}
			if g.outSum[j] <= 0 {
				danglingMass += pr[j]
				continue
			}
			for _, e := range g.out[j] {
				next[e.To] += cfg.Damping * pr[j] * e.Weight / g.outSum[j]
			}
		}

		if danglingMass > 0 {
			share := cfg.Damping * danglingMass / float64(g.n)
			for i := range next {
				next[i] += share
			}
		}

		if l1Diff(pr, next) < cfg.Tolerance {
			copy(pr, next)
			break
		}
		pr, next = next, pr
	}

	return pr
}

func sumFloat64(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s
}

func l1Diff(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}
