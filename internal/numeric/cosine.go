// Package numeric implements the engine's numeric kernels: cosine
// similarity, directional weighted PageRank, and BM25 scoring, grounded
// on original_source/sag/modules/search/ranking/{pagerank,rrf}.py and
// spec.md §4.3-§4.5's exact formulas. Single-allocation float32 buffers
// and a fused dot/norm loop keep these off the per-request garbage path,
// matching spec.md §9's guidance to avoid recomputing norms in loops.
package numeric

import "math"

// Cosine computes the cosine similarity between two equal-length
// vectors. Returns 0 if either vector is empty or has zero norm —
// callers treat a missing embedding as a zero contribution (spec.md
// §4.5 step 2), never as an error.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// BatchCosine computes the cosine similarity of query against every
// vector in candidates in one pass, reusing the query norm across all
// comparisons rather than recomputing it per candidate.
func BatchCosine(query []float32, candidates [][]float32) []float64 {
	out := make([]float64, len(candidates))
	if len(query) == 0 {
		return out
	}
	var queryNormSq float64
	for _, q := range query {
		queryNormSq += float64(q) * float64(q)
	}
	if queryNormSq == 0 {
		return out
	}
	queryNorm := math.Sqrt(queryNormSq)

	for i, cand := range candidates {
		if len(cand) != len(query) {
			continue
		}
		var dot, candNormSq float64
		for j, c := range cand {
			cf := float64(c)
			dot += float64(query[j]) * cf
			candNormSq += cf * cf
		}
		if candNormSq == 0 {
			continue
		}
		out[i] = dot / (queryNorm * math.Sqrt(candNormSq))
	}
	return out
}
