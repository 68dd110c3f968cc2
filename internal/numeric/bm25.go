package numeric

import (
	"math"
	"sort"
)

// BM25Index is an Okapi BM25 index over a fixed document corpus,
// grounded on Python's rank_bm25.BM25Okapi (k1=1.5, b=0.75 — the
// library's defaults, which rrf.py uses unmodified).
type BM25Index struct {
	k1, b    float64
	docs     [][]string
	docFreq  map[string]int // term -> number of docs containing it
	docLens  []int
	avgDocLen float64
	idf      map[string]float64
}

// NewBM25Index builds the index over tokenized documents (each a slice
// of token strings, already lowercased/segmented by the caller's
// tokenizer — spec.md §4.5 step 4 calls for a Chinese-capable mixed
// tokenizer).
func NewBM25Index(tokenizedDocs [][]string) *BM25Index {
	idx := &BM25Index{
		k1:      1.5,
		b:       0.75,
		docs:    tokenizedDocs,
		docFreq: make(map[string]int),
		docLens: make([]int, len(tokenizedDocs)),
	}

	var totalLen int
	for i, doc := range tokenizedDocs {
		idx.docLens[i] = len(doc)
		totalLen += len(doc)
		seen := make(map[string]struct{}, len(doc))
		for _, term := range doc {
			seen[term] = struct{}{}
		}
		for term := range seen {
			idx.docFreq[term]++
		}
	}
	if len(tokenizedDocs) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(tokenizedDocs))
	}

	n := float64(len(tokenizedDocs))
	idx.idf = make(map[string]float64, len(idx.docFreq))
	for term, df := range idx.docFreq {
		// idf: ln(1 + (N - df + 0.5)/(df + 0.5)). The argument of the log
		// is always above 1, so common terms never go negative and no
		// floor is applied.
		v := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		idx.idf[term] = v
	}

	return idx
}

// Scores returns the BM25 score of every document against the
// tokenized query, in document order.
func (idx *BM25Index) Scores(queryTokens []string) []float64 {
	scores := make([]float64, len(idx.docs))
	if idx.avgDocLen == 0 {
		return scores
	}

	termFreqCache := make([]map[string]int, len(idx.docs))
	for i, doc := range idx.docs {
		tf := make(map[string]int, len(doc))
		for _, term := range doc {
			tf[term]++
		}
		termFreqCache[i] = tf
	}

	for i := range idx.docs {
		docLen := float64(idx.docLens[i])
		tf := termFreqCache[i]
		var score float64
		for _, term := range queryTokens {
			freq, ok := tf[term]
			if !ok {
				continue
			}
			idf, ok := idx.idf[term]
			if !ok {
				continue
			}
			numerator := float64(freq) * (idx.k1 + 1)
			denominator := float64(freq) + idx.k1*(1-idx.b+idx.b*docLen/idx.avgDocLen)
			score += idf * numerator / denominator
		}
		scores[i] = score
	}
	return scores
}

// RankPositions converts a slice of scores (higher is better) into
// 1-based ranks, breaking ties by original (insertion) order — matching
// spec.md's "on ties, insertion order wins".
func RankPositions(scores []float64) []int {
	n := len(scores)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	ranks := make([]int, n)
	for pos, docIdx := range order {
		ranks[docIdx] = pos + 1
	}
	return ranks
}

// RRFScore computes the Reciprocal Rank Fusion score for one item given
// its 1-based rank in two ranked lists: 1/(k+rankA) + 1/(k+rankB).
func RRFScore(rankA, rankB, k int) float64 {
	return 1.0/float64(k+rankA) + 1.0/float64(k+rankB)
}
