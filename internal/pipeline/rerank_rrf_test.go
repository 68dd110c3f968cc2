package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clueweave/clueweave/internal/clue"
	"github.com/clueweave/clueweave/internal/numeric"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

func TestRRFDropsEventsMissingBothVectors(t *testing.T) {
	cfg := newTestConfig("seed query")
	cfg.QueryEmbedding = []float32{1, 0, 0, 0}
	cfg.HasQueryEmbedding = true
	cfg.Rerank.ScoreThreshold = 0.1
	cfg.Rerank.RRFK = 60
	cfg.Rerank.MaxResults = 5

	ev1 := types.Event{ID: "ev1", Title: "seed event", Summary: "s", Content: "seed content about the query"}
	graph := &pagerankGraphRepo{
		eventsByEntity:   map[string][]types.Event{"seed-entity": {ev1}},
		entitiesForEvent: map[string][]types.Entity{"ev1": {{ID: "seed-entity", DisplayName: "seed"}}},
	}
	// No vectors registered for ev1 at all: both title and content
	// vectors are missing, so the event must be dropped, not scored 0.
	events := &fakeEventVectorRepo{vectors: map[string]interfaces.EventVectors{}}
	tokenizer := numeric.NewTokenizer()
	defer tokenizer.Close()

	keyFinal := []types.RecalledEntity{{EntityID: "seed-entity", Name: "seed", Weight: 1.0}}
	reranker := NewRRFReranker(graph, events, tokenizer, clue.NewTracker(cfg))
	ranked, err := reranker.Rerank(context.Background(), cfg, keyFinal)
	require.NoError(t, err)
	assert.Empty(t, ranked, "an event missing both title and content vectors must be dropped")
}

func TestRRFFusesEmbeddingAndBM25Rankings(t *testing.T) {
	cfg := newTestConfig("seed query")
	cfg.QueryEmbedding = []float32{1, 0, 0, 0}
	cfg.HasQueryEmbedding = true
	cfg.Rerank.ScoreThreshold = 0.1
	cfg.Rerank.RRFK = 60
	cfg.Rerank.MaxResults = 2

	ev1 := types.Event{ID: "ev1", Title: "seed query match", Summary: "", Content: "seed query seed query"}
	ev2 := types.Event{ID: "ev2", Title: "unrelated", Summary: "", Content: "something else entirely"}

	graph := &pagerankGraphRepo{
		eventsByEntity: map[string][]types.Event{"seed-entity": {ev1, ev2}},
		entitiesForEvent: map[string][]types.Entity{
			"ev1": {{ID: "seed-entity", DisplayName: "seed"}},
			"ev2": {{ID: "seed-entity", DisplayName: "seed"}},
		},
	}
	events := &fakeEventVectorRepo{vectors: map[string]interfaces.EventVectors{
		"ev1": {TitleVector: []float32{1, 0, 0, 0}, ContentVector: []float32{1, 0, 0, 0}},
		"ev2": {TitleVector: []float32{0, 1, 0, 0}, ContentVector: []float32{0, 1, 0, 0}},
	}}
	tokenizer := numeric.NewTokenizer()
	defer tokenizer.Close()

	keyFinal := []types.RecalledEntity{{EntityID: "seed-entity", Name: "seed", Weight: 1.0}}
	reranker := NewRRFReranker(graph, events, tokenizer, clue.NewTracker(cfg))
	ranked, err := reranker.Rerank(context.Background(), cfg, keyFinal)
	require.NoError(t, err)
	require.Len(t, ranked, 1, "ev2's embedding similarity is 0, below the 0.1 score_threshold")
	assert.Equal(t, "ev1", ranked[0].Event.ID)

	var finalCount int
	for _, c := range cfg.AllClues {
		if c.Stage == types.StageRerank && c.DisplayLevel == types.DisplayLevelFinal {
			finalCount++
		}
	}
	assert.Positive(t, finalCount, "expected a final-level clue for the surviving event")
}
