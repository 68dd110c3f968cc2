package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clueweave/clueweave/internal/clue"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

// pagerankGraphRepo is a tiny hand-built entity<->event join: look up
// which events mention a given entity, and which entities a given
// event mentions.
type pagerankGraphRepo struct {
	fakeGraphRepo
	eventsByEntity   map[string][]types.Event
	entitiesForEvent map[string][]types.Entity
}

func (g *pagerankGraphRepo) EventsForEntities(ctx context.Context, sourceConfigIDs []string, entityIDs []string) ([]types.Event, error) {
	seen := make(map[string]types.Event)
	for _, id := range entityIDs {
		for _, ev := range g.eventsByEntity[id] {
			seen[ev.ID] = ev
		}
	}
	out := make([]types.Event, 0, len(seen))
	for _, ev := range seen {
		out = append(out, ev)
	}
	return out, nil
}

func (g *pagerankGraphRepo) EntitiesForEvents(ctx context.Context, eventIDs []string) ([]types.Entity, error) {
	var out []types.Entity
	for _, id := range eventIDs {
		out = append(out, g.entitiesForEvent[id]...)
	}
	return out, nil
}

func TestBuildGraphEdgesWeightsByOccurrenceCount(t *testing.T) {
	ev1 := types.Event{ID: "ev1", Title: "seed"}
	ev2 := types.Event{ID: "ev2", Title: "seed seed"}
	candidates := map[string]candidateEvent{
		"ev1": {event: ev1, sourceEntityIDs: []string{"seed-entity"}},
		"ev2": {event: ev2, sourceEntityIDs: []string{"seed-entity"}},
	}
	order := []string{"ev1", "ev2"}
	index := map[string]int{"ev1": 0, "ev2": 1}
	keyWeight := map[string]float64{"seed-entity": 1.0}
	nameByID := map[string]string{"seed-entity": "seed"}

	edges := buildGraphEdges(order, index, candidates, keyWeight, nameByID)

	var toEv2, toEv1 float64
	for _, e := range edges {
		if e.From == index["ev1"] && e.To == index["ev2"] {
			toEv2 += e.Weight
		}
		if e.From == index["ev2"] && e.To == index["ev1"] {
			toEv1 += e.Weight
		}
	}
	assert.Equal(t, 2.0, toEv2, "ev1->ev2 weighted by seed's two occurrences in ev2's text")
	assert.Equal(t, 1.0, toEv1, "ev2->ev1 weighted by seed's one occurrence in ev1's text")
}

func TestEventPageRankEmitsFinalAndIntermediateClues(t *testing.T) {
	cfg := newTestConfig("seed query")
	cfg.QueryEmbedding = []float32{1, 0, 0, 0}
	cfg.HasQueryEmbedding = true
	cfg.Rerank.ScoreThreshold = 0.1
	cfg.Rerank.MaxResults = 1

	ev1 := types.Event{ID: "ev1", Title: "seed"}
	ev2 := types.Event{ID: "ev2", Title: "seed seed"}

	graph := &pagerankGraphRepo{
		eventsByEntity: map[string][]types.Event{"seed-entity": {ev1, ev2}},
		entitiesForEvent: map[string][]types.Entity{
			"ev1": {{ID: "seed-entity", DisplayName: "seed", Type: "topic"}},
			"ev2": {{ID: "seed-entity", DisplayName: "seed", Type: "topic"}},
		},
	}
	events := &fakeEventVectorRepo{vectors: map[string]interfaces.EventVectors{
		"ev1": {ContentVector: []float32{1, 0, 0, 0}},
		"ev2": {ContentVector: []float32{1, 0, 0, 0}},
	}}

	keyFinal := []types.RecalledEntity{{EntityID: "seed-entity", Name: "seed", Type: "topic", Weight: 1.0, Hop: 0, Steps: []int{1}}}

	reranker := NewEventPageRankReranker(graph, events, clue.NewTracker(cfg))
	ranked, err := reranker.Rerank(context.Background(), cfg, keyFinal)
	require.NoError(t, err)
	require.Len(t, ranked, 1, "MaxResults=1 truncates the ranked list")

	var finalCount, intermediateCount int
	for _, c := range cfg.AllClues {
		if c.Stage != types.StageRerank {
			continue
		}
		switch c.DisplayLevel {
		case types.DisplayLevelFinal:
			finalCount++
		case types.DisplayLevelIntermediate:
			intermediateCount++
		}
	}
	assert.Positive(t, finalCount, "expected at least one final-level rerank clue for the top result")
	assert.Positive(t, intermediateCount, "expected an intermediate clue for the event that didn't make max_results")
}

func TestEventPageRankDropsCandidatesBelowThreshold(t *testing.T) {
	cfg := newTestConfig("seed query")
	cfg.QueryEmbedding = []float32{1, 0, 0, 0}
	cfg.HasQueryEmbedding = true
	cfg.Rerank.ScoreThreshold = 0.9

	graph := &pagerankGraphRepo{
		eventsByEntity:   map[string][]types.Event{"seed-entity": {{ID: "ev1"}}},
		entitiesForEvent: map[string][]types.Entity{"ev1": {{ID: "seed-entity"}}},
	}
	events := &fakeEventVectorRepo{vectors: map[string]interfaces.EventVectors{
		"ev1": {ContentVector: []float32{0, 1, 0, 0}},
	}}
	keyFinal := []types.RecalledEntity{{EntityID: "seed-entity", Name: "seed", Weight: 1.0}}

	reranker := NewEventPageRankReranker(graph, events, clue.NewTracker(cfg))
	ranked, err := reranker.Rerank(context.Background(), cfg, keyFinal)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
