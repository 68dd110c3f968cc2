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

// expandGraphRepo is a tiny hand-built two-hop graph: entity "seed" co-occurs
// with entity "new" in event "ev1", which a high event-query similarity keeps.
type expandGraphRepo struct {
	fakeGraphRepo
	eventsForFrontier map[string][]types.Event
	entitiesForEvent  map[string][]types.Entity
}

func (g *expandGraphRepo) EventsForEntities(ctx context.Context, sourceConfigIDs []string, entityIDs []string) ([]types.Event, error) {
	seen := make(map[string]types.Event)
	for _, id := range entityIDs {
		for _, ev := range g.eventsForFrontier[id] {
			seen[ev.ID] = ev
		}
	}
	out := make([]types.Event, 0, len(seen))
	for _, ev := range seen {
		out = append(out, ev)
	}
	return out, nil
}

func (g *expandGraphRepo) EntitiesForEvents(ctx context.Context, eventIDs []string) ([]types.Entity, error) {
	var out []types.Entity
	for _, id := range eventIDs {
		out = append(out, g.entitiesForEvent[id]...)
	}
	return out, nil
}

func TestExpandDiscoversNewEntityAcrossHop(t *testing.T) {
	cfg := newTestConfig("seed query")
	cfg.QueryEmbedding = []float32{1, 0, 0, 0}
	cfg.HasQueryEmbedding = true
	cfg.Expand.MaxHops = 1
	cfg.Expand.EntitiesPerHop = 5
	cfg.Expand.MinEventsPerHop = 1
	cfg.Expand.EventSimilarityThreshold = 0.5

	graph := &expandGraphRepo{
		eventsForFrontier: map[string][]types.Event{
			"seed": {{ID: "ev1", Title: "co-occurrence event"}},
		},
		entitiesForEvent: map[string][]types.Entity{
			"ev1": {
				{ID: "seed", DisplayName: "Seed", Type: "topic"},
				{ID: "new", DisplayName: "New", Type: "topic"},
			},
		},
	}
	events := &fakeEventVectorRepo{vectors: map[string]interfaces.EventVectors{
		"ev1": {ContentVector: []float32{1, 0, 0, 0}},
	}}

	expander := NewExpander(graph, events, clue.NewTracker(cfg))
	recall := &RecallResult{KeyFinal: []types.RecalledEntity{
		{EntityID: "seed", Name: "Seed", Type: "topic", Weight: 1.0, Hop: 0, Steps: []int{1}},
	}}

	result, err := expander.Expand(context.Background(), cfg, recall)
	require.NoError(t, err)

	ids := make(map[string]types.RecalledEntity)
	for _, e := range result.KeyFinal {
		ids[e.EntityID] = e
	}
	require.Contains(t, ids, "seed")
	require.Contains(t, ids, "new")
	assert.Equal(t, 1, ids["new"].Hop)
	assert.Equal(t, []int{2}, ids["new"].Steps)
	assert.Equal(t, "seed", ids["new"].ParentEntityID)
}

func TestExpandIsNoOpWhenDisabled(t *testing.T) {
	cfg := newTestConfig("q")
	cfg.Expand.Enabled = false
	expander := NewExpander(&expandGraphRepo{}, &fakeEventVectorRepo{}, clue.NewTracker(cfg))
	recall := &RecallResult{KeyFinal: []types.RecalledEntity{{EntityID: "seed", Weight: 1}}}

	result, err := expander.Expand(context.Background(), cfg, recall)
	require.NoError(t, err)
	assert.Equal(t, recall.KeyFinal, result.KeyFinal)
}
