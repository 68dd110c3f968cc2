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

// chunkGraphRepo extends pagerankGraphRepo with the event->chunk join
// ChunksForEvents exposes.
type chunkGraphRepo struct {
	pagerankGraphRepo
	chunkByEvent map[string]types.Chunk
}

func (g *chunkGraphRepo) ChunksForEvents(ctx context.Context, eventIDs []string) (map[string]types.Chunk, error) {
	out := make(map[string]types.Chunk, len(eventIDs))
	for _, id := range eventIDs {
		if c, ok := g.chunkByEvent[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

type fakeChunkVectorRepo struct {
	hits []interfaces.ScoredChunk
}

func (f *fakeChunkVectorRepo) SearchByVector(ctx context.Context, sourceConfigIDs []string, queryVector []float32, topK, candidates int) ([]interfaces.ScoredChunk, error) {
	return f.hits, nil
}
func (f *fakeChunkVectorRepo) Upsert(ctx context.Context, chunk types.Chunk, vector []float32) error {
	return nil
}
func (f *fakeChunkVectorRepo) DeleteBySourceConfigIDs(ctx context.Context, sourceConfigIDs []string) error {
	return nil
}

func TestChunkPageRankWalksEventToChunk(t *testing.T) {
	cfg := newTestConfig("seed query")
	cfg.QueryEmbedding = []float32{1, 0, 0, 0}
	cfg.HasQueryEmbedding = true
	cfg.Rerank.ScoreThreshold = 0.1
	cfg.Rerank.MaxResults = 5

	ev1 := types.Event{ID: "ev1"}
	chunk1 := types.Chunk{ID: "chunk1", Heading: "intro", Content: "seed content"}

	graph := &chunkGraphRepo{
		pagerankGraphRepo: pagerankGraphRepo{
			eventsByEntity:   map[string][]types.Event{"seed-entity": {ev1}},
			entitiesForEvent: map[string][]types.Entity{"ev1": {{ID: "seed-entity", DisplayName: "seed"}}},
		},
		chunkByEvent: map[string]types.Chunk{"ev1": chunk1},
	}
	chunks := &fakeChunkVectorRepo{hits: []interfaces.ScoredChunk{{Chunk: chunk1, Similarity: 0.8}}}
	keyFinal := []types.RecalledEntity{{EntityID: "seed-entity", Name: "seed", Weight: 1.0}}

	reranker := NewChunkPageRankReranker(graph, chunks, clue.NewTracker(cfg))
	ranked, err := reranker.Rerank(context.Background(), cfg, keyFinal)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, "chunk1", ranked[0].Chunk.ID)

	var sawEntityToChunkClue bool
	for _, c := range cfg.AllClues {
		if c.Stage == types.StageRerank && c.To.Type == types.NodeTypeSection && c.From.ID == "seed-entity" {
			sawEntityToChunkClue = true
		}
	}
	assert.True(t, sawEntityToChunkClue, "expected an entity->section clue for the chunk")
}

func TestChunkPageRankDedupesByChunkID(t *testing.T) {
	cfg := newTestConfig("seed query")
	cfg.QueryEmbedding = []float32{1, 0, 0, 0}
	cfg.HasQueryEmbedding = true
	cfg.Rerank.ScoreThreshold = 0.1

	// Two events extracted from the same chunk — the chunk must appear
	// once in the ranked output, not twice.
	ev1 := types.Event{ID: "ev1"}
	ev2 := types.Event{ID: "ev2"}
	chunk1 := types.Chunk{ID: "chunk1", Heading: "intro", Content: "seed content"}

	graph := &chunkGraphRepo{
		pagerankGraphRepo: pagerankGraphRepo{
			eventsByEntity: map[string][]types.Event{"seed-entity": {ev1, ev2}},
			entitiesForEvent: map[string][]types.Entity{
				"ev1": {{ID: "seed-entity", DisplayName: "seed"}},
				"ev2": {{ID: "seed-entity", DisplayName: "seed"}},
			},
		},
		chunkByEvent: map[string]types.Chunk{"ev1": chunk1, "ev2": chunk1},
	}
	chunks := &fakeChunkVectorRepo{hits: []interfaces.ScoredChunk{{Chunk: chunk1, Similarity: 0.8}}}
	keyFinal := []types.RecalledEntity{{EntityID: "seed-entity", Name: "seed", Weight: 1.0}}

	reranker := NewChunkPageRankReranker(graph, chunks, clue.NewTracker(cfg))
	ranked, err := reranker.Rerank(context.Background(), cfg, keyFinal)
	require.NoError(t, err)
	require.Len(t, ranked, 1, "the shared chunk must be deduplicated by chunk_id")
}
