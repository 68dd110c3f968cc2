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

func TestEngineSearchDefaultsToEventPageRank(t *testing.T) {
	cfg := newTestConfig("seed query")
	cfg.Recall.UseFastMode = true
	cfg.Expand.Enabled = false

	ev1 := types.Event{ID: "ev1", Title: "seed"}
	entityGraph := &pagerankGraphRepo{
		eventsByEntity:   map[string][]types.Event{"seed-entity": {ev1}},
		entitiesForEvent: map[string][]types.Entity{"ev1": {{ID: "seed-entity", DisplayName: "seed"}}},
	}
	entities := &fakeEntityVectorRepo{hits: []interfaces.ScoredEntity{
		{Entity: types.Entity{ID: "seed-entity", Type: "topic", DisplayName: "seed"}, Similarity: 0.9},
	}}
	events := &fakeEventVectorRepo{hits: []interfaces.ScoredEvent{{Event: ev1, Similarity: 0.8}}}
	chunks := &fakeChunkVectorRepo{}
	tokenizer := numeric.NewTokenizer()
	defer tokenizer.Close()

	tracker := clue.NewTracker(cfg)
	recaller := NewRecaller(entities, events, entityGraph, &fakeEmbedder{dim: 4}, fakeChatClient{}, tracker)
	expander := NewExpander(entityGraph, events, tracker)
	eventPR := NewEventPageRankReranker(entityGraph, events, tracker)
	chunkPR := NewChunkPageRankReranker(&chunkGraphRepo{pagerankGraphRepo: *entityGraph}, chunks, tracker)
	rrf := NewRRFReranker(entityGraph, events, tokenizer, tracker)

	engine := NewEngine(recaller, expander, eventPR, chunkPR, rrf, tracker)
	resp, err := engine.Search(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, types.RerankStrategyPageRank, resp.Stats.Rerank.Strategy)
	assert.NotEmpty(t, resp.Events)
	assert.NotEmpty(t, resp.Clues)
	assert.False(t, resp.Stats.Rerank.FellBackToChunkPageRank)
}

func TestEngineSearchFallsBackToChunkPageRankForRRFParagraph(t *testing.T) {
	cfg := newTestConfig("seed query")
	cfg.Recall.UseFastMode = true
	cfg.Expand.Enabled = false
	cfg.Rerank.Strategy = types.RerankStrategyRRF
	cfg.ReturnType = types.ReturnTypeParagraph
	cfg.Rerank.ScoreThreshold = 0.1

	ev1 := types.Event{ID: "ev1", Title: "seed"}
	chunk1 := types.Chunk{ID: "chunk1", Heading: "intro", Content: "seed content"}
	entityGraph := &pagerankGraphRepo{
		eventsByEntity:   map[string][]types.Event{"seed-entity": {ev1}},
		entitiesForEvent: map[string][]types.Entity{"ev1": {{ID: "seed-entity", DisplayName: "seed"}}},
	}
	chunkGraph := &chunkGraphRepo{
		pagerankGraphRepo: *entityGraph,
		chunkByEvent:      map[string]types.Chunk{"ev1": chunk1},
	}
	entities := &fakeEntityVectorRepo{hits: []interfaces.ScoredEntity{
		{Entity: types.Entity{ID: "seed-entity", Type: "topic", DisplayName: "seed"}, Similarity: 0.9},
	}}
	events := &fakeEventVectorRepo{hits: []interfaces.ScoredEvent{{Event: ev1, Similarity: 0.8}}}
	chunks := &fakeChunkVectorRepo{hits: []interfaces.ScoredChunk{{Chunk: chunk1, Similarity: 0.8}}}
	tokenizer := numeric.NewTokenizer()
	defer tokenizer.Close()

	tracker := clue.NewTracker(cfg)
	recaller := NewRecaller(entities, events, entityGraph, &fakeEmbedder{dim: 4}, fakeChatClient{}, tracker)
	expander := NewExpander(entityGraph, events, tracker)
	eventPR := NewEventPageRankReranker(entityGraph, events, tracker)
	chunkPR := NewChunkPageRankReranker(chunkGraph, chunks, tracker)
	rrf := NewRRFReranker(entityGraph, events, tokenizer, tracker)

	engine := NewEngine(recaller, expander, eventPR, chunkPR, rrf, tracker)
	resp, err := engine.Search(context.Background(), cfg)
	require.NoError(t, err)

	require.NotEmpty(t, resp.Sections)
	assert.Equal(t, "chunk1", resp.Sections[0].ID)
	assert.True(t, resp.Stats.Rerank.FellBackToChunkPageRank, "RRF + PARAGRAPH must fall back to chunk PageRank")
	assert.Equal(t, types.RerankStrategyPageRank, resp.Stats.Rerank.Strategy)
}
