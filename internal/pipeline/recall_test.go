package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clueweave/clueweave/internal/clue"
	"github.com/clueweave/clueweave/internal/models/chat"
	"github.com/clueweave/clueweave/internal/models/embedding"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

// fakeEntityVectorRepo returns a fixed hit list regardless of the query
// vector, so tests can focus on threshold/dedup/truncate logic.
type fakeEntityVectorRepo struct {
	hits []interfaces.ScoredEntity
}

func (f *fakeEntityVectorRepo) SearchByVector(ctx context.Context, sourceConfigIDs []string, queryVector []float32, topK, candidates int) ([]interfaces.ScoredEntity, error) {
	return f.hits, nil
}
func (f *fakeEntityVectorRepo) Upsert(ctx context.Context, entity types.Entity, vector []float32) error {
	return nil
}
func (f *fakeEntityVectorRepo) DeleteBySourceConfigIDs(ctx context.Context, sourceConfigIDs []string) error {
	return nil
}

type fakeEventVectorRepo struct {
	hits    []interfaces.ScoredEvent
	vectors map[string]interfaces.EventVectors
}

func (f *fakeEventVectorRepo) SearchByVector(ctx context.Context, sourceConfigIDs []string, queryVector []float32, topK, candidates int) ([]interfaces.ScoredEvent, error) {
	return f.hits, nil
}
func (f *fakeEventVectorRepo) GetVectorsByIDs(ctx context.Context, ids []string) (map[string]interfaces.EventVectors, error) {
	out := make(map[string]interfaces.EventVectors, len(ids))
	for _, id := range ids {
		if v, ok := f.vectors[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}
func (f *fakeEventVectorRepo) Upsert(ctx context.Context, event types.Event, titleVector, contentVector []float32) error {
	return nil
}
func (f *fakeEventVectorRepo) DeleteBySourceConfigIDs(ctx context.Context, sourceConfigIDs []string) error {
	return nil
}

// fakeGraphRepo implements just enough of EntityGraphRepo for Recall:
// a fixed entity->event join table and a default entity type registry.
type fakeGraphRepo struct {
	eventsByEntity map[string][]types.Event
}

func (f *fakeGraphRepo) GetEntityByID(ctx context.Context, id string) (*types.Entity, error) { return nil, nil }
func (f *fakeGraphRepo) FindEntitiesByName(ctx context.Context, sourceConfigIDs []string, normalizedName, entityType string) ([]types.Entity, error) {
	return nil, nil
}
func (f *fakeGraphRepo) UpsertEntity(ctx context.Context, entity *types.Entity) error { return nil }
func (f *fakeGraphRepo) GetEventByID(ctx context.Context, id string) (*types.Event, error) { return nil, nil }
func (f *fakeGraphRepo) GetEventsByIDs(ctx context.Context, ids []string) ([]types.Event, error) {
	return nil, nil
}
func (f *fakeGraphRepo) EventsForEntities(ctx context.Context, sourceConfigIDs []string, entityIDs []string) ([]types.Event, error) {
	var out []types.Event
	for _, id := range entityIDs {
		out = append(out, f.eventsByEntity[id]...)
	}
	return out, nil
}
func (f *fakeGraphRepo) EntitiesForEvents(ctx context.Context, eventIDs []string) ([]types.Entity, error) {
	return nil, nil
}
func (f *fakeGraphRepo) EntityCooccurrenceCounts(ctx context.Context, entityIDs, eventIDs []string) (map[string]int, error) {
	return nil, nil
}
func (f *fakeGraphRepo) GetChunkByID(ctx context.Context, id string) (*types.Chunk, error) { return nil, nil }
func (f *fakeGraphRepo) GetChunksByIDs(ctx context.Context, ids []string) ([]types.Chunk, error) {
	return nil, nil
}
func (f *fakeGraphRepo) ChunksForEvents(ctx context.Context, eventIDs []string) (map[string]types.Chunk, error) {
	return nil, nil
}
func (f *fakeGraphRepo) SearchEventsByKeywords(ctx context.Context, sourceConfigIDs []string, tokens []string, limit int) ([]types.Event, error) {
	return nil, nil
}
func (f *fakeGraphRepo) GetEntityTypes(ctx context.Context, sourceConfigID string) ([]types.EntityType, error) {
	return types.DefaultEntityTypes(), nil
}

type fakeEmbedder struct {
	dim int
}

func (f *fakeEmbedder) Generate(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dim), nil
}
func (f *fakeEmbedder) BatchGenerate(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
	}
	return out, nil
}
func (f *fakeEmbedder) BatchGenerateWithPool(ctx context.Context, client embedding.EmbeddingClient, texts []string) ([][]float32, error) {
	return f.BatchGenerate(ctx, texts)
}
func (f *fakeEmbedder) Dimensions() int  { return f.dim }
func (f *fakeEmbedder) ModelName() string { return "fake" }

// fakeChatClient always fails ChatWithSchema, forcing the keyword
// fallback — Recall must still produce a usable attribute set.
type fakeChatClient struct{}

func (fakeChatClient) Chat(ctx context.Context, messages []chat.Message, opts *chat.Options) (*chat.Response, error) {
	return nil, errors.New("not used in these tests")
}
func (fakeChatClient) ChatWithSchema(ctx context.Context, messages []chat.Message, schema map[string]any, opts *chat.Options) (string, error) {
	return "", errors.New("llm unavailable")
}
func (fakeChatClient) ModelName() string { return "fake-chat" }

func newTestConfig(query string) *types.SearchConfig {
	cfg := &types.SearchConfig{Query: query, SourceConfigIDs: []string{"scope-1"}}
	cfg.EnsureDefaults()
	return cfg
}

func TestFastModeFiltersByThresholdAndDedupes(t *testing.T) {
	entities := &fakeEntityVectorRepo{hits: []interfaces.ScoredEntity{
		{Entity: types.Entity{ID: "e1", Type: "topic", DisplayName: "AI"}, Similarity: 0.9},
		{Entity: types.Entity{ID: "e1", Type: "topic", DisplayName: "AI"}, Similarity: 0.95}, // duplicate id, lower rank after sort but first wins by sort order
		{Entity: types.Entity{ID: "e2", Type: "person", DisplayName: "Bob"}, Similarity: 0.5}, // below person threshold 0.75
	}}
	graph := &fakeGraphRepo{}
	cfg := newTestConfig("ai research")
	cfg.Recall.UseFastMode = true
	r := NewRecaller(entities, &fakeEventVectorRepo{}, graph, &fakeEmbedder{dim: 4}, fakeChatClient{}, clue.NewTracker(cfg))

	result, err := r.Recall(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, result.KeyFinal, 1)
	assert.Equal(t, "e1", result.KeyFinal[0].EntityID)
}

func TestFullModeFallsBackToKeywordExtractionOnLLMFailure(t *testing.T) {
	cfg := newTestConfig("tell me about AI and 科技 innovation")
	cfg.Recall.UseFastMode = false

	entities := &fakeEntityVectorRepo{hits: []interfaces.ScoredEntity{
		{Entity: types.Entity{ID: "topic-ai", Type: "topic", DisplayName: "AI"}, Similarity: 0.8},
	}}
	events := &fakeEventVectorRepo{hits: []interfaces.ScoredEvent{
		{Event: types.Event{ID: "ev1", Title: "AI breakthrough"}, Similarity: 0.7},
	}}
	graph := &fakeGraphRepo{eventsByEntity: map[string][]types.Event{
		"topic-ai": {{ID: "ev1", Title: "AI breakthrough", Category: "tech"}},
	}}

	r := NewRecaller(entities, events, graph, &fakeEmbedder{dim: 4}, fakeChatClient{}, clue.NewTracker(cfg))
	result, err := r.Recall(context.Background(), cfg)
	require.NoError(t, err)

	require.NotEmpty(t, result.ExtractedAttributes)
	require.NotEmpty(t, result.KeyFinal)
	assert.Equal(t, "topic-ai", result.KeyFinal[0].EntityID)
	assert.Equal(t, []int{1}, result.KeyFinal[0].Steps)

	var sawFinalQueryToEntity bool
	for _, c := range cfg.AllClues {
		if c.Stage == types.StageRecall && c.DisplayLevel == types.DisplayLevelFinal && c.To.ID == "topic-ai" {
			sawFinalQueryToEntity = true
		}
	}
	assert.True(t, sawFinalQueryToEntity, "expected a final-level query->entity clue for the selected entity")
}
