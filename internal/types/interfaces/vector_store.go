// Package interfaces defines the repository and model-client contracts
// that internal/clue and internal/pipeline are written against, so the
// pipeline never imports a concrete store or LLM client directly.
package interfaces

import (
	"context"

	"github.com/clueweave/clueweave/internal/types"
)

// ScoredEntity is a KNN hit against the entity vector index: the entity
// itself plus its cosine similarity to the query embedding.
type ScoredEntity struct {
	Entity     types.Entity
	Similarity float64
}

// ScoredEvent is a KNN hit against the event vector index.
type ScoredEvent struct {
	Event      types.Event
	Similarity float64
}

// ScoredChunk is a KNN hit against the chunk vector index.
type ScoredChunk struct {
	Chunk      types.Chunk
	Similarity float64
}

// EntityVectorRepo is the KNN search surface over entity embeddings,
// used by Recall's fast mode and by full-mode step 2 (attribute→entity).
type EntityVectorRepo interface {
	// SearchByVector returns up to topK entities scoped to sourceConfigIDs,
	// ranked by cosine similarity to queryVector, restricted to the given
	// candidate pool size before ranking (vectorCandidates).
	SearchByVector(
		ctx context.Context,
		sourceConfigIDs []string,
		queryVector []float32,
		topK int,
		candidates int,
	) ([]ScoredEntity, error)

	// Upsert indexes or re-indexes an entity's embedding.
	Upsert(ctx context.Context, entity types.Entity, vector []float32) error

	// DeleteBySourceConfigIDs removes every entity embedding scoped to
	// the given source configs.
	DeleteBySourceConfigIDs(ctx context.Context, sourceConfigIDs []string) error
}

// EventVectors carries the raw title/content embeddings fetched for a
// batch of events — the vectors the RRF reranker's embedding leg needs,
// matching spec.md §4.7's get_events_by_ids contract ("returning source
// docs including both title_vector and content_vector").
type EventVectors struct {
	TitleVector   []float32
	ContentVector []float32
}

// EventVectorRepo is the KNN search surface over event embeddings, used
// by the RRF reranker's embedding leg and by BM25+embedding fusion.
type EventVectorRepo interface {
	SearchByVector(
		ctx context.Context,
		sourceConfigIDs []string,
		queryVector []float32,
		topK int,
		candidates int,
	) ([]ScoredEvent, error)

	// GetVectorsByIDs batch-fetches title/content vectors for event ids.
	// An id with no indexed title or content vector is simply absent
	// from (or partially present in) the result — a missing vector is
	// not an error, the caller treats it as a zero contribution.
	GetVectorsByIDs(ctx context.Context, ids []string) (map[string]EventVectors, error)

	Upsert(ctx context.Context, event types.Event, titleVector, contentVector []float32) error

	DeleteBySourceConfigIDs(ctx context.Context, sourceConfigIDs []string) error
}

// ChunkVectorRepo is the KNN search surface over chunk embeddings, used
// when SearchConfig.ReturnType is PARAGRAPH, by the chunk PageRank
// reranker (an RRF request for paragraphs also falls back to it).
type ChunkVectorRepo interface {
	SearchByVector(
		ctx context.Context,
		sourceConfigIDs []string,
		queryVector []float32,
		topK int,
		candidates int,
	) ([]ScoredChunk, error)

	Upsert(ctx context.Context, chunk types.Chunk, vector []float32) error

	DeleteBySourceConfigIDs(ctx context.Context, sourceConfigIDs []string) error
}
