package interfaces

import (
	"context"

	"github.com/clueweave/clueweave/internal/types"
)

// EntityGraphRepo is the relational surface Recall/Expand/Rerank walk:
// entity lookup by name/type, the entity→event and event→entity joins,
// and a keyword candidate lookup.
// It is backed by ordinary relational tables (source_event, entity,
// event_entity, source_chunk) rather than a graph database — the
// "graph" is the join between entity and event through event_entity.
type EntityGraphRepo interface {
	// GetEntityByID fetches one entity, or (nil, nil) if it doesn't exist.
	GetEntityByID(ctx context.Context, id string) (*types.Entity, error)

	// FindEntitiesByName looks up entities by normalized name within the
	// given source scopes, optionally restricted to a type.
	FindEntitiesByName(
		ctx context.Context, sourceConfigIDs []string, normalizedName string, entityType string,
	) ([]types.Entity, error)

	// UpsertEntity inserts or updates an entity, matching on
	// (source_config_id, type, normalized_name).
	UpsertEntity(ctx context.Context, entity *types.Entity) error

	// GetEventByID fetches one event, or (nil, nil) if it doesn't exist.
	GetEventByID(ctx context.Context, id string) (*types.Event, error)

	// GetEventsByIDs batch-fetches events, preserving no particular order.
	GetEventsByIDs(ctx context.Context, ids []string) ([]types.Event, error)

	// EventsForEntities returns every event linked to any of the given
	// entity ids, scoped to sourceConfigIDs — the entity→event expansion
	// edge.
	EventsForEntities(ctx context.Context, sourceConfigIDs []string, entityIDs []string) ([]types.Event, error)

	// EntitiesForEvents returns every entity linked to any of the given
	// event ids — the event→entity expansion edge, and the edge Event
	// PageRank's entity-edge weighting walks.
	EntitiesForEvents(ctx context.Context, eventIDs []string) ([]types.Entity, error)

	// EntityCooccurrenceCounts returns, for a set of candidate entity ids,
	// how many of the given events each one co-occurs in — the raw count
	// Event PageRank's entity-edge weight (κ × count) is derived from.
	EntityCooccurrenceCounts(ctx context.Context, entityIDs []string, eventIDs []string) (map[string]int, error)

	// GetChunkByID fetches one chunk, or (nil, nil) if it doesn't exist.
	GetChunkByID(ctx context.Context, id string) (*types.Chunk, error)

	// GetChunksByIDs batch-fetches chunks.
	GetChunksByIDs(ctx context.Context, ids []string) ([]types.Chunk, error)

	// ChunksForEvents maps each event to the chunk it was extracted
	// from, following Event.ChunkID.
	ChunksForEvents(ctx context.Context, eventIDs []string) (map[string]types.Chunk, error)

	// SearchEventsByKeywords runs a tokenized keyword search over event
	// title/content within scope; it does no BM25 scoring. No pipeline
	// stage calls it: the RRF reranker's BM25 leg scores the events it
	// already holds.
	SearchEventsByKeywords(ctx context.Context, sourceConfigIDs []string, tokens []string, limit int) ([]types.Event, error)

	// GetEntityTypes returns the entity type registry for a scope,
	// falling back to DefaultEntityTypes() when the scope defines none.
	GetEntityTypes(ctx context.Context, sourceConfigID string) ([]types.EntityType, error)
}
