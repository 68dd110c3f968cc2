// Package postgres adapts the teacher's gorm/pgvector retriever
// repository (internal/application/repository/retriever/postgres) to
// the entity↔event graph and the pgvector fallback vector store.
package postgres

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clueweave/clueweave/internal/logger"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

// GraphRepo implements interfaces.EntityGraphRepo over the relational
// entity/source_event/event_entity/source_chunk tables, grounded on
// the join shape of the teacher's pgRepository (pgRepository.Retrieve
// and friends in retriever/postgres/repository.go), generalized from a
// single "embeddings" table to the entity↔event graph this module's
// domain actually needs.
type GraphRepo struct {
	db *gorm.DB
}

// NewGraphRepo wires a GraphRepo.
func NewGraphRepo(db *gorm.DB) *GraphRepo {
	logger.GetLogger(context.Background()).Info("[Postgres] Initializing entity/event graph repository")
	return &GraphRepo{db: db}
}

var _ interfaces.EntityGraphRepo = (*GraphRepo)(nil)

func (r *GraphRepo) GetEntityByID(ctx context.Context, id string) (*types.Entity, error) {
	var entity types.Entity
	err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entity, nil
}

func (r *GraphRepo) FindEntitiesByName(
	ctx context.Context, sourceConfigIDs []string, normalizedName string, entityType string,
) ([]types.Entity, error) {
	q := r.db.WithContext(ctx).
		Where("source_scope_id IN ?", sourceConfigIDs).
		Where("normalized_name = ?", normalizedName)
	if entityType != "" {
		q = q.Where("type = ?", entityType)
	}
	var entities []types.Entity
	if err := q.Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

// UpsertEntity lowercases and trims NormalizedName, then matches on
// (source_scope_id, type, normalized_name): an existing row is updated
// in place (its id is preserved), a new one is created with whatever id
// the caller set.
func (r *GraphRepo) UpsertEntity(ctx context.Context, entity *types.Entity) error {
	entity.NormalizedName = strings.ToLower(strings.TrimSpace(entity.NormalizedName))
	var existing types.Entity
	err := r.db.WithContext(ctx).
		Where("source_scope_id = ? AND type = ? AND normalized_name = ?",
			entity.SourceScopeID, entity.Type, entity.NormalizedName).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entity).Error
	case err != nil:
		return err
	default:
		entity.ID = existing.ID
		return r.db.WithContext(ctx).Save(entity).Error
	}
}

func (r *GraphRepo) GetEventByID(ctx context.Context, id string) (*types.Event, error) {
	var event types.Event
	err := r.db.WithContext(ctx).First(&event, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *GraphRepo) GetEventsByIDs(ctx context.Context, ids []string) ([]types.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var events []types.Event
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// EventsForEntities walks the entity->event_entity->source_event join,
// scoped to sourceConfigIDs, deduping naturally via the event's primary
// key in the result set.
func (r *GraphRepo) EventsForEntities(
	ctx context.Context, sourceConfigIDs []string, entityIDs []string,
) ([]types.Event, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	var events []types.Event
	err := r.db.WithContext(ctx).
		Joins("JOIN event_entity ON event_entity.event_id = source_event.id").
		Where("event_entity.entity_id IN ?", entityIDs).
		Where("source_event.source_scope_id IN ?", sourceConfigIDs).
		Group("source_event.id").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *GraphRepo) EntitiesForEvents(ctx context.Context, eventIDs []string) ([]types.Entity, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}
	var entities []types.Entity
	err := r.db.WithContext(ctx).
		Joins("JOIN event_entity ON event_entity.entity_id = entity.id").
		Where("event_entity.event_id IN ?", eventIDs).
		Group("entity.id").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return entities, nil
}

// EntityCooccurrenceCounts counts, per entity id, how many of eventIDs
// it is linked to via event_entity — the raw count behind Event
// PageRank's entity-edge weight.
func (r *GraphRepo) EntityCooccurrenceCounts(
	ctx context.Context, entityIDs []string, eventIDs []string,
) (map[string]int, error) {
	if len(entityIDs) == 0 || len(eventIDs) == 0 {
		return map[string]int{}, nil
	}
	var rows []struct {
		EntityID string
		Count    int
	}
	err := r.db.WithContext(ctx).Model(&types.EventEntity{}).
		Select("entity_id, count(*) as count").
		Where("entity_id IN ? AND event_id IN ?", entityIDs, eventIDs).
		Group("entity_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.EntityID] = row.Count
	}
	return out, nil
}

func (r *GraphRepo) GetChunkByID(ctx context.Context, id string) (*types.Chunk, error) {
	var chunk types.Chunk
	err := r.db.WithContext(ctx).First(&chunk, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chunk, nil
}

func (r *GraphRepo) GetChunksByIDs(ctx context.Context, ids []string) ([]types.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var chunks []types.Chunk
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

// ChunksForEvents maps each event to the chunk named by its ChunkID
// column, skipping events whose chunk no longer exists.
func (r *GraphRepo) ChunksForEvents(ctx context.Context, eventIDs []string) (map[string]types.Chunk, error) {
	if len(eventIDs) == 0 {
		return map[string]types.Chunk{}, nil
	}
	var rows []struct {
		EventID string
		types.Chunk
	}
	err := r.db.WithContext(ctx).Table("source_event").
		Select("source_event.id AS event_id, source_chunk.*").
		Joins("JOIN source_chunk ON source_chunk.id = source_event.chunk_id").
		Where("source_event.id IN ?", eventIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.Chunk, len(rows))
	for _, row := range rows {
		out[row.EventID] = row.Chunk
	}
	return out, nil
}

// SearchEventsByKeywords returns a keyword candidate pool: any event
// whose title or content contains at least one token,
// case-insensitively. It is a filter, not a ranker; no BM25 scoring
// happens here.
func (r *GraphRepo) SearchEventsByKeywords(
	ctx context.Context, sourceConfigIDs []string, tokens []string, limit int,
) ([]types.Event, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	conds := make([]string, 0, len(tokens))
	args := make([]any, 0, len(tokens)*2)
	for _, token := range tokens {
		conds = append(conds, "(title ILIKE ? OR content ILIKE ?)")
		pattern := "%" + token + "%"
		args = append(args, pattern, pattern)
	}
	var events []types.Event
	err := r.db.WithContext(ctx).
		Where("source_scope_id IN ?", sourceConfigIDs).
		Where(strings.Join(conds, " OR "), args...).
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// GetEntityTypes returns the scope's custom entity types, falling back
// to types.DefaultEntityTypes() when the scope defines none of its own.
func (r *GraphRepo) GetEntityTypes(ctx context.Context, sourceConfigID string) ([]types.EntityType, error) {
	var entityTypes []types.EntityType
	err := r.db.WithContext(ctx).Where("source_scope_id = ?", sourceConfigID).Find(&entityTypes).Error
	if err != nil {
		return nil, err
	}
	if len(entityTypes) == 0 {
		return types.DefaultEntityTypes(), nil
	}
	return entityTypes, nil
}
