package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clueweave/clueweave/internal/logger"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

// The three vector rows below mirror the teacher's single generic
// pgVector table (retriever/postgres/structs.go) but split one table
// per embedding kind, since entities/events/chunks carry different
// scoring needs (events alone carry two vectors). This is the pgvector
// fallback vector store — the primary is Elasticsearch
// (internal/repository/elasticsearch); this repo exists for
// deployments that run without an ES cluster.

type entityVectorRow struct {
	EntityID      string              `gorm:"column:entity_id;primaryKey"`
	SourceScopeID string              `gorm:"column:source_scope_id;index"`
	Dimension     int                 `gorm:"column:dimension;not null"`
	Embedding     pgvector.HalfVector `gorm:"column:embedding;not null"`
}

func (entityVectorRow) TableName() string { return "entity_vector" }

type eventVectorRow struct {
	EventID       string              `gorm:"column:event_id;primaryKey"`
	SourceScopeID string              `gorm:"column:source_scope_id;index"`
	Dimension     int                 `gorm:"column:dimension;not null"`
	TitleVector   pgvector.HalfVector `gorm:"column:title_vector"`
	ContentVector pgvector.HalfVector `gorm:"column:content_vector"`
}

func (eventVectorRow) TableName() string { return "event_vector" }

type chunkVectorRow struct {
	ChunkID       string              `gorm:"column:chunk_id;primaryKey"`
	SourceScopeID string              `gorm:"column:source_scope_id;index"`
	Dimension     int                 `gorm:"column:dimension;not null"`
	Embedding     pgvector.HalfVector `gorm:"column:embedding;not null"`
}

func (chunkVectorRow) TableName() string { return "chunk_vector" }

// EntityVectorRepo is the pgvector-backed fallback implementation of
// interfaces.EntityVectorRepo.
type EntityVectorRepo struct {
	db    *gorm.DB
	graph *GraphRepo
}

// NewEntityVectorRepo wires a pgvector EntityVectorRepo; graph resolves
// full Entity rows for the ids the vector query returns, since the
// vector table itself carries no display fields.
func NewEntityVectorRepo(db *gorm.DB, graph *GraphRepo) *EntityVectorRepo {
	return &EntityVectorRepo{db: db, graph: graph}
}

var _ interfaces.EntityVectorRepo = (*EntityVectorRepo)(nil)

func (r *EntityVectorRepo) SearchByVector(
	ctx context.Context, sourceConfigIDs []string, queryVector []float32, topK, candidates int,
) ([]interfaces.ScoredEntity, error) {
	dimension := len(queryVector)
	var rows []struct {
		EntityID string
		Score    float64
	}
	err := r.db.WithContext(ctx).Model(&entityVectorRow{}).
		Select(fmt.Sprintf(
			"entity_id, (1 - (embedding::halfvec(%d) <=> ?::halfvec)) as score", dimension,
		), pgvector.NewHalfVector(queryVector)).
		Where("source_scope_id IN ? AND dimension = ?", sourceConfigIDs, dimension).
		Order(clause.Expr{
			SQL:  fmt.Sprintf("embedding::halfvec(%d) <=> ?::halfvec", dimension),
			Vars: []interface{}{pgvector.NewHalfVector(queryVector)},
		}).
		Limit(candidates).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pgvector entity search: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, len(rows))
	scoreByID := make(map[string]float64, len(rows))
	for i, row := range rows {
		ids[i] = row.EntityID
		scoreByID[row.EntityID] = row.Score
	}
	entities, err := r.graph.GetEntitiesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("pgvector entity search: resolve entities: %w", err)
	}

	hits := make([]interfaces.ScoredEntity, 0, len(entities))
	for _, entity := range entities {
		hits = append(hits, interfaces.ScoredEntity{Entity: entity, Similarity: scoreByID[entity.ID]})
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (r *EntityVectorRepo) Upsert(ctx context.Context, entity types.Entity, vector []float32) error {
	row := entityVectorRow{
		EntityID:      entity.ID,
		SourceScopeID: entity.SourceScopeID,
		Dimension:     len(vector),
		Embedding:     pgvector.NewHalfVector(vector),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r *EntityVectorRepo) DeleteBySourceConfigIDs(ctx context.Context, sourceConfigIDs []string) error {
	result := r.db.WithContext(ctx).Where("source_scope_id IN ?", sourceConfigIDs).Delete(&entityVectorRow{})
	if result.Error != nil {
		return result.Error
	}
	logger.GetLogger(ctx).Infof("[Postgres] Deleted %d entity vectors for %v", result.RowsAffected, sourceConfigIDs)
	return nil
}

// GetEntitiesByIDs is a small helper the vector repos use to resolve
// full rows for a set of ids returned by a vector-only query; it isn't
// part of interfaces.EntityGraphRepo since Recall/Expand/Rerank never
// need it directly (EventsForEntities/EntitiesForEvents cover them).
func (r *GraphRepo) GetEntitiesByIDs(ctx context.Context, ids []string) ([]types.Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var entities []types.Entity
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

// EventVectorRepo is the pgvector-backed fallback implementation of
// interfaces.EventVectorRepo, carrying both title and content vectors
// per spec.md §4.5/§4.7.
type EventVectorRepo struct {
	db    *gorm.DB
	graph *GraphRepo
}

func NewEventVectorRepo(db *gorm.DB, graph *GraphRepo) *EventVectorRepo {
	return &EventVectorRepo{db: db, graph: graph}
}

var _ interfaces.EventVectorRepo = (*EventVectorRepo)(nil)

// SearchByVector ranks events by similarity to the content vector
// only; the title vector does not enter the score (unlike the
// Elasticsearch repo's 0.2/0.8 title/content blend).
func (r *EventVectorRepo) SearchByVector(
	ctx context.Context, sourceConfigIDs []string, queryVector []float32, topK, candidates int,
) ([]interfaces.ScoredEvent, error) {
	dimension := len(queryVector)
	var rows []struct {
		EventID string
		Score   float64
	}
	err := r.db.WithContext(ctx).Model(&eventVectorRow{}).
		Select(fmt.Sprintf(
			"event_id, (1 - (content_vector::halfvec(%d) <=> ?::halfvec)) as score", dimension,
		), pgvector.NewHalfVector(queryVector)).
		Where("source_scope_id IN ? AND dimension = ?", sourceConfigIDs, dimension).
		Order(clause.Expr{
			SQL:  fmt.Sprintf("content_vector::halfvec(%d) <=> ?::halfvec", dimension),
			Vars: []interface{}{pgvector.NewHalfVector(queryVector)},
		}).
		Limit(candidates).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pgvector event search: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, len(rows))
	scoreByID := make(map[string]float64, len(rows))
	for i, row := range rows {
		ids[i] = row.EventID
		scoreByID[row.EventID] = row.Score
	}
	events, err := r.graph.GetEventsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("pgvector event search: resolve events: %w", err)
	}

	hits := make([]interfaces.ScoredEvent, 0, len(events))
	for _, event := range events {
		hits = append(hits, interfaces.ScoredEvent{Event: event, Similarity: scoreByID[event.ID]})
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// GetVectorsByIDs batch-fetches title/content vectors — the surface
// the RRF reranker's embedding leg depends on (spec.md §4.7).
func (r *EventVectorRepo) GetVectorsByIDs(ctx context.Context, ids []string) (map[string]interfaces.EventVectors, error) {
	if len(ids) == 0 {
		return map[string]interfaces.EventVectors{}, nil
	}
	var rows []eventVectorRow
	if err := r.db.WithContext(ctx).Where("event_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]interfaces.EventVectors, len(rows))
	for _, row := range rows {
		out[row.EventID] = interfaces.EventVectors{
			TitleVector:   row.TitleVector.Slice(),
			ContentVector: row.ContentVector.Slice(),
		}
	}
	return out, nil
}

func (r *EventVectorRepo) Upsert(ctx context.Context, event types.Event, titleVector, contentVector []float32) error {
	dimension := len(contentVector)
	if dimension == 0 {
		dimension = len(titleVector)
	}
	row := eventVectorRow{
		EventID:       event.ID,
		SourceScopeID: event.SourceScopeID,
		Dimension:     dimension,
		TitleVector:   pgvector.NewHalfVector(titleVector),
		ContentVector: pgvector.NewHalfVector(contentVector),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r *EventVectorRepo) DeleteBySourceConfigIDs(ctx context.Context, sourceConfigIDs []string) error {
	result := r.db.WithContext(ctx).Where("source_scope_id IN ?", sourceConfigIDs).Delete(&eventVectorRow{})
	if result.Error != nil {
		return result.Error
	}
	logger.GetLogger(ctx).Infof("[Postgres] Deleted %d event vectors for %v", result.RowsAffected, sourceConfigIDs)
	return nil
}

// ChunkVectorRepo is the pgvector-backed fallback implementation of
// interfaces.ChunkVectorRepo.
type ChunkVectorRepo struct {
	db    *gorm.DB
	graph *GraphRepo
}

func NewChunkVectorRepo(db *gorm.DB, graph *GraphRepo) *ChunkVectorRepo {
	return &ChunkVectorRepo{db: db, graph: graph}
}

var _ interfaces.ChunkVectorRepo = (*ChunkVectorRepo)(nil)

func (r *ChunkVectorRepo) SearchByVector(
	ctx context.Context, sourceConfigIDs []string, queryVector []float32, topK, candidates int,
) ([]interfaces.ScoredChunk, error) {
	dimension := len(queryVector)
	var rows []struct {
		ChunkID string
		Score   float64
	}
	err := r.db.WithContext(ctx).Model(&chunkVectorRow{}).
		Select(fmt.Sprintf(
			"chunk_id, (1 - (embedding::halfvec(%d) <=> ?::halfvec)) as score", dimension,
		), pgvector.NewHalfVector(queryVector)).
		Where("source_scope_id IN ? AND dimension = ?", sourceConfigIDs, dimension).
		Order(clause.Expr{
			SQL:  fmt.Sprintf("embedding::halfvec(%d) <=> ?::halfvec", dimension),
			Vars: []interface{}{pgvector.NewHalfVector(queryVector)},
		}).
		Limit(candidates).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pgvector chunk search: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, len(rows))
	scoreByID := make(map[string]float64, len(rows))
	for i, row := range rows {
		ids[i] = row.ChunkID
		scoreByID[row.ChunkID] = row.Score
	}
	chunks, err := r.graph.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("pgvector chunk search: resolve chunks: %w", err)
	}

	hits := make([]interfaces.ScoredChunk, 0, len(chunks))
	for _, chunk := range chunks {
		hits = append(hits, interfaces.ScoredChunk{Chunk: chunk, Similarity: scoreByID[chunk.ID]})
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (r *ChunkVectorRepo) Upsert(ctx context.Context, chunk types.Chunk, vector []float32) error {
	row := chunkVectorRow{
		ChunkID:       chunk.ID,
		SourceScopeID: chunk.SourceScopeID,
		Dimension:     len(vector),
		Embedding:     pgvector.NewHalfVector(vector),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

func (r *ChunkVectorRepo) DeleteBySourceConfigIDs(ctx context.Context, sourceConfigIDs []string) error {
	result := r.db.WithContext(ctx).Where("source_scope_id IN ?", sourceConfigIDs).Delete(&chunkVectorRow{})
	if result.Error != nil {
		return result.Error
	}
	logger.GetLogger(ctx).Infof("[Postgres] Deleted %d chunk vectors for %v", result.RowsAffected, sourceConfigIDs)
	return nil
}
