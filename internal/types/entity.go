// Package types defines the core data structures shared across the
// retrieval engine: entities, events, chunks, the clue graph, and the
// SearchConfig that threads state through the Recall/Expand/Rerank pipeline.
package types

import "time"

// Entity is a typed noun drawn from a document or conversation — a
// person, location, time, topic, action, tag, or user-defined type.
// The triple (SourceScopeID, Type, NormalizedName) is unique.
// GraphRepo.UpsertEntity lowercases and trims NormalizedName before it
// is persisted; FindEntitiesByName compares the name exactly as passed.
type Entity struct {
	ID             string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	SourceScopeID  string     `json:"source_scope_id" gorm:"index:idx_entity_scope_type_name,priority:1"`
	Type           string     `json:"type" gorm:"index:idx_entity_scope_type_name,priority:2"`
	NormalizedName string     `json:"normalized_name" gorm:"index:idx_entity_scope_type_name,priority:3"`
	DisplayName    string     `json:"display_name"`
	Description    string     `json:"description"`
	ValueKind      ValueKind  `json:"value_kind,omitempty"`
	ValueRaw       string     `json:"value_raw,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName pins the gorm table name regardless of package name changes.
func (Entity) TableName() string { return "entity" }

// ValueKind tags the optional typed value an entity may carry.
type ValueKind string

const (
	ValueKindNone     ValueKind = ""
	ValueKindInt      ValueKind = "int"
	ValueKindFloat    ValueKind = "float"
	ValueKindDatetime ValueKind = "datetime"
	ValueKindBool     ValueKind = "bool"
	ValueKindEnum     ValueKind = "enum"
	ValueKindRaw      ValueKind = "raw"
)

// EntityType defines an entity type tag: its default weight (used when
// propagating recall confidence), its similarity threshold (the KNN
// score floor below which a hit is discarded), and whether it is one
// of the built-in defaults.
type EntityType struct {
	Tag                 string  `json:"tag" gorm:"type:varchar(32);primaryKey"`
	DisplayName         string  `json:"display_name"`
	DefaultWeight       float64 `json:"default_weight"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	IsDefault           bool    `json:"is_default"`
	SourceScopeID       string  `json:"source_scope_id,omitempty"`
}

func (EntityType) TableName() string { return "entity_type" }

// DefaultEntityTypes returns the fixed-order built-in entity types with
// their default weights and per-type similarity thresholds, exactly as
// spec.md §3 enumerates them: time, location, person, action, topic, tags.
func DefaultEntityTypes() []EntityType {
	return []EntityType{
		{Tag: "time", DisplayName: "Time", DefaultWeight: 1.0, SimilarityThreshold: 0.90, IsDefault: true},
		{Tag: "location", DisplayName: "Location", DefaultWeight: 1.0, SimilarityThreshold: 0.75, IsDefault: true},
		{Tag: "person", DisplayName: "Person", DefaultWeight: 1.0, SimilarityThreshold: 0.75, IsDefault: true},
		{Tag: "action", DisplayName: "Action", DefaultWeight: 1.5, SimilarityThreshold: 0.65, IsDefault: true},
		{Tag: "topic", DisplayName: "Topic", DefaultWeight: 1.8, SimilarityThreshold: 0.60, IsDefault: true},
		{Tag: "tags", DisplayName: "Tags", DefaultWeight: 0.5, SimilarityThreshold: 0.70, IsDefault: true},
	}
}
