package types

import "time"

// SourceType tags where an Event was extracted from.
type SourceType string

const (
	SourceTypeArticle SourceType = "ARTICLE"
	SourceTypeChat     SourceType = "CHAT"
)

// Event is a small structured fact extracted from a document or chat
// conversation: a title, summary, content, category, and (via
// EventEntity) a bag of typed entities.
type Event struct {
	ID            string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	SourceScopeID string     `json:"source_scope_id" gorm:"index:idx_event_scope"`
	SourceType    SourceType `json:"source_type"`
	SourceID      string     `json:"source_id"`
	ChunkID       string     `json:"chunk_id" gorm:"index:idx_event_chunk"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary"`
	Content       string     `json:"content"`
	Category      string     `json:"category"`
	Rank          int        `json:"rank"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	References    JSON       `json:"references,omitempty" gorm:"type:json"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Event) TableName() string { return "source_event" }

// EventEntity is the many-to-many link between an Event and the
// Entities it mentions. Weight defaults to 1.0 and is typically used
// unweighted; Recall/Expand derive their own weights from entity
// similarity rather than from this column.
type EventEntity struct {
	EventID  string  `json:"event_id" gorm:"primaryKey;index:idx_event_entity_event"`
	EntityID string  `json:"entity_id" gorm:"primaryKey;index:idx_event_entity_entity"`
	Weight   float64 `json:"weight" gorm:"default:1.0"`
}

func (EventEntity) TableName() string { return "event_entity" }

// Chunk is a contiguous text span from a document or chat window — the
// source a Event was extracted from, and the unit the Chunk PageRank
// reranker ultimately returns when SearchConfig.ReturnType is PARAGRAPH.
type Chunk struct {
	ID            string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	SourceID      string    `json:"source_id"`
	SourceScopeID string    `json:"source_config_id" gorm:"index:idx_chunk_scope"`
	Rank          int       `json:"rank"`
	Heading       string    `json:"heading"`
	Content       string    `json:"content"`
	References    JSON      `json:"references,omitempty" gorm:"type:json"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Chunk) TableName() string { return "source_chunk" }
