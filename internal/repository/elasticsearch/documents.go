// Package elasticsearch adapts the teacher's ES v8 typed-client
// retriever (internal/application/repository/retriever/elasticsearch/v8)
// into the three vector stores Recall/Rerank depend on: entities,
// events (title+content), and chunks.
package elasticsearch

// entityDoc is the Elasticsearch document shape for one entity's
// embedding, generalized from the teacher's single generic
// VectorEmbedding document (retriever/elasticsearch/structs.go) to
// carry an entity's display fields alongside its vector.
type entityDoc struct {
	EntityID       string    `json:"entity_id"`
	SourceScopeID  string    `json:"source_scope_id"`
	Type           string    `json:"type"`
	NormalizedName string    `json:"normalized_name"`
	DisplayName    string    `json:"display_name"`
	Description    string    `json:"description"`
	Embedding      []float32 `json:"embedding"`
}

// eventDoc carries both the title and content vectors spec.md's RRF
// reranker needs, unlike the teacher's one-vector-per-document model.
type eventDoc struct {
	EventID       string    `json:"event_id"`
	SourceScopeID string    `json:"source_scope_id"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	Content       string    `json:"content"`
	Category      string    `json:"category"`
	TitleVector   []float32 `json:"title_vector"`
	ContentVector []float32 `json:"content_vector"`
}

type chunkDoc struct {
	ChunkID       string    `json:"chunk_id"`
	SourceScopeID string    `json:"source_scope_id"`
	Heading       string    `json:"heading"`
	Content       string    `json:"content"`
	Embedding     []float32 `json:"embedding"`
}
