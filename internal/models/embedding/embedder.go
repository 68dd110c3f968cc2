// Package embedding implements the embedding client contract from
// spec.md §6: Generate/BatchGenerate over an OpenAI-embeddings-compatible
// HTTP API.
package embedding

import (
	"context"
)

// EmbeddingClient converts text to dense vectors for the entity/event/
// chunk vector stores and for query embedding at Recall time.
type EmbeddingClient interface {
	// Generate embeds a single text.
	Generate(ctx context.Context, text string) ([]float32, error)

	// BatchGenerate embeds multiple texts in one round trip where the
	// backing API allows it.
	BatchGenerate(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector width this client produces.
	Dimensions() int

	// ModelName returns the model identifier used for requests.
	ModelName() string

	EmbedderPooler
}

// EmbedderPooler fans a large batch out across a bounded goroutine pool,
// chunking the input so no single request exceeds the backing API's
// practical batch size.
type EmbedderPooler interface {
	BatchGenerateWithPool(ctx context.Context, client EmbeddingClient, texts []string) ([][]float32, error)
}

// Config configures an OpenAI-embeddings-compatible client.
type Config struct {
	BaseURL              string `json:"base_url" mapstructure:"base_url"`
	ModelName            string `json:"model_name" mapstructure:"model_name"`
	APIKey               string `json:"api_key" mapstructure:"api_key"`
	TruncatePromptTokens int    `json:"truncate_prompt_tokens" mapstructure:"truncate_prompt_tokens"`
	Dimensions           int    `json:"dimensions" mapstructure:"dimensions"`
}

// NewEmbeddingClient builds the OpenAI-compatible embedding client. The
// engine only ever talks to one kind of embedding backend — an
// OpenAI-compatible HTTP API — so there is no source-switch here.
func NewEmbeddingClient(config Config, pooler EmbedderPooler) (EmbeddingClient, error) {
	return NewOpenAIEmbedder(config.APIKey, config.BaseURL, config.ModelName,
		config.TruncatePromptTokens, config.Dimensions, pooler)
}
