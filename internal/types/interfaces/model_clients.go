package interfaces

import (
	"github.com/clueweave/clueweave/internal/models/chat"
	"github.com/clueweave/clueweave/internal/models/embedding"
)

// EmbeddingClient is the embedding client contract the pipeline depends
// on, aliased here the same way the teacher's types/interfaces/model.go
// names models/embedding.Embedder — the seam between the search
// pipeline and its concrete model adapters.
type EmbeddingClient = embedding.EmbeddingClient

// ChatClient is the LLM client contract the pipeline depends on.
type ChatClient = chat.ChatClient
