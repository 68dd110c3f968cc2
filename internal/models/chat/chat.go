// Package chat implements the LLM chat client contract from spec.md §6:
// schema-constrained structured extraction for Recall's attribute step
// and query rewriting, plus a fenced-JSON fallback parser for backends
// that ignore JSON mode.
package chat

import (
	"context"
)

// Options controls a single chat completion request.
type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	MaxTokens   int     `json:"max_tokens"`
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Usage reports token accounting for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the result of a non-streaming chat completion.
type Response struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// ChatClient is the LLM client used by Recall for attribute extraction,
// optional query rewriting, and (via ChatWithSchema) schema-constrained
// structured output.
type ChatClient interface {
	// Chat performs a plain completion.
	Chat(ctx context.Context, messages []Message, opts *Options) (*Response, error)

	// ChatWithSchema requests a completion constrained to the given JSON
	// schema and returns the raw JSON text the model produced. Callers
	// unmarshal the result themselves; schema is a JSON Schema object.
	ChatWithSchema(ctx context.Context, messages []Message, schema map[string]any, opts *Options) (string, error)

	// ModelName returns the model identifier used for requests.
	ModelName() string
}

// Config configures a go-openai-backed chat client.
type Config struct {
	BaseURL   string `json:"base_url" mapstructure:"base_url"`
	ModelName string `json:"model_name" mapstructure:"model_name"`
	APIKey    string `json:"api_key" mapstructure:"api_key"`
}

// NewChatClient builds the go-openai-backed chat client. The engine
// only ever talks to one kind of chat backend — an OpenAI-compatible
// chat completions API — so there is no source-switch here.
func NewChatClient(config Config) (ChatClient, error) {
	return NewRemoteAPIChat(config)
}
