package chat

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// RemoteAPIChat is a go-openai-backed chat client against any
// OpenAI-compatible chat completions endpoint.
type RemoteAPIChat struct {
	modelName string
	client    *openai.Client
}

// NewRemoteAPIChat builds a chat client from config.
func NewRemoteAPIChat(config Config) (*RemoteAPIChat, error) {
	apiConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		apiConfig.BaseURL = config.BaseURL
	}
	return &RemoteAPIChat{
		modelName: config.ModelName,
		client:    openai.NewClientWithConfig(apiConfig),
	}, nil
}

func (c *RemoteAPIChat) convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		out[i] = openai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}
	return out
}

func (c *RemoteAPIChat) buildRequest(messages []Message, opts *Options) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    c.modelName,
		Messages: c.convertMessages(messages),
	}
	if opts != nil {
		if opts.Temperature > 0 {
			req.Temperature = float32(opts.Temperature)
		}
		if opts.TopP > 0 {
			req.TopP = float32(opts.TopP)
		}
		if opts.MaxTokens > 0 {
			req.MaxTokens = opts.MaxTokens
		}
	}
	return req
}

// Chat performs a plain completion.
func (c *RemoteAPIChat) Chat(ctx context.Context, messages []Message, opts *Options) (*Response, error) {
	req := c.buildRequest(messages, opts)
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from chat model")
	}
	return &Response{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// ChatWithSchema requests a JSON-mode completion and returns the raw
// JSON text. If the backend ignores response_format and wraps its
// answer in a markdown code fence, the fence is stripped before
// returning, matching the original recall.py's tolerance for
// non-conforming models.
func (c *RemoteAPIChat) ChatWithSchema(
	ctx context.Context, messages []Message, schema map[string]any, opts *Options,
) (string, error) {
	req := c.buildRequest(messages, opts)
	req.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	if schema != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "extraction",
				Schema: schema,
				Strict: false,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from chat model")
	}

	return ExtractJSON(resp.Choices[0].Message.Content), nil
}

// ModelName returns the model identifier used for requests.
func (c *RemoteAPIChat) ModelName() string {
	return c.modelName
}

var fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSON strips a markdown code fence around a JSON payload, if
// present, and trims surrounding whitespace. Many OpenAI-compatible
// backends ignore response_format and answer in prose with a fenced
// block; this is the same tolerance recall.py's _build_attribute_json
// applies before calling json.loads.
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)
	if m := fencedJSONPattern.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return content
}
