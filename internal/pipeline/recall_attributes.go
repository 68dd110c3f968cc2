package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/clueweave/clueweave/internal/clue"
	"github.com/clueweave/clueweave/internal/logger"
	"github.com/clueweave/clueweave/internal/models/chat"
)

// ExtractedAttribute is one entry of Recall step 1's LLM output:
// {name, type, context, importance}. Importance maps to a confidence
// value via importanceConfidence.
type ExtractedAttribute struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Context    string `json:"context"`
	Importance string `json:"importance"`
}

// attributeExtractionResult is the full LLM response shape: a list of
// attributes plus an optional rewritten query.
type attributeExtractionResult struct {
	Attributes     []ExtractedAttribute `json:"attributes"`
	RewrittenQuery string                `json:"rewritten_query,omitempty"`
}

// importanceConfidence resolves importance→confidence exactly as
// recall.py's schema comment specifies: high:0.9, medium:0.7, low:0.5.
// Anything else (including empty) defaults to medium's 0.7.
func importanceConfidence(importance string) float64 {
	switch strings.ToLower(importance) {
	case "high":
		return 0.9
	case "low":
		return 0.5
	default:
		return 0.7
	}
}

// attributeExtractionSchema is the JSON Schema the LLM is constrained
// to when enableRewrite is true: attributes plus a sibling
// rewritten_query field.
func attributeExtractionSchema(enableRewrite bool) map[string]any {
	attributeSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":       map[string]any{"type": "string"},
			"type":       map[string]any{"type": "string"},
			"context":    map[string]any{"type": "string"},
			"importance": map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
		},
		"required": []string{"name", "type"},
	}
	properties := map[string]any{
		"attributes": map[string]any{
			"type":  "array",
			"items": attributeSchema,
		},
	}
	if enableRewrite {
		properties["rewritten_query"] = map[string]any{"type": "string"}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   []string{"attributes"},
	}
}

// extractAttributes runs Recall step 1: prompts the chat model for a
// structured attribute list (and, if query rewriting is enabled, a
// rewritten query), falling back to a rule-based keyword extractor on
// any LLM or parse failure.
func extractAttributes(
	ctx context.Context, client chat.ChatClient, query string, enableRewrite bool,
) (attrs []ExtractedAttribute, rewrittenQuery string) {
	messages := []chat.Message{
		{Role: "system", Content: "Extract named entities/attributes from the user's query as JSON."},
		{Role: "user", Content: query},
	}

	raw, err := client.ChatWithSchema(ctx, messages, attributeExtractionSchema(enableRewrite), &chat.Options{Temperature: 0})
	if err != nil {
		logger.Warnf(ctx, "attribute extraction LLM call failed, falling back to keyword rule: %v", err)
		return fallbackAttributeExtraction(query), ""
	}

	var result attributeExtractionResult
	if err := json.Unmarshal([]byte(chat.ExtractJSON(raw)), &result); err != nil {
		logger.Warnf(ctx, "attribute extraction response unparseable, falling back to keyword rule: %v", err)
		return fallbackAttributeExtraction(query), ""
	}

	if len(result.Attributes) == 0 {
		return fallbackAttributeExtraction(query), result.RewrittenQuery
	}

	if enableRewrite {
		return result.Attributes, result.RewrittenQuery
	}
	return result.Attributes, ""
}

// fallbackAttributeExtractionRules is the bilingual keyword list from
// recall.py's _fallback_attribute_extraction, in its exact order.
var fallbackAttributeExtractionRules = []struct {
	words []string
	attr  ExtractedAttribute
}{
	{[]string{"ai", "artificial intelligence", "人工智能"}, ExtractedAttribute{Name: "AI", Type: "topic"}},
	{[]string{"tech", "technology", "技术", "科技"}, ExtractedAttribute{Name: "科技", Type: "topic"}},
	{[]string{"innovation", "创新"}, ExtractedAttribute{Name: "创新", Type: "topic"}},
	{[]string{"medical", "health", "医疗", "健康"}, ExtractedAttribute{Name: "医疗", Type: "topic"}},
	{[]string{"company", "企业", "公司"}, ExtractedAttribute{Name: "企业", Type: "organization"}},
	{[]string{"person", "people", "人物", "专家"}, ExtractedAttribute{Name: "人物", Type: "person"}},
}

// fallbackAttributeExtraction is the rule-based fallback used when the
// LLM call fails or its output can't be parsed: a short bilingual
// keyword scan, defaulting to two generic topic attributes (AI, 科技)
// if nothing matches.
func fallbackAttributeExtraction(query string) []ExtractedAttribute {
	lower := strings.ToLower(query)
	var attrs []ExtractedAttribute
	for _, rule := range fallbackAttributeExtractionRules {
		for _, word := range rule.words {
			if strings.Contains(lower, word) {
				attrs = append(attrs, rule.attr)
				break
			}
		}
	}
	if len(attrs) == 0 {
		attrs = []ExtractedAttribute{
			{Name: "AI", Type: "topic"},
			{Name: "科技", Type: "topic"},
		}
	}
	return attrs
}

// toClueAttribute adapts an ExtractedAttribute into the shape
// internal/clue.BuildExtractedEntityNode expects.
func toClueAttribute(a ExtractedAttribute) clue.ExtractedAttribute {
	return clue.ExtractedAttribute{Name: a.Name, Type: a.Type, Description: a.Context}
}
