// Package clue builds and tracks the reasoning graph — the directed,
// labeled edges (query→entity, entity→event, event→chunk, entity→entity)
// that explain why the engine returned what it returned. It is grounded
// on original_source/sag/modules/search/tracker.py's Tracker: the same
// node-builder functions, the same stage-scoped event-node identity
// rules, and the same priority-based dedup on add.
package clue

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clueweave/clueweave/internal/types"
)

// GenerateQueryNodeID returns a deterministic UUID5 for a query string,
// so repeated searches for the same text collapse onto one query node
// in the frontend graph view.
func GenerateQueryNodeID(query string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(query)).String()
}

// GenerateClueID returns a fresh random id for one clue edge.
func GenerateClueID() string {
	return uuid.NewString()
}

// BuildQueryNode constructs the query node for either the original or
// the current (possibly rewritten) query text.
func BuildQueryNode(cfg *types.SearchConfig, useOrigin bool) types.Node {
	queryText := cfg.Query
	if useOrigin {
		queryText = cfg.OriginalQuery
	}

	category := "origin"
	description := "original search query"
	if cfg.OriginalQuery != "" && cfg.OriginalQuery != cfg.Query {
		if useOrigin {
			category = "origin"
			description = "original search query"
		} else {
			category = "rewrite"
			description = "rewritten query"
		}
	}

	return types.Node{
		ID:          GenerateQueryNodeID(queryText),
		Type:        types.NodeTypeQuery,
		Category:    category,
		Content:     queryText,
		Description: description,
	}
}

// BuildEntityNode constructs an entity node from a RecalledEntity. Hop
// defaults to 0 for Recall-stage entities; Expand sets it explicitly.
func BuildEntityNode(entity types.RecalledEntity) types.Node {
	entityID := entity.EntityID
	if entityID == "" {
		entityID = fmt.Sprintf("fallback-%s", uuid.NewSHA1(uuid.NameSpaceDNS, []byte(entity.Name)).String())
	}
	hop := entity.Hop
	return types.Node{
		ID:          entityID,
		Type:        types.NodeTypeEntity,
		Category:    orDefault(entity.Type, "unknown"),
		Content:     entity.Name,
		Description: entity.Description,
		Hop:         &hop,
	}
}

// ExtractedAttribute is the shape the LLM attribute-extraction step
// (Recall step 1, full mode) produces per attribute.
type ExtractedAttribute struct {
	Name        string
	Type        string
	Description string
}

// BuildExtractedEntityNode constructs a node for an LLM-extracted query
// attribute, distinct from a real database entity: the id carries an
// "extracted-" prefix over a deterministic hash of type:name, so the
// same attribute extracted twice collapses to one node but never
// collides with a genuine entity id.
func BuildExtractedEntityNode(attr ExtractedAttribute) types.Node {
	entityType := orDefault(attr.Type, "unknown")
	id := fmt.Sprintf("extracted-%s", uuid.NewSHA1(uuid.NameSpaceDNS, []byte(entityType+":"+attr.Name)).String())
	description := attr.Description
	if description == "" {
		description = "attribute extracted from the query"
	}
	return types.Node{
		ID:          id,
		Type:        types.NodeTypeExtractedEntity,
		Category:    entityType,
		Content:     attr.Name,
		Description: description,
	}
}

// BuildEventNode constructs a plain (non-stage-scoped) event node —
// used where a stable, repeatable node id is fine (tests, or direct
// non-pipeline callers). Pipeline code should prefer
// Tracker.GetOrCreateEventNode so repeated recalls within a stage reuse
// one node.
func BuildEventNode(event types.Event, stage types.Stage) types.Node {
	nodeID := event.ID
	if stage != "" {
		nodeID = fmt.Sprintf("%s_%s", stage, event.ID)
	}
	node := types.Node{
		ID:          nodeID,
		EventID:     event.ID,
		Type:        types.NodeTypeEvent,
		Category:    event.Category,
		Content:     event.Title,
		Description: event.Content,
		Stage:       stage,
	}
	return node
}

// BuildSectionNode constructs a node for a chunk ("section" in the
// clue graph's vocabulary), truncating its displayed heading/content to
// 50 runes to keep the graph view compact.
func BuildSectionNode(chunk types.Chunk) types.Node {
	content := chunk.Heading
	if content == "" {
		content = chunk.Content
	}
	if runes := []rune(content); len(runes) > 50 {
		content = string(runes[:50])
	}
	return types.Node{
		ID:       chunk.ID,
		Type:     types.NodeTypeSection,
		Category: "",
		Content:  content,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
