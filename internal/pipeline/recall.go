// Package pipeline implements the three-stage retrieval engine —
// Recall, Expand, and the PageRank/RRF rerankers — wiring the clue
// tracker, numeric kernels, and repository/model-client contracts
// together the way original_source/sag/modules/search orchestrates the
// same stages in Python.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/clueweave/clueweave/internal/clue"
	"github.com/clueweave/clueweave/internal/models/chat"
	"github.com/clueweave/clueweave/internal/models/embedding"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

// Recaller runs the Recall stage (spec.md §4.1 / recall.py), producing
// the seed entity set Expand walks outward from.
type Recaller struct {
	Entities interfaces.EntityVectorRepo
	Events   interfaces.EventVectorRepo
	Graph    interfaces.EntityGraphRepo
	Embedder embedding.EmbeddingClient
	Chat     chat.ChatClient
	Tracker  *clue.Tracker
}

// NewRecaller wires a Recaller from its repository and model-client
// dependencies plus the clue tracker shared across the whole search.
func NewRecaller(
	entities interfaces.EntityVectorRepo,
	events interfaces.EventVectorRepo,
	graph interfaces.EntityGraphRepo,
	embedder embedding.EmbeddingClient,
	chatClient chat.ChatClient,
	tracker *clue.Tracker,
) *Recaller {
	return &Recaller{Entities: entities, Events: events, Graph: graph, Embedder: embedder, Chat: chatClient, Tracker: tracker}
}

// RecallResult carries the final seed entity set plus the intermediate
// artifacts a debugging caller (or the compact frontend's "full" view)
// may want: which events each step touched, and the raw attribute
// extraction.
type RecallResult struct {
	KeyFinal            []types.RecalledEntity
	ExtractedAttributes []ExtractedAttribute
	EventsFromKeys      []types.Event
	EventsFromQuery     []interfaces.ScoredEvent
	EventFinal          []types.Event
}

// Recall runs fast or full mode depending on cfg.Recall.UseFastMode,
// after ensuring the query embedding cache is populated.
func (r *Recaller) Recall(ctx context.Context, cfg *types.SearchConfig) (*RecallResult, error) {
	cfg.EnsureDefaults()

	if cfg.Recall.UseFastMode {
		if err := r.ensureQueryEmbedding(ctx, cfg); err != nil {
			return nil, fmt.Errorf("recall: embed query: %w", err)
		}
		return r.fastMode(ctx, cfg)
	}
	return r.fullMode(ctx, cfg)
}

func (r *Recaller) ensureQueryEmbedding(ctx context.Context, cfg *types.SearchConfig) error {
	if cfg.HasQueryEmbedding {
		return nil
	}
	vec, err := r.Embedder.Generate(ctx, cfg.Query)
	if err != nil {
		return err
	}
	cfg.QueryEmbedding = vec
	cfg.HasQueryEmbedding = true
	return nil
}

func (r *Recaller) primaryScope(cfg *types.SearchConfig) string {
	ids := cfg.GetSourceConfigIDs()
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func (r *Recaller) typeThresholds(ctx context.Context, cfg *types.SearchConfig) map[string]float64 {
	thresholds := make(map[string]float64)
	entityTypes, err := r.Graph.GetEntityTypes(ctx, r.primaryScope(cfg))
	if err != nil {
		for _, et := range types.DefaultEntityTypes() {
			thresholds[et.Tag] = et.SimilarityThreshold
		}
		return thresholds
	}
	for _, et := range entityTypes {
		thresholds[et.Tag] = et.SimilarityThreshold
	}
	return thresholds
}

// fastMode is the single-KNN-pass shortcut: spec.md §4.1 "Fast mode".
func (r *Recaller) fastMode(ctx context.Context, cfg *types.SearchConfig) (*RecallResult, error) {
	sourceIDs := cfg.GetSourceConfigIDs()
	hits, err := r.Entities.SearchByVector(ctx, sourceIDs, cfg.QueryEmbedding, cfg.Recall.VectorTopK, cfg.Recall.VectorCandidates)
	if err != nil {
		return nil, fmt.Errorf("recall fast mode: entity KNN: %w", err)
	}

	thresholds := r.typeThresholds(ctx, cfg)
	global := cfg.Recall.EntitySimilarityThreshold

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })

	seen := make(map[string]struct{}, len(hits))
	queryNode := clue.BuildQueryNode(cfg, false)
	var final []types.RecalledEntity

	for _, hit := range hits {
		if len(final) >= cfg.Recall.MaxEntities {
			break
		}
		threshold := global
		if t, ok := thresholds[hit.Entity.Type]; ok && t > threshold {
			threshold = t
		}
		if hit.Similarity < threshold {
			continue
		}
		if _, dup := seen[hit.Entity.ID]; dup {
			continue
		}
		seen[hit.Entity.ID] = struct{}{}

		entity := types.RecalledEntity{
			EntityID:       hit.Entity.ID,
			Name:           hit.Entity.DisplayName,
			Type:           hit.Entity.Type,
			Description:    hit.Entity.Description,
			Similarity:     hit.Similarity,
			Weight:         hit.Similarity,
			TypeThreshold:  thresholds[hit.Entity.Type],
			FinalThreshold: threshold,
			Hop:            0,
			Steps:          []int{1},
		}
		final = append(final, entity)

		entityNode := clue.BuildEntityNode(entity)
		r.Tracker.AddClue(types.StageRecall, queryNode, entityNode, entity.Similarity, "semantic similarity", types.DisplayLevelFinal, nil)
	}

	return &RecallResult{KeyFinal: final}, nil
}

// fullMode runs the 8-step algorithm: spec.md §4.1 "Full mode".
func (r *Recaller) fullMode(ctx context.Context, cfg *types.SearchConfig) (*RecallResult, error) {
	sourceIDs := cfg.GetSourceConfigIDs()

	// Step 1: attribute extraction (+ optional query rewrite), run before
	// the query embedding is cached so a rewritten query gets embedded,
	// not the original.
	attrs, rewrittenQuery := extractAttributes(ctx, r.Chat, cfg.Query, cfg.EnableQueryRewrite)

	if cfg.EnableQueryRewrite && rewrittenQuery != "" && rewrittenQuery != cfg.Query {
		originalNode := clue.BuildQueryNode(cfg, false)
		cfg.OriginalQuery = cfg.Query
		cfg.Query = rewrittenQuery
		cfg.HasQueryEmbedding = false
		rewriteNode := clue.BuildQueryNode(cfg, false)
		r.Tracker.AddClue(types.StagePrepare, originalNode, rewriteNode, 1.0, "query rewrite", types.DisplayLevelIntermediate, nil)
	}

	if err := r.ensureQueryEmbedding(ctx, cfg); err != nil {
		return nil, fmt.Errorf("recall full mode: embed query: %w", err)
	}

	queryNode := clue.BuildQueryNode(cfg, false)
	for _, a := range attrs {
		attrNode := clue.BuildExtractedEntityNode(toClueAttribute(a))
		r.Tracker.AddClue(types.StagePrepare, queryNode, attrNode, importanceConfidence(a.Importance), "", types.DisplayLevelIntermediate, nil)
	}

	// Step 2: attribute -> entity.
	attrNames := make([]string, len(attrs))
	for i, a := range attrs {
		attrNames[i] = a.Name
	}
	var attrVectors [][]float32
	if len(attrNames) > 0 {
		vectors, err := r.Embedder.BatchGenerate(ctx, attrNames)
		if err != nil {
			return nil, fmt.Errorf("recall full mode: embed attributes: %w", err)
		}
		attrVectors = vectors
	}

	thresholds := r.typeThresholds(ctx, cfg)
	global := cfg.Recall.EntitySimilarityThreshold
	k1 := make(map[string]types.RecalledEntity)
	k1Order := make([]string, 0)

	for i, attr := range attrs {
		if i >= len(attrVectors) {
			break
		}
		hits, err := r.Entities.SearchByVector(ctx, sourceIDs, attrVectors[i], cfg.Recall.MaxEntities, cfg.Recall.VectorCandidates)
		if err != nil {
			return nil, fmt.Errorf("recall full mode: entity KNN for attribute %q: %w", attr.Name, err)
		}
		sort.SliceStable(hits, func(a, b int) bool { return hits[a].Similarity > hits[b].Similarity })

		attrNode := clue.BuildExtractedEntityNode(toClueAttribute(attr))
		for _, hit := range hits {
			if attr.Type != "" && hit.Entity.Type != attr.Type {
				continue
			}
			threshold := global
			if t, ok := thresholds[hit.Entity.Type]; ok && t > threshold {
				threshold = t
			}
			if hit.Similarity < threshold {
				continue
			}
			existing, ok := k1[hit.Entity.ID]
			if ok && existing.Similarity >= hit.Similarity {
				continue
			}
			k1[hit.Entity.ID] = types.RecalledEntity{
				EntityID:        hit.Entity.ID,
				Name:            hit.Entity.DisplayName,
				Type:            hit.Entity.Type,
				Description:     hit.Entity.Description,
				Similarity:      hit.Similarity,
				Weight:          hit.Similarity,
				SourceAttribute: attr.Name,
				TypeThreshold:   thresholds[hit.Entity.Type],
				FinalThreshold:  threshold,
			}
			if !ok {
				k1Order = append(k1Order, hit.Entity.ID)
			}

			entityNode := clue.BuildEntityNode(k1[hit.Entity.ID])
			r.Tracker.AddClue(types.StageRecall, attrNode, entityNode, hit.Similarity, "attribute match", types.DisplayLevelIntermediate, nil)
			r.Tracker.AddClue(types.StageRecall, queryNode, entityNode, hit.Similarity, "semantic similarity", types.DisplayLevelIntermediate, nil)
		}
	}

	sort.SliceStable(k1Order, func(i, j int) bool { return k1[k1Order[i]].Similarity > k1[k1Order[j]].Similarity })
	if len(k1Order) > cfg.Recall.MaxEntities {
		k1Order = k1Order[:cfg.Recall.MaxEntities]
	}

	// Step 3: entity -> event join, recording each entity's event set so
	// step 5 can intersect per-entity rather than only globally.
	entityEvents := make(map[string][]string, len(k1Order))
	allEvents := make(map[string]types.Event)
	for _, entityID := range k1Order {
		events, err := r.Graph.EventsForEntities(ctx, sourceIDs, []string{entityID})
		if err != nil {
			return nil, fmt.Errorf("recall full mode: events for entity %q: %w", entityID, err)
		}
		entityNode := clue.BuildEntityNode(k1[entityID])
		for _, ev := range events {
			entityEvents[entityID] = append(entityEvents[entityID], ev.ID)
			allEvents[ev.ID] = ev
			eventNode := r.Tracker.GetOrCreateEventNode(ev, types.StageRecall, nil, "")
			r.Tracker.AddClue(types.StageRecall, entityNode, eventNode, k1[entityID].Similarity, "entity in event", types.DisplayLevelIntermediate, nil)
		}
	}

	// Step 4: query -> event.
	eventHits, err := r.Events.SearchByVector(ctx, sourceIDs, cfg.QueryEmbedding, cfg.Recall.MaxEvents, cfg.Recall.VectorCandidates)
	if err != nil {
		return nil, fmt.Errorf("recall full mode: event KNN: %w", err)
	}
	e1 := make(map[string]float64, len(eventHits))
	for _, hit := range eventHits {
		if hit.Similarity < cfg.Recall.EventSimilarityThreshold {
			continue
		}
		e1[hit.Event.ID] = hit.Similarity
		allEvents[hit.Event.ID] = hit.Event
	}

	// Step 5: event intersection, then filter k1 entities to those whose
	// event set intersects E_final.
	keyEventIDs := make(map[string]struct{})
	for _, ids := range entityEvents {
		for _, id := range ids {
			keyEventIDs[id] = struct{}{}
		}
	}
	eFinal := make(map[string]struct{})
	for eventID := range e1 {
		if _, ok := keyEventIDs[eventID]; ok {
			eFinal[eventID] = struct{}{}
		}
	}

	survivingEntities := k1Order[:0:0]
	for _, entityID := range k1Order {
		for _, eventID := range entityEvents[entityID] {
			if _, ok := eFinal[eventID]; ok {
				survivingEntities = append(survivingEntities, entityID)
				break
			}
		}
	}

	// Step 6: event -> entity weights, one weight per event in E_final.
	eventWeight := make(map[string]float64, len(eFinal))
	for eventID := range eFinal {
		var w float64
		for _, entityID := range survivingEntities {
			for _, eid := range entityEvents[entityID] {
				if eid == eventID {
					w += k1[entityID].Similarity
					break
				}
			}
		}
		eventWeight[eventID] = w
	}
	normalizeByMax(eventWeight, 0.1)

	// Step 7: event -> entity -> entity weights.
	finalWeight := make(map[string]float64, len(survivingEntities))
	for _, entityID := range survivingEntities {
		var w float64
		for _, eventID := range entityEvents[entityID] {
			if _, ok := eFinal[eventID]; !ok {
				continue
			}
			w += eventWeight[eventID] * e1[eventID]
		}
		finalWeight[entityID] = w
	}
	normalizeByMax(finalWeight, 0)

	// Step 8: final selection.
	sort.SliceStable(survivingEntities, func(i, j int) bool {
		return finalWeight[survivingEntities[i]] > finalWeight[survivingEntities[j]]
	})

	var selected []string
	if cfg.Recall.FinalEntityCount > 0 {
		n := cfg.Recall.FinalEntityCount
		if n > len(survivingEntities) {
			n = len(survivingEntities)
		}
		selected = survivingEntities[:n]
	} else {
		for _, entityID := range survivingEntities {
			if finalWeight[entityID] >= cfg.Recall.EntityWeightThreshold {
				selected = append(selected, entityID)
			}
		}
	}

	final := make([]types.RecalledEntity, 0, len(selected))
	for _, entityID := range selected {
		entity := k1[entityID]
		entity.Weight = finalWeight[entityID]
		entity.Steps = []int{1}
		entity.Hop = 0
		final = append(final, entity)

		entityNode := clue.BuildEntityNode(entity)
		r.Tracker.AddClue(types.StageRecall, queryNode, entityNode, entity.Weight, "recall weight", types.DisplayLevelFinal, nil)
	}

	eventsFromKeysList := make([]types.Event, 0, len(keyEventIDs))
	for eventID := range keyEventIDs {
		if ev, ok := allEvents[eventID]; ok {
			eventsFromKeysList = append(eventsFromKeysList, ev)
		}
	}

	eventFinal := make([]types.Event, 0, len(eFinal))
	for eventID := range eFinal {
		if ev, ok := allEvents[eventID]; ok {
			eventFinal = append(eventFinal, ev)
		}
	}

	return &RecallResult{
		KeyFinal:            final,
		ExtractedAttributes: attrs,
		EventsFromKeys:      eventsFromKeysList,
		EventsFromQuery:     eventHits,
		EventFinal:          eventFinal,
	}, nil
}

// normalizeByMax divides every value by the maximum value present,
// falling back to fallbackIfZero when every value is zero (spec.md
// §4.1 steps 6-7: "normalize by the max; fall back to a constant 0.1 if
// all zero").
func normalizeByMax(weights map[string]float64, fallbackIfZero float64) {
	var max float64
	for _, w := range weights {
		if w > max {
			max = w
		}
	}
	if max <= 0 {
		if fallbackIfZero > 0 {
			for k := range weights {
				weights[k] = fallbackIfZero
			}
		}
		return
	}
	for k, w := range weights {
		weights[k] = w / max
	}
}
