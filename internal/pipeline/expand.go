package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/clueweave/clueweave/internal/clue"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

// Expander runs the Expand stage (spec.md §4.2 / expand.py): an N-hop
// walk outward from Recall's seed entities through the entity<->event
// graph, surfacing new entities the initial recall never directly
// matched.
type Expander struct {
	Graph   interfaces.EntityGraphRepo
	Events  interfaces.EventVectorRepo
	Tracker *clue.Tracker
}

// NewExpander wires an Expander from its dependencies.
func NewExpander(graph interfaces.EntityGraphRepo, events interfaces.EventVectorRepo, tracker *clue.Tracker) *Expander {
	return &Expander{Graph: graph, Events: events, Tracker: tracker}
}

// ExpandResult carries the merged entity set across every hop, plus
// whether the walk converged before exhausting max_hops.
type ExpandResult struct {
	KeyFinal           []types.RecalledEntity
	ConvergenceReached bool
	HopsRun            int
}

// expansionTraceEntry is one (parent, event, event-weight) edge
// discovered while reversing a hop's surviving events back to entities
// — spec.md §4.2 step 5's "expansion trace".
type expansionTraceEntry struct {
	parentEntityID string
	eventID        string
	eventWeight    float64
}

// expansionEdge is the split parent->event->child clue pair for one
// discovered entity, cached so finalize can re-emit it at
// DisplayLevelFinal — AddClue's priority-based dedup then upgrades the
// intermediate edges recorded during the hop loop in place.
type expansionEdge struct {
	parentNode types.Node
	eventNode  types.Node
	childNode  types.Node
	weight     float64
}

// Expand walks the entity<->event graph outward from recall.KeyFinal
// for up to cfg.Expand.MaxHops hops.
func (e *Expander) Expand(ctx context.Context, cfg *types.SearchConfig, recall *RecallResult) (*ExpandResult, error) {
	cfg.EnsureDefaults()
	if !cfg.Expand.Enabled || len(recall.KeyFinal) == 0 {
		return &ExpandResult{KeyFinal: recall.KeyFinal}, nil
	}

	entityByID := make(map[string]types.RecalledEntity, len(recall.KeyFinal))
	frontierWeight := make(map[string]float64, len(recall.KeyFinal))
	discovered := make(map[string]struct{}, len(recall.KeyFinal))
	weightByHop := map[int]map[string]float64{0: {}}
	parentOf := make(map[string]expansionTraceEntry)
	expandedAtLeastOnce := make(map[string]bool)
	edgeOf := make(map[string]expansionEdge)

	for _, entity := range recall.KeyFinal {
		entityByID[entity.EntityID] = entity
		frontierWeight[entity.EntityID] = entity.Weight
		discovered[entity.EntityID] = struct{}{}
		weightByHop[0][entity.EntityID] = entity.Weight
	}

	sourceIDs := cfg.GetSourceConfigIDs()
	maxHops := cfg.Expand.MaxHops
	converged := false
	hopsRun := 0

	for hop := 1; hop <= maxHops; hop++ {
		frontierIDs := make([]string, 0, len(frontierWeight))
		for id := range frontierWeight {
			frontierIDs = append(frontierIDs, id)
		}
		sort.Strings(frontierIDs)

		// Step 1: keys -> events.
		events, err := e.Graph.EventsForEntities(ctx, sourceIDs, frontierIDs)
		if err != nil {
			return nil, fmt.Errorf("expand hop %d: events for frontier: %w", hop, err)
		}
		if len(events) == 0 {
			break
		}
		hopsRun = hop

		eventIDs := make([]string, len(events))
		eventByID := make(map[string]types.Event, len(events))
		for i, ev := range events {
			eventIDs[i] = ev.ID
			eventByID[ev.ID] = ev
		}

		// Step 2: event-query similarity — batch-fetch each frontier
		// event's own content (or title) vector and cosine it against the
		// cached query embedding, rather than hoping the event surfaces in
		// a global KNN window. An event with neither vector indexed is
		// absent from the map and treated as similarity 0 below.
		queryEventSim, err := batchEventQuerySimilarity(ctx, e.Events, eventIDs, cfg.QueryEmbedding)
		if err != nil {
			return nil, fmt.Errorf("expand hop %d: event-query similarity: %w", hop, err)
		}

		// Step 3: event-key weights — sum of frontier weights of the
		// frontier entities that appear in each event.
		eventEntityIDs := make(map[string][]string, len(eventIDs))
		eventKeyWeight := make(map[string]float64, len(eventIDs))
		entityInfo := make(map[string]types.Entity)
		for _, eventID := range eventIDs {
			entities, err := e.Graph.EntitiesForEvents(ctx, []string{eventID})
			if err != nil {
				return nil, fmt.Errorf("expand hop %d: entities for event %q: %w", hop, eventID, err)
			}
			var w float64
			ids := make([]string, 0, len(entities))
			for _, ent := range entities {
				ids = append(ids, ent.ID)
				entityInfo[ent.ID] = ent
				if fw, ok := frontierWeight[ent.ID]; ok {
					w += fw
				}
			}
			eventEntityIDs[eventID] = ids
			eventKeyWeight[eventID] = w
		}

		// Step 2 (threshold) + Step 4: composite event weight, dropping
		// events whose query similarity misses the bar before compositing.
		eventJumpWeight := make(map[string]float64, len(eventIDs))
		for _, eventID := range eventIDs {
			sim := queryEventSim[eventID]
			if sim < cfg.Expand.EventSimilarityThreshold {
				continue
			}
			eventJumpWeight[eventID] = eventKeyWeight[eventID] * sim
		}
		normalizeByMax(eventJumpWeight, 0.1)
		if len(eventJumpWeight) < cfg.Expand.MinEventsPerHop {
			// Not enough surviving events to trust this hop; stop walking
			// rather than expanding on a thin signal.
			break
		}

		// Step 5: reverse to entities — every entity appearing in a
		// surviving event gets weight = sum of that event's jump weight,
		// whether or not it was already in the frontier.
		newEntityWeight := make(map[string]float64)
		for eventID, jumpWeight := range eventJumpWeight {
			for _, entityID := range eventEntityIDs[eventID] {
				newEntityWeight[entityID] += jumpWeight

				// Track the expansion trace: intersect this event's
				// entities with the current frontier to find candidate
				// parents, keeping the one reached via the heaviest event.
				for _, maybeParent := range eventEntityIDs[eventID] {
					if maybeParent == entityID {
						continue
					}
					if _, inFrontier := frontierWeight[maybeParent]; !inFrontier {
						continue
					}
					existing, ok := parentOf[entityID]
					if !ok || jumpWeight > existing.eventWeight {
						parentOf[entityID] = expansionTraceEntry{
							parentEntityID: maybeParent,
							eventID:        eventID,
							eventWeight:    jumpWeight,
						}
					}
				}
			}
		}
		weightByHop[hop] = newEntityWeight

		// Step 6: convergence check.
		var totalChange float64
		for id, w := range newEntityWeight {
			prev := frontierWeight[id]
			delta := w - prev
			if delta < 0 {
				delta = -delta
			}
			totalChange += delta
		}
		if totalChange < cfg.Expand.WeightChangeThreshold {
			converged = true
		}

		// Step 7: select next frontier — new, not-yet-discovered entities
		// only, sorted by weight desc, capped at entities_per_hop.
		var candidates []string
		for id := range newEntityWeight {
			if _, already := discovered[id]; already {
				continue
			}
			candidates = append(candidates, id)
		}
		sort.SliceStable(candidates, func(i, j int) bool { return newEntityWeight[candidates[i]] > newEntityWeight[candidates[j]] })
		if len(candidates) > cfg.Expand.EntitiesPerHop {
			candidates = candidates[:cfg.Expand.EntitiesPerHop]
		}

		nextFrontier := make(map[string]float64, len(candidates))
		for _, id := range candidates {
			w := newEntityWeight[id]
			nextFrontier[id] = w
			discovered[id] = struct{}{}

			hopCopy := hop
			entity := types.RecalledEntity{
				EntityID: id,
				Name:     entityInfo[id].DisplayName,
				Type:     entityInfo[id].Type,
				Weight:   w,
				Hop:      hop,
				Steps:    []int{hop + 1},
			}
			if trace, ok := parentOf[id]; ok {
				entity.ParentEntityID = trace.parentEntityID
				parentEventNode := e.Tracker.GetOrCreateEventNode(eventByID[trace.eventID], types.StageExpand, &hopCopy, "")
				parentEntityNode := entityNodeFor(entityByID, trace.parentEntityID)
				childEntityNode := clue.BuildEntityNode(entity)
				e.Tracker.AddClue(types.StageExpand, parentEntityNode, parentEventNode, trace.eventWeight, "", types.DisplayLevelIntermediate, nil)
				e.Tracker.AddClue(types.StageExpand, parentEventNode, childEntityNode, trace.eventWeight, "", types.DisplayLevelIntermediate, nil)
				expandedAtLeastOnce[trace.parentEntityID] = true
				edgeOf[id] = expansionEdge{parentNode: parentEntityNode, eventNode: parentEventNode, childNode: childEntityNode, weight: trace.eventWeight}
			}
			entityByID[id] = entity
		}

		frontierWeight = nextFrontier
		if converged || len(nextFrontier) == 0 {
			break
		}
	}

	return e.finalize(cfg, entityByID, weightByHop, hopsRun, converged, expandedAtLeastOnce, edgeOf)
}

func entityNodeFor(entityByID map[string]types.RecalledEntity, id string) types.Node {
	if entity, ok := entityByID[id]; ok {
		return clue.BuildEntityNode(entity)
	}
	return types.Node{ID: id, Type: types.NodeTypeEntity}
}

// finalize aggregates per-hop weights into the weighted average spec.md
// §4.2 describes ("later hops count more"), builds key_final, and emits
// the final-level clues (split parent->event->child, or a leaf
// recall_no_expansion clue for recall entities that never expanded).
func (e *Expander) finalize(
	cfg *types.SearchConfig,
	entityByID map[string]types.RecalledEntity,
	weightByHop map[int]map[string]float64,
	hopsRun int,
	converged bool,
	expandedAtLeastOnce map[string]bool,
	edgeOf map[string]expansionEdge,
) (*ExpandResult, error) {
	queryNode := clue.BuildQueryNode(cfg, false)

	ids := make([]string, 0, len(entityByID))
	for id := range entityByID {
		ids = append(ids, id)
	}

	aggregated := make(map[string]float64, len(ids))
	for _, id := range ids {
		hopEntries := make(map[int]float64)
		for hop := 1; hop <= hopsRun; hop++ {
			if w, ok := weightByHop[hop][id]; ok {
				hopEntries[hop] = w
			}
		}
		if len(hopEntries) == 0 {
			// Never reprocessed in a later hop — keep its recall (or
			// discovery-hop) weight as-is.
			aggregated[id] = entityByID[id].Weight
			continue
		}
		var numerator, denominator float64
		for hop, w := range hopEntries {
			factor := float64(hop) / float64(hopsRun)
			numerator += w * factor
			denominator += factor
		}
		if denominator > 0 {
			aggregated[id] = numerator / denominator
		} else {
			aggregated[id] = entityByID[id].Weight
		}
	}

	sort.SliceStable(ids, func(i, j int) bool { return aggregated[ids[i]] > aggregated[ids[j]] })

	final := make([]types.RecalledEntity, 0, len(ids))
	for _, id := range ids {
		entity := entityByID[id]
		entity.Weight = aggregated[id]
		final = append(final, entity)

		if entity.Hop == 0 {
			if !expandedAtLeastOnce[id] {
				entityNode := clue.BuildEntityNode(entity)
				e.Tracker.AddClue(types.StageExpand, queryNode, entityNode, entity.Weight, "recall_no_expansion", types.DisplayLevelFinal, map[string]any{"leaf": true})
			}
			// Entities that did expand already carry their final
			// query->entity clue from Recall step 8; nothing more to do.
			continue
		}

		edge, ok := edgeOf[id]
		if !ok {
			entityNode := clue.BuildEntityNode(entity)
			e.Tracker.AddClue(types.StageExpand, queryNode, entityNode, entity.Weight, "", types.DisplayLevelFinal, nil)
			continue
		}
		e.Tracker.AddClue(types.StageExpand, edge.parentNode, edge.eventNode, edge.weight, "", types.DisplayLevelFinal, nil)
		e.Tracker.AddClue(types.StageExpand, edge.eventNode, edge.childNode, edge.weight, "", types.DisplayLevelFinal, nil)
	}

	return &ExpandResult{KeyFinal: final, ConvergenceReached: converged, HopsRun: hopsRun}, nil
}
