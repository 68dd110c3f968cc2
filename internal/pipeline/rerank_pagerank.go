package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/clueweave/clueweave/internal/clue"
	"github.com/clueweave/clueweave/internal/numeric"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

// eventSource tags where a candidate event in the PageRank reranker's
// S1/S2/S3 merge came from — spec.md §4.3 step 3's "source ∈ {entity, query}".
type eventSource string

const (
	eventSourceEntity eventSource = "entity"
	eventSourceQuery  eventSource = "query"
)

// candidateEvent is one event surviving the S1/S2 merge, tagged with
// its provenance and the recalled entities that pulled it in.
type candidateEvent struct {
	event           types.Event
	similarity      float64
	source          eventSource
	sourceEntityIDs []string
}

// EventPageRankReranker implements spec.md §4.3: a directional,
// content-aware PageRank over the events reachable from key_final,
// seeded by similarity + entity-weight initial scores.
type EventPageRankReranker struct {
	Graph   interfaces.EntityGraphRepo
	Events  interfaces.EventVectorRepo
	Tracker *clue.Tracker
}

// NewEventPageRankReranker wires an EventPageRankReranker.
func NewEventPageRankReranker(graph interfaces.EntityGraphRepo, events interfaces.EventVectorRepo, tracker *clue.Tracker) *EventPageRankReranker {
	return &EventPageRankReranker{Graph: graph, Events: events, Tracker: tracker}
}

// RankedEvent is one PageRank-scored event in the final output order.
type RankedEvent struct {
	Event types.Event
	Score float64
}

// Rerank runs spec.md §4.3's steps 1-6 and returns the top
// cfg.Rerank.MaxResults events by PageRank score, descending, stable on
// ties.
func (r *EventPageRankReranker) Rerank(ctx context.Context, cfg *types.SearchConfig, keyFinal []types.RecalledEntity) ([]RankedEvent, error) {
	candidates, keyWeight, err := r.resolveCandidates(ctx, cfg, keyFinal)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	order := make([]string, 0, len(candidates))
	for id := range candidates {
		order = append(order, id)
	}
	sort.SliceStable(order, func(i, j int) bool { return candidates[order[i]].similarity > candidates[order[j]].similarity })

	// Step 4: initial weights — 0.5*similarity + ln(1 + sum of the
	// recall weights of the entities that pulled this event in).
	initWeight := make([]float64, len(order))
	for i, id := range order {
		c := candidates[id]
		var entitySum float64
		for _, eid := range c.sourceEntityIDs {
			entitySum += keyWeight[eid]
		}
		initWeight[i] = 0.5*c.similarity + math.Log(1+entitySum)
	}

	// Step 5: the directional entity + category co-occurrence graph.
	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}
	nameByID := make(map[string]string, len(keyFinal))
	for _, k := range keyFinal {
		nameByID[k.EntityID] = k.Name
	}
	edges := buildGraphEdges(order, index, candidates, keyWeight, nameByID)

	graph := numeric.NewGraph(len(order), edges)
	prCfg := numeric.PageRankConfig{
		Damping:       cfg.Rerank.PageRankDampingFactor,
		MaxIterations: cfg.Rerank.PageRankMaxIterations,
		Tolerance:     numeric.DefaultPageRankConfig().Tolerance,
	}
	scores := graph.Run(initWeight, prCfg)

	ranked := make([]RankedEvent, len(order))
	for i, id := range order {
		ranked[i] = RankedEvent{Event: candidates[id].event, Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	// Step 6: top-N selection with clue emission.
	entityNodeByID := make(map[string]types.Node, len(keyFinal))
	for _, k := range keyFinal {
		entityNodeByID[k.EntityID] = clue.BuildEntityNode(k)
	}
	r.emitClues(cfg, order, candidates, ranked, cfg.Rerank.MaxResults, entityNodeByID)

	if len(ranked) > cfg.Rerank.MaxResults {
		ranked = ranked[:cfg.Rerank.MaxResults]
	}
	return ranked, nil
}

// resolveCandidates runs step 1 (keys->events via the relational join,
// scored by fetching each event's own content vector and cosine-ing it
// against the cached query embedding), step 2 (query->events KNN), and
// step 3's merge (step 1 wins id collisions). An event with no indexed
// vector at all is dropped from step 1 rather than scored at 0.
func (r *EventPageRankReranker) resolveCandidates(
	ctx context.Context, cfg *types.SearchConfig, keyFinal []types.RecalledEntity,
) (map[string]candidateEvent, map[string]float64, error) {
	sourceIDs := cfg.GetSourceConfigIDs()
	keyWeight := make(map[string]float64, len(keyFinal))
	entityIDs := make([]string, 0, len(keyFinal))
	for _, k := range keyFinal {
		keyWeight[k.EntityID] = k.Weight
		entityIDs = append(entityIDs, k.EntityID)
	}

	keyEvents, err := r.Graph.EventsForEntities(ctx, sourceIDs, entityIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("event pagerank: events for keys: %w", err)
	}

	// Step 1 similarity: fetch each key-sourced event's own content (or
	// title) vector in batches and cosine it against the cached query
	// embedding — the global query KNN below is reserved for step 2's
	// query leg, never for scoring events already reached via the
	// entity-join.
	keyEventIDs := make([]string, len(keyEvents))
	for i, ev := range keyEvents {
		keyEventIDs[i] = ev.ID
	}
	keySim, err := batchEventQuerySimilarity(ctx, r.Events, keyEventIDs, cfg.QueryEmbedding)
	if err != nil {
		return nil, nil, fmt.Errorf("event pagerank: key-event similarity: %w", err)
	}

	knnTopK := cfg.Rerank.MaxKeyRecallResults + cfg.Rerank.MaxQueryRecallResults
	hits, err := r.Events.SearchByVector(ctx, sourceIDs, cfg.QueryEmbedding, knnTopK, cfg.Recall.VectorCandidates)
	if err != nil {
		return nil, nil, fmt.Errorf("event pagerank: query KNN: %w", err)
	}

	// Step 1: key-sourced events, tagged with the entities that surfaced
	// each one (needed for the initial-weight formula and for clue
	// emission).
	eventEntities := make(map[string][]string, len(keyEvents))
	for _, ev := range keyEvents {
		linked, err := r.Graph.EntitiesForEvents(ctx, []string{ev.ID})
		if err != nil {
			return nil, nil, fmt.Errorf("event pagerank: entities for event %q: %w", ev.ID, err)
		}
		for _, ent := range linked {
			if _, ok := keyWeight[ent.ID]; ok {
				eventEntities[ev.ID] = append(eventEntities[ev.ID], ent.ID)
			}
		}
	}

	candidates := make(map[string]candidateEvent, len(keyEvents)+len(hits))
	for _, ev := range keyEvents {
		sim, ok := keySim[ev.ID]
		if !ok || sim < cfg.Rerank.ScoreThreshold {
			continue
		}
		candidates[ev.ID] = candidateEvent{event: ev, similarity: sim, source: eventSourceEntity, sourceEntityIDs: eventEntities[ev.ID]}
	}
	if len(candidates) > cfg.Rerank.MaxKeyRecallResults {
		truncateCandidatesBySimilarity(candidates, cfg.Rerank.MaxKeyRecallResults)
	}

	// Step 2: query-sourced events (step 1 wins id collisions).
	queryOnly := make(map[string]candidateEvent)
	for _, hit := range hits {
		if hit.Similarity < cfg.Rerank.ScoreThreshold {
			continue
		}
		if _, exists := candidates[hit.Event.ID]; exists {
			continue
		}
		queryOnly[hit.Event.ID] = candidateEvent{event: hit.Event, similarity: hit.Similarity, source: eventSourceQuery}
	}
	if len(queryOnly) > cfg.Rerank.MaxQueryRecallResults {
		truncateCandidatesBySimilarity(queryOnly, cfg.Rerank.MaxQueryRecallResults)
	}
	for id, c := range queryOnly {
		candidates[id] = c
	}

	return candidates, keyWeight, nil
}

func truncateCandidatesBySimilarity(candidates map[string]candidateEvent, limit int) {
	if limit <= 0 || len(candidates) <= limit {
		return
	}
	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.SliceStable(ids, func(i, j int) bool { return candidates[ids[i]].similarity > candidates[ids[j]].similarity })
	for _, id := range ids[limit:] {
		delete(candidates, id)
	}
}

// eventText concatenates an event's title, summary, and content — the
// length the category-edge weight is computed over.
func eventText(ev types.Event) string {
	return ev.Title + ev.Summary + ev.Content
}

// buildGraphEdges builds the directional entity + category edges
// spec.md §4.3 step 5 describes: an entity edge from event i to event j
// weighted by the entity's recall weight times a case-sensitive
// substring count of the entity's name in event j's concatenated
// title+summary+content, and a category edge between same-category
// events weighted by the target's share of the group's total text
// length. Both are symmetric (i→j and j→i use the same rule against
// each side's own text).
func buildGraphEdges(
	order []string, index map[string]int, candidates map[string]candidateEvent, keyWeight map[string]float64, nameByID map[string]string,
) []numeric.WeightedEdge {
	var edges []numeric.WeightedEdge

	entityEvents := make(map[string][]string)
	for _, id := range order {
		for _, eid := range candidates[id].sourceEntityIDs {
			entityEvents[eid] = append(entityEvents[eid], id)
		}
	}

	for entityID, eventIDs := range entityEvents {
		kappa := keyWeight[entityID]
		name := nameByID[entityID]
		if kappa <= 0 || name == "" {
			continue
		}
		for _, i := range eventIDs {
			for _, j := range eventIDs {
				if i == j {
					continue
				}
				count := occurrenceCount(eventText(candidates[j].event), name)
				if count == 0 {
					continue
				}
				edges = append(edges, numeric.WeightedEdge{From: index[i], To: index[j], Weight: kappa * float64(count)})
			}
		}
	}

	byCategory := make(map[string][]string)
	for _, id := range order {
		cat := candidates[id].event.Category
		if cat == "" {
			continue
		}
		byCategory[cat] = append(byCategory[cat], id)
	}
	for _, group := range byCategory {
		if len(group) < 2 {
			continue
		}
		var totalLen float64
		lens := make(map[string]float64, len(group))
		for _, id := range group {
			l := float64(len(eventText(candidates[id].event)))
			lens[id] = l
			totalLen += l
		}
		if totalLen <= 0 {
			continue
		}
		for _, i := range group {
			for _, j := range group {
				if i == j {
					continue
				}
				weight := 0.1 * lens[j] / totalLen
				if weight <= 0 {
					continue
				}
				edges = append(edges, numeric.WeightedEdge{From: index[i], To: index[j], Weight: weight})
			}
		}
	}

	return edges
}

func occurrenceCount(text, substr string) int {
	if substr == "" {
		return 0
	}
	return strings.Count(text, substr)
}

// emitClues emits final-level clues for the top maxResults events
// (entity->event per source entity, or query->event for query-sourced
// events) and intermediate clues for every other candidate, so the
// full-graph debug view retains the events that didn't make the cut.
func (r *EventPageRankReranker) emitClues(
	cfg *types.SearchConfig, order []string, candidates map[string]candidateEvent, ranked []RankedEvent, maxResults int,
	entityNodeByID map[string]types.Node,
) {
	queryNode := clue.BuildQueryNode(cfg, false)
	topIDs := make(map[string]struct{}, maxResults)
	for i, re := range ranked {
		if i >= maxResults {
			break
		}
		topIDs[re.Event.ID] = struct{}{}
	}

	for _, id := range order {
		c := candidates[id]
		_, isTop := topIDs[id]
		level := types.DisplayLevelIntermediate
		if isTop {
			level = types.DisplayLevelFinal
		}
		eventNode := r.Tracker.GetOrCreateEventNode(c.event, types.StageRerank, nil, "pagerank")
		if c.source == eventSourceQuery || len(c.sourceEntityIDs) == 0 {
			r.Tracker.AddClue(types.StageRerank, queryNode, eventNode, c.similarity, "", level, nil)
			continue
		}
		for _, entityID := range c.sourceEntityIDs {
			entityNode, ok := entityNodeByID[entityID]
			if !ok {
				entityNode = types.Node{ID: entityID, Type: types.NodeTypeEntity}
			}
			r.Tracker.AddClue(types.StageRerank, entityNode, eventNode, c.similarity, "", level, nil)
		}
	}
}
