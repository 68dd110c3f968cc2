package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/clueweave/clueweave/internal/clue"
	"github.com/clueweave/clueweave/internal/numeric"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

// candidateChunk is one chunk surviving the S1/S2 merge — the chunk
// PageRank reranker's analogue of candidateEvent. Chunks carry no
// category, so there is no category-edge counterpart here.
type candidateChunk struct {
	chunk           types.Chunk
	similarity      float64
	source          eventSource
	sourceEntityIDs []string
}

// ChunkPageRankReranker implements spec.md §4.4: the same skeleton as
// the Event PageRank reranker, walked one hop further down
// (entity -> event -> event.chunk_id -> SourceChunk) and with
// entity-only graph edges (chunks have no category to build a
// category-edge graph over).
type ChunkPageRankReranker struct {
	Graph   interfaces.EntityGraphRepo
	Chunks  interfaces.ChunkVectorRepo
	Tracker *clue.Tracker
}

// NewChunkPageRankReranker wires a ChunkPageRankReranker.
func NewChunkPageRankReranker(graph interfaces.EntityGraphRepo, chunks interfaces.ChunkVectorRepo, tracker *clue.Tracker) *ChunkPageRankReranker {
	return &ChunkPageRankReranker{Graph: graph, Chunks: chunks, Tracker: tracker}
}

// RankedChunk is one PageRank-scored chunk in the final output order.
// Weight is the S4 content/entity weight that seeded PageRank; Score is
// the converged PageRank value — spec.md §4.4 asks for both attached to
// the returned record.
type RankedChunk struct {
	Chunk  types.Chunk
	Weight float64
	Score  float64
}

// Rerank runs the chunk analogue of spec.md §4.3's steps 1-6 and
// returns the top cfg.Rerank.MaxResults chunks by PageRank score.
func (r *ChunkPageRankReranker) Rerank(ctx context.Context, cfg *types.SearchConfig, keyFinal []types.RecalledEntity) ([]RankedChunk, error) {
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

	initWeight := make([]float64, len(order))
	for i, id := range order {
		c := candidates[id]
		var entitySum float64
		for _, eid := range c.sourceEntityIDs {
			entitySum += keyWeight[eid]
		}
		initWeight[i] = 0.5*c.similarity + math.Log(1+entitySum)
	}

	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}
	nameByID := make(map[string]string, len(keyFinal))
	for _, k := range keyFinal {
		nameByID[k.EntityID] = k.Name
	}
	edges := buildChunkGraphEdges(order, index, candidates, keyWeight, nameByID)

	graph := numeric.NewGraph(len(order), edges)
	prCfg := numeric.PageRankConfig{
		Damping:       cfg.Rerank.PageRankDampingFactor,
		MaxIterations: cfg.Rerank.PageRankMaxIterations,
		Tolerance:     numeric.DefaultPageRankConfig().Tolerance,
	}
	scores := graph.Run(initWeight, prCfg)

	ranked := make([]RankedChunk, len(order))
	for i, id := range order {
		ranked[i] = RankedChunk{Chunk: candidates[id].chunk, Weight: initWeight[i], Score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

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

// resolveCandidates walks entity -> event -> event.chunk_id ->
// SourceChunk (step 1), merges in a query->chunk KNN leg (step 2), and
// dedupes by chunk_id (step 3) — step 1 wins id collisions.
func (r *ChunkPageRankReranker) resolveCandidates(
	ctx context.Context, cfg *types.SearchConfig, keyFinal []types.RecalledEntity,
) (map[string]candidateChunk, map[string]float64, error) {
	sourceIDs := cfg.GetSourceConfigIDs()
	keyWeight := make(map[string]float64, len(keyFinal))
	entityIDs := make([]string, 0, len(keyFinal))
	for _, k := range keyFinal {
		keyWeight[k.EntityID] = k.Weight
		entityIDs = append(entityIDs, k.EntityID)
	}

	keyEvents, err := r.Graph.EventsForEntities(ctx, sourceIDs, entityIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("chunk pagerank: events for keys: %w", err)
	}
	eventIDs := make([]string, len(keyEvents))
	for i, ev := range keyEvents {
		eventIDs[i] = ev.ID
	}

	chunkByEvent, err := r.Graph.ChunksForEvents(ctx, eventIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("chunk pagerank: chunks for events: %w", err)
	}

	// For every key event, the entities (from key_final) that surfaced
	// it feed that event's chunk's source-entity set.
	chunkEntityIDs := make(map[string]map[string]struct{})
	for _, ev := range keyEvents {
		chunk, ok := chunkByEvent[ev.ID]
		if !ok {
			continue
		}
		linked, err := r.Graph.EntitiesForEvents(ctx, []string{ev.ID})
		if err != nil {
			return nil, nil, fmt.Errorf("chunk pagerank: entities for event %q: %w", ev.ID, err)
		}
		set, ok := chunkEntityIDs[chunk.ID]
		if !ok {
			set = make(map[string]struct{})
			chunkEntityIDs[chunk.ID] = set
		}
		for _, ent := range linked {
			if _, ok := keyWeight[ent.ID]; ok {
				set[ent.ID] = struct{}{}
			}
		}
	}

	knnTopK := cfg.Rerank.MaxKeyRecallResults + cfg.Rerank.MaxQueryRecallResults
	hits, err := r.Chunks.SearchByVector(ctx, sourceIDs, cfg.QueryEmbedding, knnTopK, cfg.Recall.VectorCandidates)
	if err != nil {
		return nil, nil, fmt.Errorf("chunk pagerank: query KNN: %w", err)
	}
	querySim := make(map[string]float64, len(hits))
	for _, hit := range hits {
		querySim[hit.Chunk.ID] = hit.Similarity
	}

	candidates := make(map[string]candidateChunk, len(chunkEntityIDs)+len(hits))
	for chunkID, entitySet := range chunkEntityIDs {
		chunk, ok := findChunk(chunkByEvent, chunkID)
		if !ok {
			continue
		}
		sim := querySim[chunkID]
		if sim < cfg.Rerank.ScoreThreshold {
			continue
		}
		ids := make([]string, 0, len(entitySet))
		for eid := range entitySet {
			ids = append(ids, eid)
		}
		sort.Strings(ids)
		candidates[chunkID] = candidateChunk{chunk: chunk, similarity: sim, source: eventSourceEntity, sourceEntityIDs: ids}
	}
	if len(candidates) > cfg.Rerank.MaxKeyRecallResults {
		truncateChunkCandidatesBySimilarity(candidates, cfg.Rerank.MaxKeyRecallResults)
	}

	queryOnly := make(map[string]candidateChunk)
	for _, hit := range hits {
		if hit.Similarity < cfg.Rerank.ScoreThreshold {
			continue
		}
		if _, exists := candidates[hit.Chunk.ID]; exists {
			continue
		}
		queryOnly[hit.Chunk.ID] = candidateChunk{chunk: hit.Chunk, similarity: hit.Similarity, source: eventSourceQuery}
	}
	if len(queryOnly) > cfg.Rerank.MaxQueryRecallResults {
		truncateChunkCandidatesBySimilarity(queryOnly, cfg.Rerank.MaxQueryRecallResults)
	}
	for id, c := range queryOnly {
		candidates[id] = c
	}

	return candidates, keyWeight, nil
}

// findChunk recovers a Chunk by id from the event->chunk map built
// during step 1 (chunkByEvent values are not individually indexed by
// chunk id, since several events can share one chunk).
func findChunk(chunkByEvent map[string]types.Chunk, chunkID string) (types.Chunk, bool) {
	for _, c := range chunkByEvent {
		if c.ID == chunkID {
			return c, true
		}
	}
	return types.Chunk{}, false
}

func truncateChunkCandidatesBySimilarity(candidates map[string]candidateChunk, limit int) {
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

// chunkText concatenates a chunk's heading and content — the text the
// entity-occurrence count is taken over.
func chunkText(c types.Chunk) string {
	return c.Heading + c.Content
}

// buildChunkGraphEdges builds the entity-only directional graph spec.md
// §4.4 describes: no category edges, since chunks carry no category.
func buildChunkGraphEdges(
	order []string, index map[string]int, candidates map[string]candidateChunk, keyWeight map[string]float64, nameByID map[string]string,
) []numeric.WeightedEdge {
	var edges []numeric.WeightedEdge

	entityChunks := make(map[string][]string)
	for _, id := range order {
		for _, eid := range candidates[id].sourceEntityIDs {
			entityChunks[eid] = append(entityChunks[eid], id)
		}
	}

	for entityID, chunkIDs := range entityChunks {
		kappa := keyWeight[entityID]
		name := nameByID[entityID]
		if kappa <= 0 || name == "" {
			continue
		}
		for _, i := range chunkIDs {
			for _, j := range chunkIDs {
				if i == j {
					continue
				}
				count := occurrenceCount(chunkText(candidates[j].chunk), name)
				if count == 0 {
					continue
				}
				edges = append(edges, numeric.WeightedEdge{From: index[i], To: index[j], Weight: kappa * float64(count)})
			}
		}
	}

	return edges
}

// emitClues mirrors the event reranker's clue emission, targeting
// section (chunk) nodes instead of event nodes.
func (r *ChunkPageRankReranker) emitClues(
	cfg *types.SearchConfig, order []string, candidates map[string]candidateChunk, ranked []RankedChunk, maxResults int,
	entityNodeByID map[string]types.Node,
) {
	queryNode := clue.BuildQueryNode(cfg, false)
	topIDs := make(map[string]struct{}, maxResults)
	for i, rc := range ranked {
		if i >= maxResults {
			break
		}
		topIDs[rc.Chunk.ID] = struct{}{}
	}

	for _, id := range order {
		c := candidates[id]
		_, isTop := topIDs[id]
		level := types.DisplayLevelIntermediate
		if isTop {
			level = types.DisplayLevelFinal
		}
		sectionNode := clue.BuildSectionNode(c.chunk)
		if c.source == eventSourceQuery || len(c.sourceEntityIDs) == 0 {
			r.Tracker.AddClue(types.StageRerank, queryNode, sectionNode, c.similarity, "", level, nil)
			continue
		}
		for _, entityID := range c.sourceEntityIDs {
			entityNode, ok := entityNodeByID[entityID]
			if !ok {
				entityNode = types.Node{ID: entityID, Type: types.NodeTypeEntity}
			}
			r.Tracker.AddClue(types.StageRerank, entityNode, sectionNode, c.similarity, "", level, nil)
		}
	}
}
