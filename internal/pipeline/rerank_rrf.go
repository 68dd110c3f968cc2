package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/clueweave/clueweave/internal/clue"
	"github.com/clueweave/clueweave/internal/numeric"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

// rrfCandidateEvent is one event surviving spec.md §4.5 step 1 — the
// entities -> EventEntity -> Events join, deduped, with the source
// entity ids (from key_final) that surfaced it.
type rrfCandidateEvent struct {
	event           types.Event
	sourceEntityIDs []string
}

// rrfSurvivor is a candidate event that passed the embedding-similarity
// threshold and is carried into the BM25/fusion stages.
type rrfSurvivor struct {
	candidate  rrfCandidateEvent
	similarity float64
}

// rrfFusedEntry pairs a survivor's index with its combined RRF score.
type rrfFusedEntry struct {
	index int
	score float64
}

// RRFReranker implements spec.md §4.5: fuses an embedding-similarity
// ranking over title/content vectors with a BM25 keyword ranking via
// Reciprocal Rank Fusion, grounded on
// original_source/sag/modules/search/ranking/rrf.py.
type RRFReranker struct {
	Graph     interfaces.EntityGraphRepo
	Events    interfaces.EventVectorRepo
	Tokenizer *numeric.Tokenizer
	Tracker   *clue.Tracker
}

// NewRRFReranker wires an RRFReranker.
func NewRRFReranker(
	graph interfaces.EntityGraphRepo, events interfaces.EventVectorRepo, tokenizer *numeric.Tokenizer, tracker *clue.Tracker,
) *RRFReranker {
	return &RRFReranker{Graph: graph, Events: events, Tokenizer: tokenizer, Tracker: tracker}
}

// RankedEventRRF is one RRF-scored event in the final output order.
type RankedEventRRF struct {
	Event types.Event
	Score float64
}

// Rerank runs spec.md §4.5's five steps and returns the top
// cfg.Rerank.MaxResults events by fused RRF score.
func (r *RRFReranker) Rerank(ctx context.Context, cfg *types.SearchConfig, keyFinal []types.RecalledEntity) ([]RankedEventRRF, error) {
	order, candidates, err := r.resolveCandidates(ctx, cfg, keyFinal)
	if err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, nil
	}

	vectors, err := r.Events.GetVectorsByIDs(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("rrf rerank: event vectors: %w", err)
	}

	survivors := make([]rrfSurvivor, 0, len(order))
	for _, id := range order {
		vecs, hasVecs := vectors[id]
		var titleSim, contentSim float64
		var hasTitle, hasContent bool
		if hasVecs {
			if len(vecs.TitleVector) > 0 {
				titleSim = numeric.Cosine(cfg.QueryEmbedding, vecs.TitleVector)
				hasTitle = true
			}
			if len(vecs.ContentVector) > 0 {
				contentSim = numeric.Cosine(cfg.QueryEmbedding, vecs.ContentVector)
				hasContent = true
			}
		}
		if !hasTitle && !hasContent {
			// Both vectors missing: the event is dropped entirely, not
			// scored at zero (spec.md §4.5 step 2).
			continue
		}
		similarity := 0.2*titleSim + 0.8*contentSim
		if similarity < cfg.Rerank.ScoreThreshold {
			continue
		}
		survivors = append(survivors, rrfSurvivor{candidate: candidates[id], similarity: similarity})
	}
	if len(survivors) == 0 {
		return nil, nil
	}

	docs := make([][]string, len(survivors))
	for i, s := range survivors {
		docs[i] = r.Tokenizer.Tokenize(eventText(s.candidate.event))
	}
	bm25 := numeric.NewBM25Index(docs)
	bm25Scores := bm25.Scores(r.Tokenizer.Tokenize(cfg.Query))

	embSim := make([]float64, len(survivors))
	for i, s := range survivors {
		embSim[i] = s.similarity
	}
	embRanks := numeric.RankPositions(embSim)
	bm25Ranks := numeric.RankPositions(bm25Scores)

	fused := make([]rrfFusedEntry, len(survivors))
	for i := range survivors {
		fused[i] = rrfFusedEntry{index: i, score: numeric.RRFScore(embRanks[i], bm25Ranks[i], cfg.Rerank.RRFK)}
	}
	// Stable sort preserves the merged list's insertion order on ties,
	// satisfying spec.md's tie-break rule without an extra id compare.
	sort.SliceStable(fused, func(i, j int) bool { return fused[i].score > fused[j].score })

	ranked := make([]RankedEventRRF, len(fused))
	for i, f := range fused {
		ranked[i] = RankedEventRRF{Event: survivors[f.index].candidate.event, Score: f.score}
	}

	entityNodeByID := make(map[string]types.Node, len(keyFinal))
	for _, k := range keyFinal {
		entityNodeByID[k.EntityID] = clue.BuildEntityNode(k)
	}
	r.emitClues(cfg, survivors, fused, cfg.Rerank.MaxResults, entityNodeByID)

	if len(ranked) > cfg.Rerank.MaxResults {
		ranked = ranked[:cfg.Rerank.MaxResults]
	}
	return ranked, nil
}

// resolveCandidates implements spec.md §4.5 step 1: entities ->
// EventEntity -> Events, scope-filtered, deduped by event id, each
// tagged with the key_final entity ids that surfaced it.
func (r *RRFReranker) resolveCandidates(
	ctx context.Context, cfg *types.SearchConfig, keyFinal []types.RecalledEntity,
) ([]string, map[string]rrfCandidateEvent, error) {
	sourceIDs := cfg.GetSourceConfigIDs()
	keyIDs := make(map[string]struct{}, len(keyFinal))
	entityIDs := make([]string, 0, len(keyFinal))
	for _, k := range keyFinal {
		keyIDs[k.EntityID] = struct{}{}
		entityIDs = append(entityIDs, k.EntityID)
	}

	events, err := r.Graph.EventsForEntities(ctx, sourceIDs, entityIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("rrf rerank: events for keys: %w", err)
	}

	order := make([]string, 0, len(events))
	candidates := make(map[string]rrfCandidateEvent, len(events))
	for _, ev := range events {
		if _, seen := candidates[ev.ID]; seen {
			continue
		}
		linked, err := r.Graph.EntitiesForEvents(ctx, []string{ev.ID})
		if err != nil {
			return nil, nil, fmt.Errorf("rrf rerank: entities for event %q: %w", ev.ID, err)
		}
		ids := make([]string, 0, len(linked))
		for _, ent := range linked {
			if _, ok := keyIDs[ent.ID]; ok {
				ids = append(ids, ent.ID)
			}
		}
		sort.Strings(ids)
		candidates[ev.ID] = rrfCandidateEvent{event: ev, sourceEntityIDs: ids}
		order = append(order, ev.ID)
	}

	return order, candidates, nil
}

// emitClues emits entity->event clues: intermediate for the top
// 3*maxResults fused candidates, final for the top maxResults — spec.md
// §4.5's closing paragraph.
func (r *RRFReranker) emitClues(
	cfg *types.SearchConfig, survivors []rrfSurvivor, fused []rrfFusedEntry, maxResults int, entityNodeByID map[string]types.Node,
) {
	queryNode := clue.BuildQueryNode(cfg, false)
	intermediateLimit := 3 * maxResults

	for i, f := range fused {
		if intermediateLimit > 0 && i >= intermediateLimit {
			break
		}
		level := types.DisplayLevelIntermediate
		if i < maxResults {
			level = types.DisplayLevelFinal
		}

		s := survivors[f.index]
		eventNode := r.Tracker.GetOrCreateEventNode(s.candidate.event, types.StageRerank, nil, "rrf")

		if len(s.candidate.sourceEntityIDs) == 0 {
			r.Tracker.AddClue(types.StageRerank, queryNode, eventNode, f.score, "", level, nil)
			continue
		}
		for _, entityID := range s.candidate.sourceEntityIDs {
			entityNode, ok := entityNodeByID[entityID]
			if !ok {
				entityNode = types.Node{ID: entityID, Type: types.NodeTypeEntity}
			}
			r.Tracker.AddClue(types.StageRerank, entityNode, eventNode, f.score, "", level, nil)
		}
	}
}
