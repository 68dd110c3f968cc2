package pipeline

import (
	"context"
	"fmt"

	"github.com/clueweave/clueweave/internal/clue"
	"github.com/clueweave/clueweave/internal/logger"
	"github.com/clueweave/clueweave/internal/types"
)

// Engine drives one full search: Recall -> Expand -> Rerank, dispatched
// by SearchConfig.Rerank.Strategy and SearchConfig.ReturnType, and
// assembles the final Response/Stats contract (spec.md §6).
//
// Grounded on the orchestration shape of
// original_source/sag/modules/search (a recall/expand/rank pipeline
// driven by one engine entrypoint), expressed with the teacher's
// constructor-injection style (chat_pipline's stage wiring).
type Engine struct {
	Recaller      *Recaller
	Expander      *Expander
	EventPageRank *EventPageRankReranker
	ChunkPageRank *ChunkPageRankReranker
	RRF           *RRFReranker
	Tracker       *clue.Tracker
}

// NewEngine assembles an Engine from already-constructed stage objects
// — each stage's own dependencies (embedder, chat client, tokenizer)
// are wired independently by the caller (cmd/retrievalctl or the
// service container), since they vary per deployment.
func NewEngine(
	recaller *Recaller, expander *Expander,
	eventPageRank *EventPageRankReranker, chunkPageRank *ChunkPageRankReranker, rrf *RRFReranker,
	tracker *clue.Tracker,
) *Engine {
	return &Engine{
		Recaller:      recaller,
		Expander:      expander,
		EventPageRank: eventPageRank,
		ChunkPageRank: chunkPageRank,
		RRF:           rrf,
		Tracker:       tracker,
	}
}

// Search runs the full pipeline and returns the response contract.
func (e *Engine) Search(ctx context.Context, cfg *types.SearchConfig) (*types.Response, error) {
	cfg.EnsureDefaults()

	recall, err := e.Recaller.Recall(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("search: recall: %w", err)
	}

	expand, err := e.Expander.Expand(ctx, cfg, recall)
	if err != nil {
		return nil, fmt.Errorf("search: expand: %w", err)
	}

	resp := &types.Response{
		Clues: cfg.AllClues,
		Query: BuildQueryInfo(cfg),
	}

	rerankStats, err := e.rerank(ctx, cfg, expand, resp)
	if err != nil {
		return nil, fmt.Errorf("search: rerank: %w", err)
	}
	resp.Stats = BuildStats(cfg, recall, expand, rerankStats)

	resp.Clues = cfg.AllClues
	return resp, nil
}

// rerank dispatches to the configured strategy, honoring the
// PARAGRAPH+RRF fallback: the original RRF reranker only ever returns
// events, so a paragraph request under the RRF strategy falls back to
// the chunk PageRank reranker instead of failing the request.
func (e *Engine) rerank(ctx context.Context, cfg *types.SearchConfig, expand *ExpandResult, resp *types.Response) (types.RerankStats, error) {
	fellBack := false

	switch {
	case cfg.ReturnType == types.ReturnTypeParagraph:
		if cfg.Rerank.Strategy == types.RerankStrategyRRF {
			logger.Warnf(ctx, "RRF reranker has no paragraph mode; falling back to chunk PageRank for source_config_ids=%v", cfg.GetSourceConfigIDs())
			fellBack = true
		}
		ranked, err := e.ChunkPageRank.Rerank(ctx, cfg, expand.KeyFinal)
		if err != nil {
			return types.RerankStats{}, err
		}
		resp.Sections = make([]types.Chunk, len(ranked))
		for i, r := range ranked {
			resp.Sections[i] = r.Chunk
		}
		return types.RerankStats{
			Strategy:                types.RerankStrategyPageRank,
			ReturnType:              cfg.ReturnType,
			SectionsCount:           len(ranked),
			FellBackToChunkPageRank: fellBack,
		}, nil

	case cfg.Rerank.Strategy == types.RerankStrategyRRF:
		ranked, err := e.RRF.Rerank(ctx, cfg, expand.KeyFinal)
		if err != nil {
			return types.RerankStats{}, err
		}
		resp.Events = make([]types.Event, len(ranked))
		for i, r := range ranked {
			resp.Events[i] = r.Event
		}
		return types.RerankStats{Strategy: types.RerankStrategyRRF, ReturnType: cfg.ReturnType, EventsCount: len(ranked)}, nil

	default:
		ranked, err := e.EventPageRank.Rerank(ctx, cfg, expand.KeyFinal)
		if err != nil {
			return types.RerankStats{}, err
		}
		resp.Events = make([]types.Event, len(ranked))
		for i, r := range ranked {
			resp.Events[i] = r.Event
		}
		return types.RerankStats{Strategy: types.RerankStrategyPageRank, ReturnType: cfg.ReturnType, EventsCount: len(ranked)}, nil
	}
}

func recallMode(cfg *types.SearchConfig) string {
	if cfg.Recall.UseFastMode {
		return "fast"
	}
	return "full"
}
