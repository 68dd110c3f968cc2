package pipeline

import "github.com/clueweave/clueweave/internal/types"

// BuildStats assembles the exact {recall, expand, rerank} shape spec.md
// §6 defines for the response contract. Factored out of Engine.Search
// because three call sites (the direct pipeline run, cmd/retrievalctl,
// and any future service layer) need the identical shape, grounded on
// TaskResult.to_dict's analogous per-stage assembly in
// original_source/sag/engine/models.py.
func BuildStats(cfg *types.SearchConfig, recall *RecallResult, expand *ExpandResult, rerank types.RerankStats) types.Stats {
	return types.Stats{
		Recall: buildRecallStats(cfg, recall),
		Expand: buildExpandStats(recall, expand),
		Rerank: rerank,
	}
}

func buildRecallStats(cfg *types.SearchConfig, recall *RecallResult) types.RecallStats {
	byType := make(map[string]int)
	for _, entity := range recall.KeyFinal {
		byType[entity.Type]++
	}
	return types.RecallStats{
		Mode:           recallMode(cfg),
		EntitiesCount:  len(recall.KeyFinal),
		ByType:         byType,
		EventsRecalled: len(recall.EventFinal),
		QueryRewritten: cfg.OriginalQuery != "" && cfg.OriginalQuery != cfg.Query,
	}
}

func buildExpandStats(recall *RecallResult, expand *ExpandResult) types.ExpandStats {
	return types.ExpandStats{
		EntitiesCount: len(expand.KeyFinal) - len(recall.KeyFinal),
		TotalEntities: len(expand.KeyFinal),
		Hops:          expand.HopsRun,
		Converged:     expand.ConvergenceReached,
	}
}

// BuildQueryInfo assembles the {original, current, rewritten} block
// spec.md §6 defines for the response contract's query field.
func BuildQueryInfo(cfg *types.SearchConfig) types.QueryInfo {
	original := cfg.OriginalQuery
	if original == "" {
		original = cfg.Query
	}
	return types.QueryInfo{
		Original:  original,
		Current:   cfg.Query,
		Rewritten: original != cfg.Query,
	}
}
