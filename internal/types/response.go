package types

// RecallStats summarizes one Recall invocation for the response's stats
// block: spec.md §6's `recall:{entities_count, by_type}`, plus the
// mode/events/rewrite bookkeeping this module's Recall stage also
// tracks.
type RecallStats struct {
	Mode             string         `json:"mode"` // "fast" or "full"
	EntitiesCount    int            `json:"entities_count"`
	ByType           map[string]int `json:"by_type"`
	EventsRecalled   int            `json:"events_recalled"`
	QueryRewritten   bool           `json:"query_rewritten"`
}

// ExpandStats summarizes one Expand invocation: spec.md §6's
// `expand:{entities_count, total_entities, hops, converged}`.
type ExpandStats struct {
	EntitiesCount int  `json:"entities_count"` // newly discovered this search
	TotalEntities int  `json:"total_entities"` // recall + expand, the full key_final size
	Hops          int  `json:"hops"`
	Converged     bool `json:"converged"`
	EventsAdded   int  `json:"events_added,omitempty"`
}

// RerankStats summarizes one Rerank invocation: spec.md §6's
// `rerank:{events_count|sections_count, strategy, return_type}`.
type RerankStats struct {
	Strategy                RerankStrategy `json:"strategy"`
	ReturnType              ReturnType     `json:"return_type"`
	CandidatesIn            int            `json:"candidates_in,omitempty"`
	EventsCount             int            `json:"events_count,omitempty"`
	SectionsCount           int            `json:"sections_count,omitempty"`
	Iterations              int            `json:"iterations,omitempty"`
	FellBackToChunkPageRank bool           `json:"fell_back_to_chunk_pagerank,omitempty"`
}

// Stats is the full stats block of the response contract (spec.md §6).
type Stats struct {
	Recall RecallStats `json:"recall"`
	Expand ExpandStats `json:"expand"`
	Rerank RerankStats `json:"rerank"`
}

// QueryInfo reports what the engine actually searched with, so a
// caller can see whether and how the query was rewritten — spec.md §6's
// `query:{original, current, rewritten: bool}`.
type QueryInfo struct {
	Original  string `json:"original"`
	Current   string `json:"current"`
	Rewritten bool   `json:"rewritten"`
}

// Response is the top-level result of a search: either Events or
// Chunks depending on SearchConfig.ReturnType, plus the full clue
// graph and the stats/query provenance blocks.
type Response struct {
	Events   []Event `json:"events,omitempty"`
	Sections []Chunk `json:"sections,omitempty"`
	Clues    []Clue  `json:"clues"`
	Stats    Stats   `json:"stats"`
	Query    QueryInfo `json:"query"`
}
