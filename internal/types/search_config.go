package types

// ReturnType selects whether Rerank returns Events or the Chunks they
// were extracted from.
type ReturnType string

const (
	ReturnTypeEvent     ReturnType = "EVENT"
	ReturnTypeParagraph ReturnType = "PARAGRAPH"
)

// RerankStrategy selects the Rerank algorithm.
type RerankStrategy string

const (
	RerankStrategyPageRank RerankStrategy = "PAGERANK"
	RerankStrategyRRF      RerankStrategy = "RRF"
)

// RecallConfig parameterizes the Recall stage (spec.md §4.1, §6).
type RecallConfig struct {
	UseFastMode              bool    `json:"use_fast_mode" mapstructure:"use_fast_mode"`
	VectorTopK               int     `json:"vector_top_k" mapstructure:"vector_top_k"`
	VectorCandidates         int     `json:"vector_candidates" mapstructure:"vector_candidates"`
	EntitySimilarityThreshold float64 `json:"entity_similarity_threshold" mapstructure:"entity_similarity_threshold"`
	EventSimilarityThreshold  float64 `json:"event_similarity_threshold" mapstructure:"event_similarity_threshold"`
	MaxEntities              int     `json:"max_entities" mapstructure:"max_entities"`
	MaxEvents                int     `json:"max_events" mapstructure:"max_events"`
	EntityWeightThreshold    float64 `json:"entity_weight_threshold" mapstructure:"entity_weight_threshold"`
	FinalEntityCount         int     `json:"final_entity_count" mapstructure:"final_entity_count"`
}

// ExpandConfig parameterizes the Expand stage (spec.md §4.2, §6).
type ExpandConfig struct {
	Enabled                bool    `json:"enabled" mapstructure:"enabled"`
	MaxHops                int     `json:"max_hops" mapstructure:"max_hops"`
	EntitiesPerHop         int     `json:"entities_per_hop" mapstructure:"entities_per_hop"`
	WeightChangeThreshold  float64 `json:"weight_change_threshold" mapstructure:"weight_change_threshold"`
	EventSimilarityThreshold float64 `json:"event_similarity_threshold" mapstructure:"event_similarity_threshold"`
	MinEventsPerHop        int     `json:"min_events_per_hop" mapstructure:"min_events_per_hop"`
	MaxEventsPerHop        int     `json:"max_events_per_hop" mapstructure:"max_events_per_hop"`
}

// RerankConfig parameterizes the three Rerank strategies (spec.md §4.3-4.5, §6).
type RerankConfig struct {
	Strategy               RerankStrategy `json:"strategy" mapstructure:"strategy"`
	ScoreThreshold         float64        `json:"score_threshold" mapstructure:"score_threshold"`
	MaxResults             int            `json:"max_results" mapstructure:"max_results"`
	MaxKeyRecallResults    int            `json:"max_key_recall_results" mapstructure:"max_key_recall_results"`
	MaxQueryRecallResults  int            `json:"max_query_recall_results" mapstructure:"max_query_recall_results"`
	PageRankDampingFactor  float64        `json:"pagerank_damping_factor" mapstructure:"pagerank_damping_factor"`
	PageRankMaxIterations  int            `json:"pagerank_max_iterations" mapstructure:"pagerank_max_iterations"`
	RRFK                   int            `json:"rrf_k" mapstructure:"rrf_k"`
}

// DefaultRecallConfig mirrors the original implementation's defaults
// (sag/modules/search/config.py), adapted to Go field names.
func DefaultRecallConfig() RecallConfig {
	return RecallConfig{
		UseFastMode:               false,
		VectorTopK:                20,
		VectorCandidates:          200,
		EntitySimilarityThreshold: 0.65,
		EventSimilarityThreshold:  0.60,
		MaxEntities:               30,
		MaxEvents:                 50,
		EntityWeightThreshold:     0.3,
		FinalEntityCount:          0,
	}
}

// DefaultExpandConfig mirrors the original's Expand defaults.
func DefaultExpandConfig() ExpandConfig {
	return ExpandConfig{
		Enabled:                  true,
		MaxHops:                  2,
		EntitiesPerHop:           10,
		WeightChangeThreshold:    0.01,
		EventSimilarityThreshold: 0.55,
		MinEventsPerHop:          1,
		MaxEventsPerHop:          50,
	}
}

// DefaultRerankConfig mirrors the original's Rerank defaults, including
// the RRF constant k=60 and PageRank damping=0.85 confirmed against
// original_source/sag/modules/search/ranking/{rrf,pagerank}.py.
func DefaultRerankConfig() RerankConfig {
	return RerankConfig{
		Strategy:              RerankStrategyPageRank,
		ScoreThreshold:        0.5,
		MaxResults:            10,
		MaxKeyRecallResults:   50,
		MaxQueryRecallResults: 50,
		PageRankDampingFactor: 0.85,
		PageRankMaxIterations: 100,
		RRFK:                  60,
	}
}

// SearchConfig is the threaded state that flows through the pipeline:
// query text, source scopes, per-stage sub-configs, and the accumulating
// clue list and caches (query embedding, recalled keys).
type SearchConfig struct {
	Query              string   `json:"query"`
	OriginalQuery      string   `json:"original_query,omitempty"`
	SourceConfigID     string   `json:"source_config_id,omitempty"`
	SourceConfigIDs    []string `json:"source_config_ids,omitempty"`
	ReturnType         ReturnType `json:"return_type"`
	EnableQueryRewrite bool     `json:"enable_query_rewrite"`

	Recall RecallConfig `json:"recall"`
	Expand ExpandConfig `json:"expand"`
	Rerank RerankConfig `json:"rerank"`

	// Caches threaded across stages within one search.
	QueryEmbedding    []float32 `json:"-"`
	HasQueryEmbedding bool      `json:"-"`
	QueryRecalledKeys []RecalledEntity `json:"-"`
	EntityNodeCache   map[string]Node  `json:"-"`

	// AllClues accumulates every clue emitted by every stage, in
	// add-order; duplicates are resolved in place by priority
	// replacement (see internal/clue).
	AllClues []Clue `json:"-"`
}

// RecalledEntity is the shape Recall/Expand pass between steps:
// an entity id plus its derived weight, similarity, and provenance.
type RecalledEntity struct {
	EntityID        string  `json:"entity_id"`
	Name            string  `json:"name"`
	Type            string  `json:"type"`
	Description     string  `json:"description,omitempty"`
	Similarity      float64 `json:"similarity,omitempty"`
	Weight          float64 `json:"weight,omitempty"`
	SourceAttribute string  `json:"source_attribute,omitempty"`
	TypeThreshold   float64 `json:"type_threshold,omitempty"`
	FinalThreshold  float64 `json:"final_threshold,omitempty"`
	Hop             int     `json:"hop"`
	Steps           []int   `json:"steps,omitempty"`
	ParentEntityID  string  `json:"parent_entity_id,omitempty"`
}

// GetSourceConfigIDs returns the union of SourceConfigID and
// SourceConfigIDs, matching the original's get_source_config_ids helper.
func (c *SearchConfig) GetSourceConfigIDs() []string {
	ids := make([]string, 0, len(c.SourceConfigIDs)+1)
	seen := make(map[string]struct{}, len(c.SourceConfigIDs)+1)
	if c.SourceConfigID != "" {
		ids = append(ids, c.SourceConfigID)
		seen[c.SourceConfigID] = struct{}{}
	}
	for _, id := range c.SourceConfigIDs {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// EnsureDefaults fills unset sub-configs with their package defaults,
// so a caller building SearchConfig by hand only needs to set Query and
// source scopes.
func (c *SearchConfig) EnsureDefaults() {
	if c.Recall.MaxEntities == 0 && c.Recall.VectorTopK == 0 {
		c.Recall = DefaultRecallConfig()
	}
	if c.Expand.MaxHops == 0 && !c.Expand.Enabled {
		c.Expand = DefaultExpandConfig()
	}
	if c.Rerank.Strategy == "" {
		c.Rerank = DefaultRerankConfig()
	}
	if c.ReturnType == "" {
		c.ReturnType = ReturnTypeEvent
	}
	if c.EntityNodeCache == nil {
		c.EntityNodeCache = make(map[string]Node)
	}
}
