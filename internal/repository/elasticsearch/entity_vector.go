package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	estypes "github.com/elastic/go-elasticsearch/v8/typedapi/types"

	"github.com/clueweave/clueweave/internal/logger"
	"github.com/clueweave/clueweave/internal/types"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

// EntityVectorRepo implements interfaces.EntityVectorRepo over an
// Elasticsearch v8 typed client, grounded on the teacher's
// elasticsearchRepository.VectorRetrieve (script_score cosine query).
type EntityVectorRepo struct {
	client *elasticsearch.TypedClient
	index  string
}

// NewEntityVectorRepo wires an EntityVectorRepo and ensures its index
// exists, matching the teacher's NewElasticsearchEngineRepository.
func NewEntityVectorRepo(client *elasticsearch.TypedClient, index string) *EntityVectorRepo {
	if err := ensureIndex(context.Background(), client, index); err != nil {
		logger.GetLogger(context.Background()).Errorf("[Elasticsearch] entity index init: %v", err)
	}
	return &EntityVectorRepo{client: client, index: index}
}

var _ interfaces.EntityVectorRepo = (*EntityVectorRepo)(nil)

func (r *EntityVectorRepo) SearchByVector(
	ctx context.Context, sourceConfigIDs []string, queryVector []float32, topK, candidates int,
) ([]interfaces.ScoredEntity, error) {
	log := logger.GetLogger(ctx)
	queryVectorJSON, err := json.Marshal(queryVector)
	if err != nil {
		return nil, fmt.Errorf("marshal query embedding: %w", err)
	}

	scoreSource := "cosineSimilarity(params.query_vector, 'embedding')"
	scriptScore := &estypes.ScriptScoreQuery{
		Query: estypes.Query{Bool: &estypes.BoolQuery{Filter: scopeFilter(sourceConfigIDs)}},
		Script: estypes.Script{
			Source: &scoreSource,
			Params: map[string]json.RawMessage{"query_vector": json.RawMessage(queryVectorJSON)},
		},
	}

	size := candidates
	response, err := r.client.Search().Index(r.index).Request(&search.Request{
		Query: &estypes.Query{ScriptScore: scriptScore},
		Size:  &size,
	}).Do(ctx)
	if err != nil {
		log.Errorf("[Elasticsearch] Entity vector search failed: %v", err)
		return nil, err
	}

	hits := make([]interfaces.ScoredEntity, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		var doc entityDoc
		if err := json.Unmarshal(hit.Source_, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal entity hit: %w", err)
		}
		hits = append(hits, interfaces.ScoredEntity{
			Entity: types.Entity{
				ID:             doc.EntityID,
				SourceScopeID:  doc.SourceScopeID,
				Type:           doc.Type,
				NormalizedName: doc.NormalizedName,
				DisplayName:    doc.DisplayName,
				Description:    doc.Description,
			},
			Similarity: float64(*hit.Score_),
		})
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (r *EntityVectorRepo) Upsert(ctx context.Context, entity types.Entity, vector []float32) error {
	doc := entityDoc{
		EntityID:       entity.ID,
		SourceScopeID:  entity.SourceScopeID,
		Type:           entity.Type,
		NormalizedName: entity.NormalizedName,
		DisplayName:    entity.DisplayName,
		Description:    entity.Description,
		Embedding:      vector,
	}
	_, err := r.client.Index(r.index).Id(entity.ID).Request(doc).Do(ctx)
	if err != nil {
		logger.GetLogger(ctx).Errorf("[Elasticsearch] Failed to upsert entity %s: %v", entity.ID, err)
	}
	return err
}

func (r *EntityVectorRepo) DeleteBySourceConfigIDs(ctx context.Context, sourceConfigIDs []string) error {
	if len(sourceConfigIDs) == 0 {
		return nil
	}
	_, err := r.client.DeleteByQuery(r.index).Query(&estypes.Query{
		Terms: &estypes.TermsQuery{
			TermsQuery: map[string]estypes.TermsQueryField{"source_scope_id.keyword": sourceConfigIDs},
		},
	}).Do(ctx)
	if err != nil {
		logger.GetLogger(ctx).Errorf("[Elasticsearch] Failed to delete entity vectors for %v: %v", sourceConfigIDs, err)
	}
	return err
}

// scopeFilter is the shared "restrict to these source scopes" clause
// the three vector repos all prepend to their queries, matching the
// teacher's getBaseConds.
func scopeFilter(sourceConfigIDs []string) []estypes.Query {
	if len(sourceConfigIDs) == 0 {
		return nil
	}
	return []estypes.Query{{
		Terms: &estypes.TermsQuery{
			TermsQuery: map[string]estypes.TermsQueryField{"source_scope_id.keyword": sourceConfigIDs},
		},
	}}
}
