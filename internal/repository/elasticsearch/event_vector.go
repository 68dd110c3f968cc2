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

// EventVectorRepo implements interfaces.EventVectorRepo over an
// Elasticsearch v8 typed client. SearchByVector ranks by the same
// 0.2/0.8 title/content weighting the RRF reranker itself uses
// (spec.md §4.5 step 2), so a plain (non-RRF) PageRank rerank over the
// query<->event edge sees a comparable score to the RRF path.
type EventVectorRepo struct {
	client *elasticsearch.TypedClient
	index  string
}

func NewEventVectorRepo(client *elasticsearch.TypedClient, index string) *EventVectorRepo {
	if err := ensureIndex(context.Background(), client, index); err != nil {
		logger.GetLogger(context.Background()).Errorf("[Elasticsearch] event index init: %v", err)
	}
	return &EventVectorRepo{client: client, index: index}
}

var _ interfaces.EventVectorRepo = (*EventVectorRepo)(nil)

func (r *EventVectorRepo) SearchByVector(
	ctx context.Context, sourceConfigIDs []string, queryVector []float32, topK, candidates int,
) ([]interfaces.ScoredEvent, error) {
	log := logger.GetLogger(ctx)
	queryVectorJSON, err := json.Marshal(queryVector)
	if err != nil {
		return nil, fmt.Errorf("marshal query embedding: %w", err)
	}

	scoreSource := "0.2*cosineSimilarity(params.query_vector, 'title_vector') + " +
		"0.8*cosineSimilarity(params.query_vector, 'content_vector')"
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
		log.Errorf("[Elasticsearch] Event vector search failed: %v", err)
		return nil, err
	}

	hits := make([]interfaces.ScoredEvent, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		var doc eventDoc
		if err := json.Unmarshal(hit.Source_, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal event hit: %w", err)
		}
		hits = append(hits, interfaces.ScoredEvent{
			Event: types.Event{
				ID:            doc.EventID,
				SourceScopeID: doc.SourceScopeID,
				Title:         doc.Title,
				Summary:       doc.Summary,
				Content:       doc.Content,
				Category:      doc.Category,
			},
			Similarity: float64(*hit.Score_),
		})
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// GetVectorsByIDs fetches raw title/content vectors by event id — the
// surface the RRF reranker's embedding leg needs (spec.md §4.7).
func (r *EventVectorRepo) GetVectorsByIDs(ctx context.Context, ids []string) (map[string]interfaces.EventVectors, error) {
	if len(ids) == 0 {
		return map[string]interfaces.EventVectors{}, nil
	}
	response, err := r.client.Search().Index(r.index).Request(&search.Request{
		Query: &estypes.Query{Ids: &estypes.IdsQuery{Values: ids}},
		Size:  intPtr(len(ids)),
	}).Do(ctx)
	if err != nil {
		logger.GetLogger(ctx).Errorf("[Elasticsearch] GetVectorsByIDs failed: %v", err)
		return nil, err
	}

	out := make(map[string]interfaces.EventVectors, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		var doc eventDoc
		if err := json.Unmarshal(hit.Source_, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal event vectors: %w", err)
		}
		out[doc.EventID] = interfaces.EventVectors{TitleVector: doc.TitleVector, ContentVector: doc.ContentVector}
	}
	return out, nil
}

func (r *EventVectorRepo) Upsert(ctx context.Context, event types.Event, titleVector, contentVector []float32) error {
	doc := eventDoc{
		EventID:       event.ID,
		SourceScopeID: event.SourceScopeID,
		Title:         event.Title,
		Summary:       event.Summary,
		Content:       event.Content,
		Category:      event.Category,
		TitleVector:   titleVector,
		ContentVector: contentVector,
	}
	_, err := r.client.Index(r.index).Id(event.ID).Request(doc).Do(ctx)
	if err != nil {
		logger.GetLogger(ctx).Errorf("[Elasticsearch] Failed to upsert event %s: %v", event.ID, err)
	}
	return err
}

func (r *EventVectorRepo) DeleteBySourceConfigIDs(ctx context.Context, sourceConfigIDs []string) error {
	if len(sourceConfigIDs) == 0 {
		return nil
	}
	_, err := r.client.DeleteByQuery(r.index).Query(&estypes.Query{
		Terms: &estypes.TermsQuery{
			TermsQuery: map[string]estypes.TermsQueryField{"source_scope_id.keyword": sourceConfigIDs},
		},
	}).Do(ctx)
	if err != nil {
		logger.GetLogger(ctx).Errorf("[Elasticsearch] Failed to delete event vectors for %v: %v", sourceConfigIDs, err)
	}
	return err
}

func intPtr(v int) *int { return &v }
