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

// ChunkVectorRepo implements interfaces.ChunkVectorRepo, used when
// SearchConfig.ReturnType is PARAGRAPH by the chunk PageRank reranker,
// which RRF requests for paragraphs also fall back to.
type ChunkVectorRepo struct {
	client *elasticsearch.TypedClient
	index  string
}

func NewChunkVectorRepo(client *elasticsearch.TypedClient, index string) *ChunkVectorRepo {
	if err := ensureIndex(context.Background(), client, index); err != nil {
		logger.GetLogger(context.Background()).Errorf("[Elasticsearch] chunk index init: %v", err)
	}
	return &ChunkVectorRepo{client: client, index: index}
}

var _ interfaces.ChunkVectorRepo = (*ChunkVectorRepo)(nil)

func (r *ChunkVectorRepo) SearchByVector(
	ctx context.Context, sourceConfigIDs []string, queryVector []float32, topK, candidates int,
) ([]interfaces.ScoredChunk, error) {
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
		log.Errorf("[Elasticsearch] Chunk vector search failed: %v", err)
		return nil, err
	}

	hits := make([]interfaces.ScoredChunk, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		var doc chunkDoc
		if err := json.Unmarshal(hit.Source_, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal chunk hit: %w", err)
		}
		hits = append(hits, interfaces.ScoredChunk{
			Chunk: types.Chunk{
				ID:            doc.ChunkID,
				SourceScopeID: doc.SourceScopeID,
				Heading:       doc.Heading,
				Content:       doc.Content,
			},
			Similarity: float64(*hit.Score_),
		})
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (r *ChunkVectorRepo) Upsert(ctx context.Context, chunk types.Chunk, vector []float32) error {
	doc := chunkDoc{
		ChunkID:       chunk.ID,
		SourceScopeID: chunk.SourceScopeID,
		Heading:       chunk.Heading,
		Content:       chunk.Content,
		Embedding:     vector,
	}
	_, err := r.client.Index(r.index).Id(chunk.ID).Request(doc).Do(ctx)
	if err != nil {
		logger.GetLogger(ctx).Errorf("[Elasticsearch] Failed to upsert chunk %s: %v", chunk.ID, err)
	}
	return err
}

func (r *ChunkVectorRepo) DeleteBySourceConfigIDs(ctx context.Context, sourceConfigIDs []string) error {
	if len(sourceConfigIDs) == 0 {
		return nil
	}
	_, err := r.client.DeleteByQuery(r.index).Query(&estypes.Query{
		Terms: &estypes.TermsQuery{
			TermsQuery: map[string]estypes.TermsQueryField{"source_scope_id.keyword": sourceConfigIDs},
		},
	}).Do(ctx)
	if err != nil {
		logger.GetLogger(ctx).Errorf("[Elasticsearch] Failed to delete chunk vectors for %v: %v", sourceConfigIDs, err)
	}
	return err
}
