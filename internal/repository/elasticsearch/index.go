package elasticsearch

import (
	"context"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/clueweave/clueweave/internal/logger"
)

// ensureIndex creates index if it doesn't exist yet, following the
// teacher's createIndexIfNotExists (retriever/elasticsearch/v8/repository.go).
func ensureIndex(ctx context.Context, client *elasticsearch.TypedClient, index string) error {
	log := logger.GetLogger(ctx)
	exists, err := client.Indices.Exists(index).Do(ctx)
	if err != nil {
		log.Errorf("[Elasticsearch] Failed to check if index exists: %v", err)
		return err
	}
	if exists {
		return nil
	}
	log.Infof("[Elasticsearch] Creating index: %s", index)
	if _, err := client.Indices.Create(index).Do(ctx); err != nil {
		log.Errorf("[Elasticsearch] Failed to create index %s: %v", index, err)
		return err
	}
	return nil
}
