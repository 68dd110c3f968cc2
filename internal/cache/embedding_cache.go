package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/clueweave/clueweave/internal/logger"
	"github.com/clueweave/clueweave/internal/models/embedding"
)

// CachedEmbeddingClient wraps an embedding.EmbeddingClient with a Store,
// memoizing by model name + query text so repeated Recall calls (spec.md
// §4.1 step 1, re-embedding the same query across entity/event/chunk
// legs) cost one network round trip instead of three. Grounded on the
// teacher's decorator-style wrapping in chat_pipline's plugin chain:
// same interface in, same interface out, one cross-cutting concern added.
type CachedEmbeddingClient struct {
	inner embedding.EmbeddingClient
	store Store
}

// NewCachedEmbeddingClient decorates inner with memoization through store.
func NewCachedEmbeddingClient(inner embedding.EmbeddingClient, store Store) *CachedEmbeddingClient {
	return &CachedEmbeddingClient{inner: inner, store: store}
}

var _ embedding.EmbeddingClient = (*CachedEmbeddingClient)(nil)

func (c *CachedEmbeddingClient) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(c.inner.ModelName() + "\x00" + text))
	return hex.EncodeToString(hash[:])
}

func (c *CachedEmbeddingClient) Generate(ctx context.Context, text string) ([]float32, error) {
	log := logger.GetLogger(ctx)
	key := c.cacheKey(text)

	if cached, found, err := c.store.Get(ctx, key); err == nil && found {
		var vector []float32
		if err := json.Unmarshal(cached, &vector); err == nil {
			return vector, nil
		}
		log.Warnf("[EmbeddingCache] corrupt cache entry for key %s, recomputing", key)
	}

	vector, err := c.inner.Generate(ctx, text)
	if err != nil {
		return nil, err
	}
	c.store.Set(ctx, key, mustMarshal(vector), 0)
	return vector, nil
}

// BatchGenerate looks up each text individually, calls the inner client
// only for misses, and fills the cache with the fresh results — the
// batch endpoint gets the same per-text memoization as Generate rather
// than being cached as one opaque blob, since Recall's three legs rarely
// request the exact same batch twice but often repeat a single query text.
func (c *CachedEmbeddingClient) BatchGenerate(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missIndex := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		key := c.cacheKey(text)
		cached, found, err := c.store.Get(ctx, key)
		if err != nil || !found {
			missIndex = append(missIndex, i)
			missTexts = append(missTexts, text)
			continue
		}
		var vector []float32
		if err := json.Unmarshal(cached, &vector); err != nil {
			missIndex = append(missIndex, i)
			missTexts = append(missTexts, text)
			continue
		}
		results[i] = vector
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	fresh, err := c.inner.BatchGenerate(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("embedding cache: expected %d vectors, got %d", len(missTexts), len(fresh))
	}
	for j, idx := range missIndex {
		results[idx] = fresh[j]
		c.store.Set(ctx, c.cacheKey(missTexts[j]), mustMarshal(fresh[j]), 0)
	}
	return results, nil
}

func (c *CachedEmbeddingClient) Dimensions() int {
	return c.inner.Dimensions()
}

func (c *CachedEmbeddingClient) ModelName() string {
	return c.inner.ModelName()
}

// BatchGenerateWithPool delegates to the inner client's pooler, passing c
// itself as the client so fanned-out chunks still go through the cache's
// own BatchGenerate and benefit from memoization.
func (c *CachedEmbeddingClient) BatchGenerateWithPool(
	ctx context.Context, client embedding.EmbeddingClient, texts []string,
) ([][]float32, error) {
	return c.inner.BatchGenerateWithPool(ctx, c, texts)
}

func mustMarshal(vector []float32) []byte {
	data, err := json.Marshal(vector)
	if err != nil {
		return nil
	}
	return data
}
