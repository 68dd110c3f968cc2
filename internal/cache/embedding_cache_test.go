package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clueweave/clueweave/internal/models/embedding"
)

// fakeEmbedder counts calls so tests can assert the cache actually
// avoids re-hitting the inner client on a repeat lookup.
type fakeEmbedder struct {
	generateCalls      int
	batchGenerateCalls int
	batchSizes         []int
}

func (f *fakeEmbedder) Generate(ctx context.Context, text string) ([]float32, error) {
	f.generateCalls++
	return []float32{float32(len(text)), 1, 2}, nil
}

func (f *fakeEmbedder) BatchGenerate(ctx context.Context, texts []string) ([][]float32, error) {
	f.batchGenerateCalls++
	f.batchSizes = append(f.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1, 2}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int   { return 3 }
func (f *fakeEmbedder) ModelName() string { return "fake-model" }

func (f *fakeEmbedder) BatchGenerateWithPool(
	ctx context.Context, client embedding.EmbeddingClient, texts []string,
) ([][]float32, error) {
	return client.BatchGenerate(ctx, texts)
}

var _ embedding.EmbeddingClient = (*fakeEmbedder)(nil)

func TestCachedEmbeddingClientGenerateMemoizes(t *testing.T) {
	inner := &fakeEmbedder{}
	client := NewCachedEmbeddingClient(inner, NewMemoryStore(0))
	ctx := context.Background()

	v1, err := client.Generate(ctx, "hello")
	require.NoError(t, err)
	v2, err := client.Generate(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, inner.generateCalls, "second Generate for the same text should hit the cache")
}

func TestCachedEmbeddingClientGenerateKeysByModel(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	a := NewCachedEmbeddingClient(&fakeEmbedder{}, store)
	bInner := &fakeEmbedder{}
	b := &CachedEmbeddingClient{inner: &namedEmbedder{fakeEmbedder: bInner, name: "other-model"}, store: store}

	_, err := a.Generate(ctx, "hello")
	require.NoError(t, err)
	_, err = b.Generate(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, 1, bInner.generateCalls, "different model name must not share a cache key")
}

// namedEmbedder overrides ModelName so two clients can share an inner
// fakeEmbedder's call-counting while reporting distinct cache keys.
type namedEmbedder struct {
	*fakeEmbedder
	name string
}

func (n *namedEmbedder) ModelName() string { return n.name }

func TestCachedEmbeddingClientBatchGenerateOnlyFetchesMisses(t *testing.T) {
	inner := &fakeEmbedder{}
	client := NewCachedEmbeddingClient(inner, NewMemoryStore(0))
	ctx := context.Background()

	_, err := client.Generate(ctx, "warm")
	require.NoError(t, err)
	inner.generateCalls = 0

	results, err := client.BatchGenerate(ctx, []string{"warm", "cold1", "cold2"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.Len(t, inner.batchSizes, 1)
	assert.Equal(t, 2, inner.batchSizes[0], "only the two cache misses should reach the inner client")

	results2, err := client.BatchGenerate(ctx, []string{"warm", "cold1", "cold2"})
	require.NoError(t, err)
	assert.Equal(t, results, results2)
	assert.Equal(t, 1, inner.batchGenerateCalls, "a fully-warm second batch call should not hit the inner client again")
}

func TestCachedEmbeddingClientDelegatesMetadata(t *testing.T) {
	inner := &fakeEmbedder{}
	client := NewCachedEmbeddingClient(inner, NewMemoryStore(0))

	assert.Equal(t, inner.Dimensions(), client.Dimensions())
	assert.Equal(t, inner.ModelName(), client.ModelName())
}

func TestCachedEmbeddingClientBatchGenerateWithPoolRoutesThroughCache(t *testing.T) {
	inner := &fakeEmbedder{}
	client := NewCachedEmbeddingClient(inner, NewMemoryStore(0))
	ctx := context.Background()

	_, err := client.BatchGenerateWithPool(ctx, client, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, inner.batchSizes, 1)
	assert.Equal(t, 2, inner.batchSizes[0])

	_, err = client.BatchGenerateWithPool(ctx, client, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.batchGenerateCalls, "pooled call should still benefit from memoization on repeat")
}
