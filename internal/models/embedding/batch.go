package embedding

import (
	"context"
	"sync"

	"github.com/clueweave/clueweave/internal/models/utils"
	"github.com/panjf2000/ants/v2"
)

type batchEmbedder struct {
	pool *ants.Pool
}

// NewBatchEmbedder returns an EmbedderPooler that fans BatchGenerate
// calls out across a bounded ants pool, chunking the input into groups
// of 5 so no single upstream request gets too large.
func NewBatchEmbedder(pool *ants.Pool) EmbedderPooler {
	return &batchEmbedder{pool: pool}
}

type textEmbedding struct {
	text    string
	results []float32
}

func (e *batchEmbedder) BatchGenerateWithPool(
	ctx context.Context, client EmbeddingClient, texts []string,
) ([][]float32, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	batchSize := 5
	textEmbeddings := utils.MapSlice(texts, func(text string) *textEmbedding {
		return &textEmbedding{text: text}
	})

	processChunk := func(texts []*textEmbedding) func() {
		return func() {
			defer wg.Done()
			if firstErr != nil {
				return
			}
			embedding, err := client.BatchGenerate(ctx, utils.MapSlice(texts, func(text *textEmbedding) string {
				return text.text
			}))
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			mu.Lock()
			for i, text := range texts {
				text.results = embedding[i]
			}
			mu.Unlock()
		}
	}

	for _, texts := range utils.ChunkSlice(textEmbeddings, batchSize) {
		wg.Add(1)
		if err := e.pool.Submit(processChunk(texts)); err != nil {
			return nil, err
		}
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	results := utils.MapSlice(textEmbeddings, func(text *textEmbedding) []float32 {
		return text.results
	})
	return results, nil
}
