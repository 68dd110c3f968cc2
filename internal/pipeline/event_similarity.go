package pipeline

import (
	"context"
	"fmt"

	"github.com/clueweave/clueweave/internal/numeric"
	"github.com/clueweave/clueweave/internal/types/interfaces"
)

// eventVectorBatchSize mirrors the original's batch_size=50 for
// get_events_by_ids during similarity scoring (spec.md §4.2 step 2,
// §4.3 S1) — large enough to cut round trips, small enough that one
// failed batch doesn't cost the whole candidate set.
const eventVectorBatchSize = 50

// batchEventQuerySimilarity fetches content/title vectors for ids in
// batches of eventVectorBatchSize and cosines each against query,
// preferring content_vector and falling back to title_vector — the
// same priority the original's expand/pagerank stages use. An id with
// neither vector indexed is simply absent from the result, not scored
// at zero, so callers that need a "missing contributes 0" entry should
// check for absence explicitly.
func batchEventQuerySimilarity(
	ctx context.Context, events interfaces.EventVectorRepo, ids []string, query []float32,
) (map[string]float64, error) {
	out := make(map[string]float64, len(ids))
	for start := 0; start < len(ids); start += eventVectorBatchSize {
		end := start + eventVectorBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		vectors, err := events.GetVectorsByIDs(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch event vectors: %w", err)
		}

		batchIDs := make([]string, 0, len(batch))
		batchVectors := make([][]float32, 0, len(batch))
		for _, id := range batch {
			vecs, ok := vectors[id]
			if !ok {
				continue
			}
			vector := vecs.ContentVector
			if len(vector) == 0 {
				vector = vecs.TitleVector
			}
			if len(vector) == 0 {
				continue
			}
			batchIDs = append(batchIDs, id)
			batchVectors = append(batchVectors, vector)
		}

		similarities := numeric.BatchCosine(query, batchVectors)
		for i, id := range batchIDs {
			out[id] = similarities[i]
		}
	}
	return out, nil
}
