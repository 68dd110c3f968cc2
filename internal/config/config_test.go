package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clueweave/clueweave/internal/types"
)

func TestNewSearchConfigAppliesConfiguredDefaults(t *testing.T) {
	cfg := &Config{
		Search: SearchConfig{
			Recall: types.DefaultRecallConfig(),
			Expand: types.DefaultExpandConfig(),
			Rerank: types.DefaultRerankConfig(),
		},
	}

	sc := cfg.NewSearchConfig("who attended the summit", []string{"doc-1", "doc-2"})

	assert.Equal(t, "who attended the summit", sc.Query)
	assert.Equal(t, []string{"doc-1", "doc-2"}, sc.SourceConfigIDs)
	assert.Equal(t, types.DefaultRecallConfig(), sc.Recall)
	assert.Equal(t, types.DefaultRerankConfig(), sc.Rerank)
	assert.Equal(t, types.ReturnTypeEvent, sc.ReturnType, "EnsureDefaults should fill an unset ReturnType")
	assert.NotNil(t, sc.EntityNodeCache)
}

func TestNewSearchConfigLeavesNonDefaultValuesAlone(t *testing.T) {
	cfg := &Config{
		Search: SearchConfig{
			Recall: types.RecallConfig{VectorTopK: 5, MaxEntities: 7},
			Rerank: types.RerankConfig{Strategy: types.RerankStrategyRRF},
		},
	}

	sc := cfg.NewSearchConfig("q", nil)

	assert.Equal(t, 5, sc.Recall.VectorTopK)
	assert.Equal(t, 7, sc.Recall.MaxEntities)
	assert.Equal(t, types.RerankStrategyRRF, sc.Rerank.Strategy)
}
