package clue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clueweave/clueweave/internal/types"
)

func TestAddClueDedupKeepsHigherPriority(t *testing.T) {
	cfg := &types.SearchConfig{Query: "q"}
	tr := NewTracker(cfg)

	from := types.Node{ID: "q1", Type: types.NodeTypeQuery}
	to := types.Node{ID: "e1", Type: types.NodeTypeEntity}

	tr.AddClue(types.StageRecall, from, to, 0.5, "", types.DisplayLevelIntermediate, nil)
	require.Len(t, cfg.AllClues, 1)
	assert.Equal(t, types.DisplayLevelIntermediate, cfg.AllClues[0].DisplayLevel)

	// Lower priority than existing: no change.
	tr.AddClue(types.StageRecall, from, to, 0.9, "", types.DisplayLevelDebug, nil)
	require.Len(t, cfg.AllClues, 1)
	assert.Equal(t, types.DisplayLevelIntermediate, cfg.AllClues[0].DisplayLevel)
	assert.Equal(t, 0.5, cfg.AllClues[0].Confidence)

	// Higher priority: upgrades in place, still one clue.
	tr.AddClue(types.StageRerank, from, to, 0.9, "", types.DisplayLevelFinal, nil)
	require.Len(t, cfg.AllClues, 1)
	assert.Equal(t, types.DisplayLevelFinal, cfg.AllClues[0].DisplayLevel)
	assert.Equal(t, 0.9, cfg.AllClues[0].Confidence)
	assert.Equal(t, types.StageRerank, cfg.AllClues[0].Stage)
}

func TestAddClueClampsConfidence(t *testing.T) {
	cfg := &types.SearchConfig{Query: "q"}
	tr := NewTracker(cfg)
	from := types.Node{ID: "q1", Type: types.NodeTypeQuery}
	to := types.Node{ID: "e1", Type: types.NodeTypeEntity}

	clue := tr.AddClue(types.StageRecall, from, to, 5.0, "", types.DisplayLevelFinal, nil)
	assert.Equal(t, 1.0, clue.Confidence)

	cfg2 := &types.SearchConfig{Query: "q2"}
	tr2 := NewTracker(cfg2)
	clue2 := tr2.AddClue(types.StageRecall, from, to, -1.0, "", types.DisplayLevelFinal, nil)
	assert.Equal(t, 0.0, clue2.Confidence)
}

func TestGetOrCreateEventNodeStageScoping(t *testing.T) {
	cfg := &types.SearchConfig{Query: "q"}
	tr := NewTracker(cfg)
	event := types.Event{ID: "ev1", Title: "t", Content: "c"}

	recallNode1 := tr.GetOrCreateEventNode(event, types.StageRecall, nil, "")
	recallNode2 := tr.GetOrCreateEventNode(event, types.StageRecall, nil, "")
	assert.Equal(t, recallNode1.ID, recallNode2.ID, "same event recalled twice in one stage reuses the node")
	assert.Equal(t, event.ID, recallNode1.ID, "recall-stage event nodes use the bare event id")

	hop1, hop2 := 1, 2
	expandHop1 := tr.GetOrCreateEventNode(event, types.StageExpand, &hop1, "")
	expandHop1Again := tr.GetOrCreateEventNode(event, types.StageExpand, &hop1, "")
	expandHop2 := tr.GetOrCreateEventNode(event, types.StageExpand, &hop2, "")

	assert.Equal(t, expandHop1.ID, expandHop1Again.ID, "same hop reuses the node")
	assert.NotEqual(t, expandHop1.ID, expandHop2.ID, "different hops get different nodes")
	assert.NotEqual(t, recallNode1.ID, expandHop1.ID, "different stages never share a node id")

	rerankA := tr.GetOrCreateEventNode(event, types.StageRerank, nil, "entity_recall")
	rerankAAgain := tr.GetOrCreateEventNode(event, types.StageRerank, nil, "entity_recall")
	rerankB := tr.GetOrCreateEventNode(event, types.StageRerank, nil, "section_recall")

	assert.Equal(t, rerankA.ID, rerankAAgain.ID)
	assert.NotEqual(t, rerankA.ID, rerankB.ID)
}

func TestBuildQueryNodeRewriteCategories(t *testing.T) {
	cfg := &types.SearchConfig{Query: "rewritten", OriginalQuery: "original"}

	current := BuildQueryNode(cfg, false)
	assert.Equal(t, "rewrite", current.Category)
	assert.Equal(t, "rewritten", current.Content)

	origin := BuildQueryNode(cfg, true)
	assert.Equal(t, "origin", origin.Category)
	assert.Equal(t, "original", origin.Content)
	assert.NotEqual(t, current.ID, origin.ID)

	noRewrite := &types.SearchConfig{Query: "same", OriginalQuery: "same"}
	assert.Equal(t, "origin", BuildQueryNode(noRewrite, false).Category)
}

func TestGenerateQueryNodeIDDeterministic(t *testing.T) {
	assert.Equal(t, GenerateQueryNodeID("hello"), GenerateQueryNodeID("hello"))
	assert.NotEqual(t, GenerateQueryNodeID("hello"), GenerateQueryNodeID("world"))
}
