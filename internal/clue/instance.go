package clue

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clueweave/clueweave/internal/types"
)

var defaultRelation = map[types.Stage]string{
	types.StageRecall: "semantic similarity",
	types.StageExpand: "relation expansion",
	types.StageRerank: "content rerank",
}

// Tracker manages the lifecycle of clues for one search: stage-scoped
// event-node identity (so repeated recalls of the same event within a
// stage reuse one node, while Expand's hops and Rerank's recall methods
// each get their own), and a dedup-on-add rule keyed on (from.id, to.id)
// that keeps only the highest-priority display level for any edge.
//
// Grounded on tracker.py's Tracker class.
type Tracker struct {
	cfg *types.SearchConfig
	// stageEventMap[stage][cacheKey] = nodeID. cacheKey is event.ID for
	// plain recall/rerank-without-method reuse, "{event.ID}_hop{hop}"
	// for Expand, and "{event.ID}_{recallMethod}" for Rerank.
	stageEventMap map[types.Stage]map[string]string
}

// NewTracker returns a Tracker whose AddClue calls append to cfg.AllClues.
func NewTracker(cfg *types.SearchConfig) *Tracker {
	return &Tracker{
		cfg:           cfg,
		stageEventMap: make(map[types.Stage]map[string]string),
	}
}

// GetOrCreateEventNode returns the stage-scoped node for event, creating
// and caching a new node id on first sight within the relevant scope:
//
//   - Expand (hop set): one node per (event, hop) — the same event
//     recalled at hop 1 and hop 2 gets two distinct nodes, so the graph
//     shows its propagation across hops.
//   - Rerank (recallMethod set): one node per (event, recallMethod) — an
//     event recalled via both entity-recall and section-recall gets two
//     distinct nodes, so the graph shows both recall paths.
//   - Otherwise (Recall, or Expand/Rerank without hop/recallMethod): one
//     node per event for the whole stage.
func (t *Tracker) GetOrCreateEventNode(event types.Event, stage types.Stage, hop *int, recallMethod string) types.Node {
	if _, ok := t.stageEventMap[stage]; !ok {
		t.stageEventMap[stage] = make(map[string]string)
	}
	stageMap := t.stageEventMap[stage]

	var nodeID string
	switch {
	case stage == types.StageExpand && hop != nil:
		cacheKey := fmt.Sprintf("%s_hop%d", event.ID, *hop)
		if existing, ok := stageMap[cacheKey]; ok {
			nodeID = existing
		} else {
			nodeID = fmt.Sprintf("expand_hop%d_%s_%s", *hop, event.ID, shortUUID())
			stageMap[cacheKey] = nodeID
		}
	case stage == types.StageRerank && recallMethod != "":
		cacheKey := fmt.Sprintf("%s_%s", event.ID, recallMethod)
		if existing, ok := stageMap[cacheKey]; ok {
			nodeID = existing
		} else {
			nodeID = fmt.Sprintf("rerank_%s_%s_%s", recallMethod, event.ID, shortUUID())
			stageMap[cacheKey] = nodeID
		}
	default:
		if existing, ok := stageMap[event.ID]; ok {
			nodeID = existing
		} else if stage == types.StageRecall {
			// spec.md §4.6: recall-stage event nodes use the bare event
			// id, one per event per stage — no stage prefix.
			nodeID = event.ID
			stageMap[event.ID] = nodeID
		} else {
			nodeID = fmt.Sprintf("%s_%s", stage, event.ID)
			stageMap[event.ID] = nodeID
		}
	}

	node := types.Node{
		ID:          nodeID,
		EventID:     event.ID,
		Type:        types.NodeTypeEvent,
		Category:    event.Category,
		Content:     event.Title,
		Description: event.Content,
		Stage:       stage,
	}
	if hop != nil {
		node.Hop = hop
	}
	return node
}

func shortUUID() string {
	full := uuid.NewString()
	return full[:8]
}

// AddClue appends a clue to cfg.AllClues, or — if an edge with the same
// (from.ID, to.ID) already exists — upgrades it in place when the new
// display level outranks the existing one, and otherwise leaves it
// untouched. Confidence is clamped to [0, 1] (the Go contract's range;
// see SPEC_FULL.md §10 for why this differs from the original's [0,10]).
func (t *Tracker) AddClue(
	stage types.Stage,
	from, to types.Node,
	confidence float64,
	relation string,
	displayLevel types.DisplayLevel,
	metadata map[string]any,
) types.Clue {
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	for i := range t.cfg.AllClues {
		existing := &t.cfg.AllClues[i]
		if existing.From.ID != from.ID || existing.To.ID != to.ID {
			continue
		}
		if displayLevel.Priority() > existing.DisplayLevel.Priority() {
			existing.DisplayLevel = displayLevel
			existing.Stage = stage
			existing.Confidence = confidence
			if relation != "" {
				existing.Relation = relation
			} else {
				existing.Relation = t.defaultRelation(stage)
			}
			if metadata != nil {
				existing.Metadata = metadata
			}
		}
		return *existing
	}

	if relation == "" {
		relation = t.defaultRelation(stage)
	}

	newClue := types.Clue{
		ID:           GenerateClueID(),
		Stage:        stage,
		From:         from,
		To:           to,
		Confidence:   confidence,
		Relation:     relation,
		DisplayLevel: displayLevel,
		Metadata:     metadata,
	}
	t.cfg.AllClues = append(t.cfg.AllClues, newClue)
	return newClue
}

func (t *Tracker) defaultRelation(stage types.Stage) string {
	if rel, ok := defaultRelation[stage]; ok {
		return rel
	}
	return "unknown relation"
}
