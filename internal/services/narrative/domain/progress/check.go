package progress

import (
	"strconv"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
)

// CheckGraph reports whether p could have been produced by walking g. Every
// node it names must exist and its counters must not be negative.
func CheckGraph(g graph.Graph, p Progress) error {
	known := func(id string) bool {
		_, ok := g.NodeByID(id)
		return ok
	}
	if p.CurrentNodeID != "" && !known(p.CurrentNodeID) {
		return syncError("currentNodeId", p.CurrentNodeID)
	}
	for _, id := range p.VisitedNodeIDs {
		if !known(id) {
			return syncError("visitedNodeIds", id)
		}
	}
	for _, id := range p.UnlockedEndingIDs {
		if node, ok := g.NodeByID(id); !ok || !node.IsEnding {
			return syncError("unlockedEndingIds", id)
		}
	}
	for _, entry := range p.ChoiceHistory {
		if !known(entry.NodeID) {
			return syncError("choiceHistory.nodeId", entry.NodeID)
		}
		if !known(entry.TargetNodeID) {
			return syncError("choiceHistory.targetNodeId", entry.TargetNodeID)
		}
	}
	if p.TotalTimeSeconds < 0 {
		return syncError("totalTimeSeconds", strconv.FormatInt(p.TotalTimeSeconds, 10))
	}
	return nil
}
