package progress

import (
	"cmp"
	"slices"
	"time"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/rules"
)

// Merge reconciles two progress values for the same reader and comic.
// The result never loses a visit, item, ending, or history entry from either
// side. Merge is commutative and idempotent, so repeated or reordered
// delivery converges on the same record.
func Merge(base, incoming Progress) Progress {
	history := mergeHistory(base.ChoiceHistory, incoming.ChoiceHistory)
	merged := Progress{
		ReaderID:          pickString(base.ReaderID, incoming.ReaderID),
		ComicID:           pickString(base.ComicID, incoming.ComicID),
		RevisionID:        pickString(base.RevisionID, incoming.RevisionID),
		CurrentNodeID:     mergeCurrent(base, incoming),
		ChoiceHistory:     history,
		Variables:         mergeVariables(base.Variables, incoming.Variables),
		Inventory:         rules.SetUnion(base.Inventory, incoming.Inventory),
		UnlockedEndingIDs: rules.SetUnion(base.UnlockedEndingIDs, incoming.UnlockedEndingIDs),
		TotalTimeSeconds:  max(base.TotalTimeSeconds, incoming.TotalTimeSeconds),
		StartedAt:         earliest(base.StartedAt, incoming.StartedAt),
	}
	merged.VisitedNodeIDs = mergeVisited(history, base.VisitedNodeIDs, incoming.VisitedNodeIDs)
	merged.Status = deriveStatus(merged)
	return merged
}

func compareEntries(a, b HistoryEntry) int {
	return cmp.Or(
		a.At.Compare(b.At),
		cmp.Compare(a.NodeID, b.NodeID),
		cmp.Compare(a.ChoiceID, b.ChoiceID),
		cmp.Compare(a.TargetNodeID, b.TargetNodeID),
	)
}

func mergeHistory(a, b []HistoryEntry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(a)+len(b))
	for _, entry := range slices.Concat(a, b) {
		entry.At = entry.At.UTC()
		out = append(out, entry)
	}
	slices.SortFunc(out, compareEntries)
	return slices.CompactFunc(out, func(x, y HistoryEntry) bool {
		return x.NodeID == y.NodeID && x.ChoiceID == y.ChoiceID && x.At.Equal(y.At)
	})
}

// mergeVisited orders the union of visits by the first time history moved
// onto each node. A node that history leaves before ever entering, such as
// the start node, was visited before any recorded move and sorts first, as
// do nodes history never mentions. Ties break by id.
func mergeVisited(history []HistoryEntry, a, b []string) []string {
	firstSeen := make(map[string]time.Time, len(history))
	for _, entry := range history {
		if _, ok := firstSeen[entry.NodeID]; !ok {
			firstSeen[entry.NodeID] = time.Time{}
		}
		if _, ok := firstSeen[entry.TargetNodeID]; !ok {
			firstSeen[entry.TargetNodeID] = entry.At
		}
	}
	visited := rules.SetUnion(a, b)
	slices.SortStableFunc(visited, func(x, y string) int {
		return cmp.Or(firstSeen[x].Compare(firstSeen[y]), cmp.Compare(x, y))
	})
	return visited
}

func mergeVariables(a, b map[string]Variable) map[string]Variable {
	out := make(map[string]Variable, max(len(a), len(b)))
	for key, variable := range a {
		out[key] = normalizeVariable(variable)
	}
	for key, variable := range b {
		variable = normalizeVariable(variable)
		existing, ok := out[key]
		if !ok || laterVariable(variable, existing) {
			out[key] = variable
		}
	}
	return out
}

func normalizeVariable(v Variable) Variable {
	v.UpdatedAt = v.UpdatedAt.UTC()
	return v
}

// laterVariable reports whether a wins over b: later write first, then the
// larger value so both merge orders agree.
func laterVariable(a, b Variable) bool {
	if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
		return c > 0
	}
	return a.Value.Compare(b.Value) > 0
}

func mergeCurrent(a, b Progress) string {
	latestA, latestB := latestMove(a.ChoiceHistory), latestMove(b.ChoiceHistory)
	switch c := latestA.Compare(latestB); {
	case c > 0:
		return a.CurrentNodeID
	case c < 0:
		return b.CurrentNodeID
	}
	return max(a.CurrentNodeID, b.CurrentNodeID)
}

func latestMove(history []HistoryEntry) time.Time {
	var latest time.Time
	for _, entry := range history {
		if entry.At.After(latest) {
			latest = entry.At
		}
	}
	return latest
}

func earliest(a, b time.Time) time.Time {
	switch {
	case a.IsZero():
		return b.UTC()
	case b.IsZero(), a.Before(b):
		return a.UTC()
	}
	return b.UTC()
}

// pickString keeps the non-empty value, or the larger one. Ids are time
// ordered, so the larger is the newer.
func pickString(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return max(a, b)
}
