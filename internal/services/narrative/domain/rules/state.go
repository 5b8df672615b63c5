// Package rules evaluates choice conditions against reader state and applies
// choice consequences. Every function is pure: inputs are never mutated.
package rules

import (
	"maps"
	"slices"
	"time"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
)

// Value is a scalar variable value.
type Value = graph.Value

// Variable is a story variable with the time it was last written. The
// timestamp drives last-writer-wins reconciliation across devices.
type Variable struct {
	Value     Value     `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ChoiceRef identifies a choice taken on a node.
type ChoiceRef struct {
	NodeID   string
	ChoiceID string
}

// State is the slice of reader progress that conditions read and
// consequences write.
type State struct {
	Variables map[string]Variable
	// Inventory is a sorted set.
	Inventory []string
	Visited   []string
	Choices   []ChoiceRef
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{
		Variables: make(map[string]Variable, len(s.Variables)),
		Inventory: slices.Clone(s.Inventory),
		Visited:   slices.Clone(s.Visited),
		Choices:   slices.Clone(s.Choices),
	}
	maps.Copy(out.Variables, s.Variables)
	if out.Inventory == nil {
		out.Inventory = []string{}
	}
	return out
}

// SetAdd returns set with item inserted in sorted position. The input slice
// is never modified.
func SetAdd(set []string, item string) []string {
	idx, found := slices.BinarySearch(set, item)
	if found {
		return slices.Clone(set)
	}
	out := make([]string, 0, len(set)+1)
	out = append(out, set[:idx]...)
	out = append(out, item)
	return append(out, set[idx:]...)
}

// SetRemove returns set without item.
func SetRemove(set []string, item string) []string {
	idx, found := slices.BinarySearch(set, item)
	if !found {
		return slices.Clone(set)
	}
	out := make([]string, 0, len(set)-1)
	out = append(out, set[:idx]...)
	return append(out, set[idx+1:]...)
}

// SetContains reports whether the sorted set holds item.
func SetContains(set []string, item string) bool {
	_, found := slices.BinarySearch(set, item)
	return found
}

// SetUnion returns the sorted, deduplicated union of sets.
func SetUnion(sets ...[]string) []string {
	out := []string{}
	for _, set := range sets {
		out = append(out, set...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
