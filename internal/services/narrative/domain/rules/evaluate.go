package rules

import (
	"slices"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
)

// Evaluate reports whether cond holds for state. A nil condition always
// holds; unknown condition kinds never do.
func Evaluate(cond *graph.Condition, state State) bool {
	if cond == nil {
		return true
	}
	switch cond.Kind {
	case graph.ConditionVariableCompare:
		expected := graph.BoolValue(true)
		if cond.Value != nil {
			expected = *cond.Value
		}
		variable, ok := state.Variables[cond.Key]
		if !ok {
			return cond.Operator == graph.OpNotEqual
		}
		return compareValues(variable.Value, cond.Operator, expected)
	case graph.ConditionNodeVisited:
		return cond.NodeID != "" && slices.Contains(state.Visited, cond.NodeID)
	case graph.ConditionChoiceMade:
		for _, ref := range state.Choices {
			if ref.ChoiceID == cond.Key && (cond.NodeID == "" || ref.NodeID == cond.NodeID) {
				return true
			}
		}
		return false
	case graph.ConditionItemHeld:
		return slices.Contains(state.Inventory, cond.Key)
	default:
		return false
	}
}

func compareValues(left Value, op graph.Operator, right Value) bool {
	switch op {
	case graph.OpEqual:
		return valuesEqual(left, right)
	case graph.OpNotEqual:
		return !valuesEqual(left, right)
	}

	l, lok := left.Number()
	r, rok := right.Number()
	if !lok || !rok {
		return false
	}
	switch op {
	case graph.OpGreater:
		return l > r
	case graph.OpGreaterOrEqual:
		return l >= r
	case graph.OpLess:
		return l < r
	case graph.OpLessOrEqual:
		return l <= r
	}
	return false
}

// valuesEqual compares numerically when both sides coerce to numbers, as
// booleans when both are booleans, and by canonical string otherwise.
func valuesEqual(left, right Value) bool {
	if l, ok := left.Number(); ok {
		if r, ok := right.Number(); ok {
			return l == r
		}
	}
	if l, ok := left.Bool(); ok {
		if r, ok := right.Bool(); ok {
			return l == r
		}
	}
	return left.String() == right.String()
}
