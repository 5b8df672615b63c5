package rules

import (
	"slices"
	"time"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
)

// Apply runs consequences in authored order against a copy of state and
// returns the new state plus the achievement keys unlocked along the way.
// Achievements are reported, not stored in state.
func Apply(consequences []graph.Consequence, state State, at time.Time) (State, []string) {
	next := state.Clone()
	var achievements []string
	for _, effect := range consequences {
		if effect.Key == "" {
			continue
		}
		switch effect.Kind {
		case graph.ConsequenceSetVariable:
			value := graph.BoolValue(true)
			if effect.Value != nil {
				value = *effect.Value
			}
			next.Variables[effect.Key] = Variable{Value: value, UpdatedAt: at}
		case graph.ConsequenceAddItem:
			next.Inventory = SetAdd(next.Inventory, effect.Key)
		case graph.ConsequenceRemoveItem:
			next.Inventory = SetRemove(next.Inventory, effect.Key)
		case graph.ConsequenceUnlockAchievement:
			if !slices.Contains(achievements, effect.Key) {
				achievements = append(achievements, effect.Key)
			}
		}
	}
	return next, achievements
}

