package rules

import (
	"reflect"
	"testing"
	"time"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
)

func ptr(v graph.Value) *graph.Value { return &v }

func compare(key string, op graph.Operator, value graph.Value) *graph.Condition {
	return &graph.Condition{Kind: graph.ConditionVariableCompare, Key: key, Operator: op, Value: ptr(value)}
}

func TestEvaluateVariableCompare(t *testing.T) {
	t.Parallel()

	state := State{Variables: map[string]Variable{
		"gold":    {Value: graph.NumberValue(5)},
		"level":   {Value: graph.StringValue("5")},
		"name":    {Value: graph.StringValue("ana")},
		"brave":   {Value: graph.BoolValue(true)},
		"trusted": {Value: graph.StringValue("true")},
	}}

	tests := []struct {
		name string
		cond *graph.Condition
		want bool
	}{
		{name: "nil condition", cond: nil, want: true},
		{name: "numeric equal", cond: compare("gold", graph.OpEqual, graph.NumberValue(5)), want: true},
		{name: "numeric string equals number", cond: compare("level", graph.OpEqual, graph.NumberValue(5)), want: true},
		{name: "numeric string ordering", cond: compare("level", graph.OpGreaterOrEqual, graph.StringValue("4.5")), want: true},
		{name: "less than", cond: compare("gold", graph.OpLess, graph.NumberValue(5)), want: false},
		{name: "less or equal", cond: compare("gold", graph.OpLessOrEqual, graph.NumberValue(5)), want: true},
		{name: "greater", cond: compare("gold", graph.OpGreater, graph.NumberValue(1)), want: true},
		{name: "ordering needs numbers", cond: compare("name", graph.OpGreater, graph.StringValue("a")), want: false},
		{name: "ordering on booleans", cond: compare("brave", graph.OpGreaterOrEqual, graph.BoolValue(false)), want: false},
		{name: "string equality", cond: compare("name", graph.OpEqual, graph.StringValue("ana")), want: true},
		{name: "string inequality", cond: compare("name", graph.OpNotEqual, graph.StringValue("bo")), want: true},
		{name: "boolean equality", cond: compare("brave", graph.OpEqual, graph.BoolValue(true)), want: true},
		{name: "boolean against canonical string", cond: compare("trusted", graph.OpEqual, graph.BoolValue(true)), want: true},
		{name: "missing value defaults to true", cond: &graph.Condition{Kind: graph.ConditionVariableCompare, Key: "brave", Operator: graph.OpEqual}, want: true},
		{name: "missing variable equal", cond: compare("ghost", graph.OpEqual, graph.NumberValue(0)), want: false},
		{name: "missing variable not equal", cond: compare("ghost", graph.OpNotEqual, graph.NumberValue(0)), want: true},
		{name: "missing variable ordering", cond: compare("ghost", graph.OpLess, graph.NumberValue(10)), want: false},
		{name: "unknown kind", cond: &graph.Condition{Kind: "telepathy"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Evaluate(tt.cond, state); got != tt.want {
				t.Fatalf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateMembership(t *testing.T) {
	t.Parallel()

	state := State{
		Inventory: []string{"key", "lamp"},
		Visited:   []string{"start", "cave"},
		Choices:   []ChoiceRef{{NodeID: "start", ChoiceID: "go-left"}},
	}
	tests := []struct {
		name string
		cond graph.Condition
		want bool
	}{
		{name: "visited", cond: graph.Condition{Kind: graph.ConditionNodeVisited, NodeID: "cave"}, want: true},
		{name: "not visited", cond: graph.Condition{Kind: graph.ConditionNodeVisited, NodeID: "lake"}, want: false},
		{name: "visited without node", cond: graph.Condition{Kind: graph.ConditionNodeVisited}, want: false},
		{name: "choice on any node", cond: graph.Condition{Kind: graph.ConditionChoiceMade, Key: "go-left"}, want: true},
		{name: "choice on node", cond: graph.Condition{Kind: graph.ConditionChoiceMade, Key: "go-left", NodeID: "start"}, want: true},
		{name: "choice on other node", cond: graph.Condition{Kind: graph.ConditionChoiceMade, Key: "go-left", NodeID: "cave"}, want: false},
		{name: "item held", cond: graph.Condition{Kind: graph.ConditionItemHeld, Key: "key"}, want: true},
		{name: "item missing", cond: graph.Condition{Kind: graph.ConditionItemHeld, Key: "rope"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cond := tt.cond
			if got := Evaluate(&cond, state); got != tt.want {
				t.Fatalf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateZeroStateNeverPanics(t *testing.T) {
	t.Parallel()

	conds := []*graph.Condition{
		{Kind: graph.ConditionVariableCompare},
		{Kind: graph.ConditionNodeVisited},
		{Kind: graph.ConditionChoiceMade},
		{Kind: graph.ConditionItemHeld},
		{},
	}
	for _, cond := range conds {
		_ = Evaluate(cond, State{})
	}
}

func TestApplyIsCopyOnWrite(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	before := State{
		Variables: map[string]Variable{"gold": {Value: graph.NumberValue(1)}},
		Inventory: []string{"lamp"},
	}
	effects := []graph.Consequence{
		{Kind: graph.ConsequenceSetVariable, Key: "gold", Value: ptr(graph.NumberValue(10))},
		{Kind: graph.ConsequenceSetVariable, Key: "met_witch"},
		{Kind: graph.ConsequenceAddItem, Key: "key"},
		{Kind: graph.ConsequenceAddItem, Key: "key"},
		{Kind: graph.ConsequenceRemoveItem, Key: "lamp"},
		{Kind: graph.ConsequenceRemoveItem, Key: "rope"},
		{Kind: graph.ConsequenceUnlockAchievement, Key: "explorer"},
		{Kind: graph.ConsequenceUnlockAchievement, Key: "explorer"},
		{Kind: graph.ConsequenceAddItem},
	}

	after, achievements := Apply(effects, before, at)

	if n, _ := before.Variables["gold"].Value.Number(); n != 1 {
		t.Fatalf("input state mutated: gold = %v", n)
	}
	if !reflect.DeepEqual(before.Inventory, []string{"lamp"}) {
		t.Fatalf("input inventory mutated: %v", before.Inventory)
	}

	gold := after.Variables["gold"]
	if n, _ := gold.Value.Number(); n != 10 || !gold.UpdatedAt.Equal(at) {
		t.Fatalf("gold = %+v", gold)
	}
	if b, ok := after.Variables["met_witch"].Value.Bool(); !ok || !b {
		t.Fatalf("set_variable without value should set true, got %v", after.Variables["met_witch"].Value)
	}
	if !reflect.DeepEqual(after.Inventory, []string{"key"}) {
		t.Fatalf("inventory = %v, want [key]", after.Inventory)
	}
	if !reflect.DeepEqual(achievements, []string{"explorer"}) {
		t.Fatalf("achievements = %v", achievements)
	}
}

func TestSetHelpers(t *testing.T) {
	t.Parallel()

	set := SetAdd(SetAdd(SetAdd(nil, "b"), "a"), "c")
	if !reflect.DeepEqual(set, []string{"a", "b", "c"}) {
		t.Fatalf("set = %v", set)
	}
	if !SetContains(set, "b") || SetContains(set, "z") {
		t.Fatal("unexpected membership")
	}
	if got := SetRemove(set, "b"); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("remove = %v", got)
	}
	if got := SetUnion([]string{"c", "a"}, []string{"b", "a"}); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("union = %v", got)
	}
}
