// Package graph defines the canonical branching-comic graph, its tolerant
// normalizer, and the structural validator.
package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SchemaVersion is the canonical graph schema version.
const SchemaVersion = 2

// EndingType classifies how an ending node concludes the story.
type EndingType string

const (
	EndingGood    EndingType = "good"
	EndingBad     EndingType = "bad"
	EndingNeutral EndingType = "neutral"
	EndingSecret  EndingType = "secret"
)

// Valid reports whether t is a known ending type.
func (t EndingType) Valid() bool {
	switch t {
	case EndingGood, EndingBad, EndingNeutral, EndingSecret:
		return true
	}
	return false
}

// Align is the horizontal alignment of a choice label on its panel.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// ConditionKind identifies the guard evaluated before a choice is taken.
type ConditionKind string

const (
	ConditionVariableCompare ConditionKind = "variable_compare"
	ConditionNodeVisited     ConditionKind = "node_visited"
	ConditionChoiceMade      ConditionKind = "choice_made"
	ConditionItemHeld        ConditionKind = "item_held"
)

// Operator compares a variable against a literal.
type Operator string

const (
	OpEqual          Operator = "=="
	OpNotEqual       Operator = "!="
	OpGreater        Operator = ">"
	OpGreaterOrEqual Operator = ">="
	OpLess           Operator = "<"
	OpLessOrEqual    Operator = "<="
)

// ConsequenceKind identifies a state change applied when a choice is taken.
type ConsequenceKind string

const (
	ConsequenceSetVariable       ConsequenceKind = "set_variable"
	ConsequenceAddItem           ConsequenceKind = "add_item"
	ConsequenceRemoveItem        ConsequenceKind = "remove_item"
	ConsequenceUnlockAchievement ConsequenceKind = "unlock_achievement"
)

// Graph is the canonical, normalized story graph.
type Graph struct {
	SchemaVersion int    `json:"schemaVersion"`
	Title         string `json:"title"`
	StartNodeID   string `json:"startNodeId"`
	Nodes         []Node `json:"nodes"`
}

// Node is one page of the comic.
type Node struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	ImageURL   string     `json:"imageUrl"`
	Position   int        `json:"position"`
	IsEnding   bool       `json:"isEnding"`
	EndingType EndingType `json:"endingType"`
	Choices    []Choice   `json:"buttons"`
}

// Choice is a button on a node leading to another node.
type Choice struct {
	ID           string        `json:"id"`
	Text         string        `json:"text"`
	TargetNodeID string        `json:"targetNodeId"`
	Placement    Placement     `json:"placement"`
	Condition    *Condition    `json:"condition,omitempty"`
	Consequences []Consequence `json:"consequences"`
}

// Placement positions a choice over the node image. It carries no narrative
// meaning.
type Placement struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Align     Align   `json:"align"`
	ShowLabel bool    `json:"showLabel"`
}

// Condition guards a choice.
//
// For choice_made, Key holds the choice id and an empty NodeID matches the
// choice on any node.
type Condition struct {
	Kind     ConditionKind `json:"type"`
	Key      string        `json:"key,omitempty"`
	NodeID   string        `json:"nodeId,omitempty"`
	Operator Operator      `json:"operator,omitempty"`
	Value    *Value        `json:"value,omitempty"`
}

// Consequence mutates reader state when its choice is taken.
type Consequence struct {
	Kind  ConsequenceKind `json:"type"`
	Key   string          `json:"key"`
	Value *Value          `json:"value,omitempty"`
}

// Default placement dimensions.
const (
	DefaultChoiceWidth  = 160
	DefaultChoiceHeight = 48
)

// NodeByID returns the first node with id.
func (g Graph) NodeByID(id string) (Node, bool) {
	for _, node := range g.Nodes {
		if node.ID == id {
			return node, true
		}
	}
	return Node{}, false
}

// ChoiceByID returns the choice with id on node n.
func (n Node) ChoiceByID(id string) (Choice, bool) {
	for _, choice := range n.Choices {
		if choice.ID == id {
			return choice, true
		}
	}
	return Choice{}, false
}

// MarshalCanonical encodes g as canonical JSON.
func MarshalCanonical(g Graph) ([]byte, error) {
	return json.Marshal(g)
}

type valueKind uint8

const (
	kindString valueKind = iota
	kindNumber
	kindBool
)

// Value is a scalar literal: a string, a finite number, or a boolean.
// The zero Value is the empty string.
type Value struct {
	kind valueKind
	str  string
	num  float64
	b    bool
}

// StringValue returns a string literal.
func StringValue(s string) Value { return Value{kind: kindString, str: s} }

// NumberValue returns a numeric literal. Non-finite input becomes 0.
func NumberValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = 0
	}
	return Value{kind: kindNumber, num: f}
}

// BoolValue returns a boolean literal.
func BoolValue(b bool) Value { return Value{kind: kindBool, b: b} }

// IsString reports whether v holds a string.
func (v Value) IsString() bool { return v.kind == kindString }

// IsNumber reports whether v holds a number.
func (v Value) IsNumber() bool { return v.kind == kindNumber }

// IsBool reports whether v holds a boolean.
func (v Value) IsBool() bool { return v.kind == kindBool }

// Number coerces v to a finite number. Strings coerce when they parse as
// finite numbers; booleans never coerce.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case kindNumber:
		return v.num, true
	case kindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Bool returns the boolean held by v.
func (v Value) Bool() (bool, bool) {
	if v.kind == kindBool {
		return v.b, true
	}
	return false, false
}

// String returns the canonical string form of v.
func (v Value) String() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case kindBool:
		return strconv.FormatBool(v.b)
	}
	return v.str
}

// Equal reports whether v and other hold the same kind and literal.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case kindNumber:
		return v.num == other.num
	case kindBool:
		return v.b == other.b
	}
	return v.str == other.str
}

// Compare orders values by kind (string, number, boolean) and then by
// literal. It returns -1, 0, or +1.
func (v Value) Compare(other Value) int {
	if v.kind != other.kind {
		if v.kind < other.kind {
			return -1
		}
		return 1
	}
	switch v.kind {
	case kindNumber:
		switch {
		case v.num < other.num:
			return -1
		case v.num > other.num:
			return 1
		}
		return 0
	case kindBool:
		switch {
		case v.b == other.b:
			return 0
		case !v.b:
			return -1
		}
		return 1
	}
	return strings.Compare(v.str, other.str)
}

// MarshalJSON encodes v as a bare JSON literal.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindNumber:
		return json.Marshal(v.num)
	case kindBool:
		return json.Marshal(v.b)
	}
	return json.Marshal(v.str)
}

// UnmarshalJSON decodes a JSON string, number, or boolean.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, ok := ValueOf(raw)
	if !ok {
		return fmt.Errorf("value must be a string, number, or boolean, got %s", string(data))
	}
	*v = parsed
	return nil
}

// ValueOf converts a decoded scalar into a Value.
func ValueOf(raw any) (Value, bool) {
	switch typed := raw.(type) {
	case string:
		return StringValue(typed), true
	case bool:
		return BoolValue(typed), true
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return Value{}, false
		}
		return NumberValue(typed), true
	case int:
		return NumberValue(float64(typed)), true
	case int64:
		return NumberValue(float64(typed)), true
	case json.Number:
		f, err := typed.Float64()
		if err != nil || math.IsInf(f, 0) {
			return Value{}, false
		}
		return NumberValue(f), true
	}
	return Value{}, false
}
