package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// shape lists, per field, the JSON paths the reader tries in order. The
// first path holding a non-null value wins.
type shape struct {
	title []string
	start []string
	nodes []string

	nodeID         []string
	nodeTitle      []string
	nodeImage      []string
	nodePosition   []string
	nodeEnding     []string
	nodeEndingType []string
	nodeChoices    []string

	choiceID     []string
	choiceText   []string
	choiceTarget []string
	x, y         []string
	width        []string
	height       []string
	align        []string
	showLabel    []string
	condition    []string
	consequences []string

	condType     []string
	condKey      []string
	condNodeID   []string
	condOperator []string
	condValue    []string

	effectType  []string
	effectKey   []string
	effectValue []string
}

var canonicalShape = shape{
	title: []string{"title"},
	start: []string{"startNodeId"},
	nodes: []string{"nodes"},

	nodeID:         []string{"id"},
	nodeTitle:      []string{"title"},
	nodeImage:      []string{"imageUrl"},
	nodePosition:   []string{"position"},
	nodeEnding:     []string{"isEnding"},
	nodeEndingType: []string{"endingType"},
	nodeChoices:    []string{"buttons"},

	choiceID:     []string{"id"},
	choiceText:   []string{"text"},
	choiceTarget: []string{"targetNodeId"},
	x:            []string{"placement.x"},
	y:            []string{"placement.y"},
	width:        []string{"placement.width"},
	height:       []string{"placement.height"},
	align:        []string{"placement.align"},
	showLabel:    []string{"placement.showLabel"},
	condition:    []string{"condition"},
	consequences: []string{"consequences"},

	condType:     []string{"type"},
	condKey:      []string{"key"},
	condNodeID:   []string{"nodeId"},
	condOperator: []string{"operator"},
	condValue:    []string{"value"},

	effectType:  []string{"type"},
	effectKey:   []string{"key"},
	effectValue: []string{"value"},
}

// Normalize converts arbitrary JSON into a canonical Graph. It never fails:
// malformed input yields an empty graph and malformed fields take defaults.
//
// Documents declaring schemaVersion 2 are read with the canonical field
// names; everything else goes through the legacy reader.
func Normalize(raw []byte) Graph {
	if !gjson.ValidBytes(raw) {
		return emptyGraph()
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return emptyGraph()
	}
	if isCanonical(root) {
		return read(root, canonicalShape)
	}
	return read(root, legacyShape)
}

// NormalizeValue normalizes an already-decoded JSON document.
func NormalizeValue(v any) Graph {
	raw, err := json.Marshal(v)
	if err != nil {
		return emptyGraph()
	}
	return Normalize(raw)
}

func isCanonical(root gjson.Result) bool {
	version := root.Get("schemaVersion")
	return version.Type == gjson.Number && version.Num == SchemaVersion
}

func emptyGraph() Graph {
	return Graph{SchemaVersion: SchemaVersion, Nodes: []Node{}}
}

func read(root gjson.Result, s shape) Graph {
	g := emptyGraph()
	g.Title = stringField(root, s.title)
	g.StartNodeID = idField(root, s.start)

	if list := first(root, s.nodes); list.IsArray() {
		for _, raw := range list.Array() {
			if !raw.IsObject() {
				continue
			}
			g.Nodes = append(g.Nodes, readNode(raw, s, len(g.Nodes)))
		}
	}

	assignIDs(g.Nodes)
	if g.StartNodeID == "" && len(g.Nodes) > 0 {
		g.StartNodeID = g.Nodes[0].ID
	}
	return g
}

func readNode(raw gjson.Result, s shape, index int) Node {
	node := Node{
		ID:         idField(raw, s.nodeID),
		Title:      stringField(raw, s.nodeTitle),
		ImageURL:   stringField(raw, s.nodeImage),
		Position:   intField(raw, s.nodePosition, index),
		IsEnding:   first(raw, s.nodeEnding).Type == gjson.True,
		EndingType: endingTypeField(raw, s.nodeEndingType),
		Choices:    []Choice{},
	}
	if list := first(raw, s.nodeChoices); list.IsArray() {
		for _, item := range list.Array() {
			if !item.IsObject() {
				continue
			}
			node.Choices = append(node.Choices, readChoice(item, s))
		}
	}
	return node
}

func readChoice(raw gjson.Result, s shape) Choice {
	choice := Choice{
		ID:           idField(raw, s.choiceID),
		Text:         stringField(raw, s.choiceText),
		TargetNodeID: idField(raw, s.choiceTarget),
		Placement: Placement{
			X:         numberField(raw, s.x, 0),
			Y:         numberField(raw, s.y, 0),
			Width:     numberField(raw, s.width, DefaultChoiceWidth),
			Height:    numberField(raw, s.height, DefaultChoiceHeight),
			Align:     alignField(raw, s.align),
			ShowLabel: first(raw, s.showLabel).Type != gjson.False,
		},
		Condition:    readCondition(first(raw, s.condition), s),
		Consequences: []Consequence{},
	}
	if list := first(raw, s.consequences); list.IsArray() {
		for _, item := range list.Array() {
			if effect, ok := readConsequence(item, s); ok {
				choice.Consequences = append(choice.Consequences, effect)
			}
		}
	}
	return choice
}

func readCondition(raw gjson.Result, s shape) *Condition {
	if !raw.IsObject() {
		return nil
	}
	kind := ConditionKind(strings.ToLower(idField(raw, s.condType)))
	cond := &Condition{Kind: kind}
	switch kind {
	case ConditionVariableCompare:
		cond.Key = idField(raw, s.condKey)
		cond.Operator = parseOperator(idField(raw, s.condOperator))
		cond.Value = valueField(raw, s.condValue)
	case ConditionNodeVisited:
		cond.NodeID = idField(raw, s.condNodeID)
		if cond.NodeID == "" {
			cond.NodeID = idField(raw, s.condKey)
		}
	case ConditionChoiceMade:
		cond.Key = idField(raw, s.condKey)
		cond.NodeID = idField(raw, s.condNodeID)
	case ConditionItemHeld:
		cond.Key = idField(raw, s.condKey)
	default:
		return nil
	}
	return cond
}

func readConsequence(raw gjson.Result, s shape) (Consequence, bool) {
	if !raw.IsObject() {
		return Consequence{}, false
	}
	kind := ConsequenceKind(strings.ToLower(idField(raw, s.effectType)))
	switch kind {
	case ConsequenceSetVariable, ConsequenceAddItem, ConsequenceRemoveItem, ConsequenceUnlockAchievement:
	default:
		return Consequence{}, false
	}
	effect := Consequence{Kind: kind, Key: idField(raw, s.effectKey)}
	if kind == ConsequenceSetVariable {
		effect.Value = valueField(raw, s.effectValue)
	}
	return effect, true
}

var operatorAliases = map[string]Operator{
	"==": OpEqual, "=": OpEqual, "eq": OpEqual, "equals": OpEqual,
	"!=": OpNotEqual, "<>": OpNotEqual, "ne": OpNotEqual, "neq": OpNotEqual, "not_equals": OpNotEqual,
	">": OpGreater, "gt": OpGreater,
	">=": OpGreaterOrEqual, "gte": OpGreaterOrEqual,
	"<": OpLess, "lt": OpLess,
	"<=": OpLessOrEqual, "lte": OpLessOrEqual,
}

func parseOperator(raw string) Operator {
	if op, ok := operatorAliases[strings.ToLower(raw)]; ok {
		return op
	}
	return OpEqual
}

// assignIDs fills missing node ids with node-{n} and missing choice ids with
// btn-{n}, skipping ids already present anywhere in the graph.
func assignIDs(nodes []Node) {
	nodeIDs := newIDAllocator("node")
	choiceIDs := newIDAllocator("btn")
	for _, node := range nodes {
		nodeIDs.reserve(node.ID)
		for _, choice := range node.Choices {
			choiceIDs.reserve(choice.ID)
		}
	}
	for i := range nodes {
		if nodes[i].ID == "" {
			nodes[i].ID = nodeIDs.next()
		}
		for j := range nodes[i].Choices {
			if nodes[i].Choices[j].ID == "" {
				nodes[i].Choices[j].ID = choiceIDs.next()
			}
		}
	}
}

type idAllocator struct {
	prefix  string
	counter int
	taken   map[string]struct{}
}

func newIDAllocator(prefix string) *idAllocator {
	return &idAllocator{prefix: prefix, taken: map[string]struct{}{}}
}

func (a *idAllocator) reserve(id string) {
	if id != "" {
		a.taken[id] = struct{}{}
	}
}

func (a *idAllocator) next() string {
	for {
		a.counter++
		id := fmt.Sprintf("%s-%d", a.prefix, a.counter)
		if _, ok := a.taken[id]; !ok {
			a.taken[id] = struct{}{}
			return id
		}
	}
}

func first(r gjson.Result, paths []string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type != gjson.Null {
			return v
		}
	}
	return gjson.Result{}
}

// stringField accepts strings and numbers; any other JSON type is missing.
func stringField(r gjson.Result, paths []string) string {
	v := first(r, paths)
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Raw
	}
	return ""
}

func idField(r gjson.Result, paths []string) string {
	return strings.TrimSpace(stringField(r, paths))
}

func numberField(r gjson.Result, paths []string, def float64) float64 {
	v := first(r, paths)
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

func intField(r gjson.Result, paths []string, def int) int {
	f := numberField(r, paths, float64(def))
	if f > math.MaxInt32 || f < math.MinInt32 {
		return def
	}
	return int(math.Trunc(f))
}

func alignField(r gjson.Result, paths []string) Align {
	switch align := Align(strings.ToLower(idField(r, paths))); align {
	case AlignLeft, AlignCenter, AlignRight:
		return align
	}
	return AlignCenter
}

func endingTypeField(r gjson.Result, paths []string) EndingType {
	if t := EndingType(strings.ToLower(idField(r, paths))); t.Valid() {
		return t
	}
	return EndingNeutral
}

func valueField(r gjson.Result, paths []string) *Value {
	v := first(r, paths)
	var out Value
	switch v.Type {
	case gjson.String:
		out = StringValue(v.Str)
	case gjson.Number:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return nil
		}
		out = NumberValue(v.Num)
	case gjson.True:
		out = BoolValue(true)
	case gjson.False:
		out = BoolValue(false)
	default:
		return nil
	}
	return &out
}
