package graph

// legacyShape reads documents saved before schemaVersion 2, when nodes were
// "pages" and choices were "choices" with flat placement fields. Canonical
// names are accepted as fallbacks because editors mixed both during the
// migration.
var legacyShape = shape{
	title: []string{"title", "name"},
	start: []string{"startPageId", "startNodeId", "firstPageId"},
	nodes: []string{"pages", "nodes"},

	nodeID:         []string{"pageId", "id"},
	nodeTitle:      []string{"name", "title"},
	nodeImage:      []string{"panels.0.imageUrl", "panels.0.image", "image", "imageUrl"},
	nodePosition:   []string{"position"},
	nodeEnding:     []string{"ending", "isEnding"},
	nodeEndingType: []string{"endingType", "endingKind"},
	nodeChoices:    []string{"choices", "buttons"},

	choiceID:     []string{"choiceId", "id"},
	choiceText:   []string{"label", "text"},
	choiceTarget: []string{"nextPageId", "goto", "targetNodeId"},
	x:            []string{"x", "placement.x"},
	y:            []string{"y", "placement.y"},
	width:        []string{"width", "placement.width"},
	height:       []string{"height", "placement.height"},
	align:        []string{"align", "textAlign", "placement.align"},
	showLabel:    []string{"showLabel", "placement.showLabel"},
	condition:    []string{"requires", "condition"},
	consequences: []string{"effects", "consequences"},

	condType:     []string{"type", "kind"},
	condKey:      []string{"key", "variable", "item", "choiceId"},
	condNodeID:   []string{"nodeId", "pageId"},
	condOperator: []string{"operator", "op"},
	condValue:    []string{"value"},

	effectType:  []string{"type", "kind"},
	effectKey:   []string{"key", "variable", "item", "achievement"},
	effectValue: []string{"value"},
}
