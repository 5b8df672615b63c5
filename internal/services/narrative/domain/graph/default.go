package graph

import "strings"

// DefaultStartNodeID is the id of the single node in a new comic.
const DefaultStartNodeID = "node-1"

// DefaultMeta seeds the graph created for a new comic.
type DefaultMeta struct {
	Title          string
	StartNodeTitle string
}

// CreateDefault returns a graph with one non-ending start node and no choices.
func CreateDefault(meta DefaultMeta) Graph {
	title := strings.TrimSpace(meta.StartNodeTitle)
	if title == "" {
		title = "Start"
	}
	return Graph{
		SchemaVersion: SchemaVersion,
		Title:         strings.TrimSpace(meta.Title),
		StartNodeID:   DefaultStartNodeID,
		Nodes: []Node{{
			ID:         DefaultStartNodeID,
			Title:      title,
			Position:   0,
			EndingType: EndingNeutral,
			Choices:    []Choice{},
		}},
	}
}
