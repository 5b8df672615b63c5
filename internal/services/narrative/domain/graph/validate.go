package graph

import "fmt"

// IssueCode identifies a validator finding.
type IssueCode string

// Error codes block submission.
const (
	IssueDuplicateNodeID   IssueCode = "duplicate_node_id"
	IssueDuplicateChoiceID IssueCode = "duplicate_choice_id"
	IssueDanglingTarget    IssueCode = "dangling_target"
	IssueEndingHasChoices  IssueCode = "ending_has_choices"
	IssueDeadEnd           IssueCode = "dead_end"
	IssueMissingStart      IssueCode = "missing_start"
)

// Warning codes are reported but never block submission.
const (
	IssueUnreachableNode   IssueCode = "unreachable_node"
	IssueNoReachableEnding IssueCode = "no_reachable_ending"
	IssueTrappedNode       IssueCode = "trapped_node"
)

// Issue is one validator finding.
type Issue struct {
	Code     IssueCode `json:"code"`
	NodeID   string    `json:"nodeId,omitempty"`
	ChoiceID string    `json:"choiceId,omitempty"`
	Message  string    `json:"message"`
}

// Report collects validator findings in graph order.
type Report struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Valid reports whether the graph has no hard errors.
func (r Report) Valid() bool {
	return len(r.Errors) == 0
}

// Validate checks the structural invariants of g. Cycles are allowed.
func Validate(g Graph) Report {
	report := Report{Errors: []Issue{}, Warnings: []Issue{}}

	index := make(map[string]int, len(g.Nodes))
	for i, node := range g.Nodes {
		if _, exists := index[node.ID]; exists {
			report.addError(IssueDuplicateNodeID, node.ID, "", fmt.Sprintf("node id %q is used more than once", node.ID))
			continue
		}
		index[node.ID] = i
	}

	for _, node := range g.Nodes {
		seenChoices := make(map[string]struct{}, len(node.Choices))
		for _, choice := range node.Choices {
			if _, dup := seenChoices[choice.ID]; dup {
				report.addError(IssueDuplicateChoiceID, node.ID, choice.ID, fmt.Sprintf("choice id %q is used more than once on node %q", choice.ID, node.ID))
			}
			seenChoices[choice.ID] = struct{}{}
			if _, ok := index[choice.TargetNodeID]; !ok {
				report.addError(IssueDanglingTarget, node.ID, choice.ID, fmt.Sprintf("choice %q targets missing node %q", choice.ID, choice.TargetNodeID))
			}
		}
		switch {
		case node.IsEnding && len(node.Choices) > 0:
			report.addError(IssueEndingHasChoices, node.ID, "", fmt.Sprintf("ending node %q has choices", node.ID))
		case !node.IsEnding && len(node.Choices) == 0:
			report.addError(IssueDeadEnd, node.ID, "", fmt.Sprintf("node %q is not an ending and has no choices", node.ID))
		}
	}

	start, ok := index[g.StartNodeID]
	if !ok {
		report.addError(IssueMissingStart, g.StartNodeID, "", fmt.Sprintf("start node %q does not exist", g.StartNodeID))
		return report
	}

	adjacency := make([][]int, len(g.Nodes))
	for i, node := range g.Nodes {
		if index[node.ID] != i {
			continue
		}
		for _, choice := range node.Choices {
			if target, ok := index[choice.TargetNodeID]; ok {
				adjacency[i] = append(adjacency[i], target)
			}
		}
	}

	reachable := bfs([]int{start}, adjacency)
	var endings []int
	for i, node := range g.Nodes {
		if index[node.ID] != i {
			continue
		}
		if !reachable[i] {
			report.addWarning(IssueUnreachableNode, node.ID, fmt.Sprintf("node %q cannot be reached from the start", node.ID))
			continue
		}
		if node.IsEnding {
			endings = append(endings, i)
		}
	}

	if len(endings) == 0 {
		report.addWarning(IssueNoReachableEnding, "", "no ending can be reached from the start")
		return report
	}

	canFinish := bfs(endings, reverse(adjacency))
	for i, node := range g.Nodes {
		if index[node.ID] != i || !reachable[i] || canFinish[i] {
			continue
		}
		report.addWarning(IssueTrappedNode, node.ID, fmt.Sprintf("no ending can be reached from node %q", node.ID))
	}
	return report
}

func (r *Report) addError(code IssueCode, nodeID, choiceID, message string) {
	r.Errors = append(r.Errors, Issue{Code: code, NodeID: nodeID, ChoiceID: choiceID, Message: message})
}

func (r *Report) addWarning(code IssueCode, nodeID, message string) {
	r.Warnings = append(r.Warnings, Issue{Code: code, NodeID: nodeID, Message: message})
}

func bfs(sources []int, adjacency [][]int) []bool {
	seen := make([]bool, len(adjacency))
	queue := make([]int, 0, len(adjacency))
	for _, s := range sources {
		if !seen[s] {
			seen[s] = true
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[current] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

func reverse(adjacency [][]int) [][]int {
	out := make([][]int, len(adjacency))
	for from, targets := range adjacency {
		for _, to := range targets {
			out[to] = append(out[to], from)
		}
	}
	return out
}
