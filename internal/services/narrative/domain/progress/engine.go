// Package progress walks a reader through a published graph and reconciles
// progress written from several devices.
//
// Advance and Merge are pure. Persistence, retries and event delivery belong
// to the caller.
package progress

import (
	"math"
	"slices"
	"time"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/event"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/rules"
)

// Status describes where a reader is in a comic.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusEnded      Status = "ended"
)

// Variable is a story variable with its last write time.
type Variable = rules.Variable

// HistoryEntry records one move. Jumps and restarts carry an empty ChoiceID.
type HistoryEntry struct {
	NodeID       string    `json:"nodeId"`
	ChoiceID     string    `json:"choiceId"`
	TargetNodeID string    `json:"targetNodeId"`
	At           time.Time `json:"at"`
}

// Progress is a reader's position and accumulated state in one comic.
type Progress struct {
	ReaderID          string              `json:"readerId"`
	ComicID           string              `json:"comicId"`
	RevisionID        string              `json:"revisionId"`
	CurrentNodeID     string              `json:"currentNodeId"`
	VisitedNodeIDs    []string            `json:"visitedNodeIds"`
	ChoiceHistory     []HistoryEntry      `json:"choiceHistory"`
	Variables         map[string]Variable `json:"variables"`
	Inventory         []string            `json:"inventory"`
	UnlockedEndingIDs []string            `json:"unlockedEndingIds"`
	TotalTimeSeconds  int64               `json:"totalTimeSeconds"`
	StartedAt         time.Time           `json:"startedAt"`
	Status            Status              `json:"status"`
}

// Clone returns a deep copy of p.
func (p Progress) Clone() Progress {
	out := p
	out.VisitedNodeIDs = cloneStrings(p.VisitedNodeIDs)
	out.ChoiceHistory = slices.Clone(p.ChoiceHistory)
	if out.ChoiceHistory == nil {
		out.ChoiceHistory = []HistoryEntry{}
	}
	out.Variables = make(map[string]Variable, len(p.Variables))
	for key, variable := range p.Variables {
		out.Variables[key] = variable
	}
	out.Inventory = cloneStrings(p.Inventory)
	out.UnlockedEndingIDs = cloneStrings(p.UnlockedEndingIDs)
	return out
}

// State returns the rules view of p.
func (p Progress) State() rules.State {
	choices := make([]rules.ChoiceRef, 0, len(p.ChoiceHistory))
	for _, entry := range p.ChoiceHistory {
		if entry.ChoiceID == "" {
			continue
		}
		choices = append(choices, rules.ChoiceRef{NodeID: entry.NodeID, ChoiceID: entry.ChoiceID})
	}
	return rules.State{
		Variables: p.Variables,
		Inventory: p.Inventory,
		Visited:   p.VisitedNodeIDs,
		Choices:   choices,
	}
}

// ActionKind identifies a reader move.
type ActionKind string

const (
	ActionStart   ActionKind = "start"
	ActionChoose  ActionKind = "choose"
	ActionJump    ActionKind = "jump"
	ActionRestart ActionKind = "restart"
)

// Action is an intended move.
//
// ReaderID, ComicID and RevisionID seed a new progress on ActionStart and
// are ignored otherwise.
type Action struct {
	Kind           ActionKind
	ChoiceID       string
	NodeID         string
	ElapsedSeconds int64
	ReaderID       string
	ComicID        string
	RevisionID     string
}

// Start returns an ActionStart for reader on comic at revision.
func Start(readerID, comicID, revisionID string) Action {
	return Action{Kind: ActionStart, ReaderID: readerID, ComicID: comicID, RevisionID: revisionID}
}

// Choose returns an ActionChoose for choiceID.
func Choose(choiceID string) Action {
	return Action{Kind: ActionChoose, ChoiceID: choiceID}
}

// Jump returns an ActionJump to nodeID.
func Jump(nodeID string) Action {
	return Action{Kind: ActionJump, NodeID: nodeID}
}

// Restart returns an ActionRestart.
func Restart() Action {
	return Action{Kind: ActionRestart}
}

// Result is the progress after a move and the events it produced.
type Result struct {
	Progress Progress
	Events   []event.Event
}

// Advance applies action to current on graph g. On error current is
// returned untouched in the result.
func Advance(g graph.Graph, current *Progress, action Action, now func() time.Time) (Result, error) {
	if now == nil {
		now = time.Now
	}
	switch action.Kind {
	case ActionStart:
		return start(g, current, action, now)
	case ActionChoose:
		return choose(g, current, action, now)
	case ActionJump:
		return jump(g, current, action, now)
	case ActionRestart:
		return restart(g, current, action, now)
	default:
		return unchanged(current), ErrInvalidAction
	}
}

func start(g graph.Graph, current *Progress, action Action, now func() time.Time) (Result, error) {
	if current != nil {
		return unchanged(current), nil
	}
	node, ok := g.NodeByID(g.StartNodeID)
	if !ok {
		return Result{}, ErrInvalidAction
	}

	at := now().UTC()
	next := Progress{
		ReaderID:          action.ReaderID,
		ComicID:           action.ComicID,
		RevisionID:        action.RevisionID,
		CurrentNodeID:     node.ID,
		VisitedNodeIDs:    []string{node.ID},
		ChoiceHistory:     []HistoryEntry{},
		Variables:         map[string]Variable{},
		Inventory:         []string{},
		UnlockedEndingIDs: []string{},
		TotalTimeSeconds:  elapsed(action),
		StartedAt:         at,
	}
	var events []event.Event
	if node.IsEnding {
		next.UnlockedEndingIDs = rules.SetAdd(next.UnlockedEndingIDs, node.ID)
		events = append(events, event.New(event.EndingReached{ComicID: next.ComicID, NodeID: node.ID, EndingType: string(node.EndingType)}, at))
	}
	next.Status = deriveStatus(next)
	return Result{Progress: next, Events: events}, nil
}

func choose(g graph.Graph, current *Progress, action Action, now func() time.Time) (Result, error) {
	if current == nil {
		return Result{}, ErrNotStarted
	}
	node, ok := g.NodeByID(current.CurrentNodeID)
	if !ok {
		return unchanged(current), choiceError(ErrInvalidChoice, current.CurrentNodeID, action.ChoiceID)
	}
	choice, ok := node.ChoiceByID(action.ChoiceID)
	if !ok {
		return unchanged(current), choiceError(ErrInvalidChoice, node.ID, action.ChoiceID)
	}
	target, ok := g.NodeByID(choice.TargetNodeID)
	if !ok {
		return unchanged(current), choiceError(ErrInvalidChoice, node.ID, choice.ID)
	}
	if !rules.Evaluate(choice.Condition, current.State()) {
		return unchanged(current), choiceError(ErrConditionNotMet, node.ID, choice.ID)
	}

	at := now().UTC()
	next := current.Clone()
	state, achievements := rules.Apply(choice.Consequences, current.State(), at)
	next.Variables = state.Variables
	next.Inventory = state.Inventory
	next.ChoiceHistory = append(next.ChoiceHistory, HistoryEntry{
		NodeID:       node.ID,
		ChoiceID:     choice.ID,
		TargetNodeID: target.ID,
		At:           at,
	})
	moveTo(&next, target, action)

	events := []event.Event{event.New(event.ChoiceRecorded{
		ComicID:      next.ComicID,
		NodeID:       node.ID,
		ChoiceID:     choice.ID,
		TargetNodeID: target.ID,
	}, at)}
	for _, key := range achievements {
		events = append(events, event.New(event.AchievementUnlocked{ComicID: next.ComicID, Key: key}, at))
	}
	if target.IsEnding {
		events = append(events, event.New(event.EndingReached{ComicID: next.ComicID, NodeID: target.ID, EndingType: string(target.EndingType)}, at))
	}
	return Result{Progress: next, Events: events}, nil
}

func jump(g graph.Graph, current *Progress, action Action, now func() time.Time) (Result, error) {
	if current == nil {
		return Result{}, ErrNotStarted
	}
	if !slices.Contains(current.VisitedNodeIDs, action.NodeID) {
		return unchanged(current), choiceError(ErrNodeNotVisited, action.NodeID, "")
	}
	target, ok := g.NodeByID(action.NodeID)
	if !ok {
		return unchanged(current), choiceError(ErrNodeNotVisited, action.NodeID, "")
	}
	if target.ID == current.CurrentNodeID {
		return unchanged(current), nil
	}

	at := now().UTC()
	next := current.Clone()
	from := next.CurrentNodeID
	next.ChoiceHistory = append(next.ChoiceHistory, HistoryEntry{NodeID: from, TargetNodeID: target.ID, At: at})
	moveTo(&next, target, action)
	return Result{
		Progress: next,
		Events:   []event.Event{event.New(event.NodeJumped{ComicID: next.ComicID, FromNodeID: from, NodeID: target.ID}, at)},
	}, nil
}

func restart(g graph.Graph, current *Progress, action Action, now func() time.Time) (Result, error) {
	if current == nil {
		return Result{}, ErrNotStarted
	}
	target, ok := g.NodeByID(g.StartNodeID)
	if !ok {
		return unchanged(current), ErrInvalidAction
	}

	at := now().UTC()
	next := current.Clone()
	from := next.CurrentNodeID
	next.ChoiceHistory = append(next.ChoiceHistory, HistoryEntry{NodeID: from, TargetNodeID: target.ID, At: at})
	moveTo(&next, target, action)
	return Result{
		Progress: next,
		Events:   []event.Event{event.New(event.ProgressRestarted{ComicID: next.ComicID, FromNodeID: from, NodeID: target.ID}, at)},
	}, nil
}

// moveTo places p on node, recording the visit, any ending, and the time
// spent since the last move.
func moveTo(p *Progress, node graph.Node, action Action) {
	p.CurrentNodeID = node.ID
	if !slices.Contains(p.VisitedNodeIDs, node.ID) {
		p.VisitedNodeIDs = append(p.VisitedNodeIDs, node.ID)
	}
	if node.IsEnding {
		p.UnlockedEndingIDs = rules.SetAdd(p.UnlockedEndingIDs, node.ID)
	}
	p.TotalTimeSeconds = addSeconds(p.TotalTimeSeconds, elapsed(action))
	p.Status = deriveStatus(*p)
}

// deriveStatus relies on every reached ending being unlocked, so it needs
// no graph.
func deriveStatus(p Progress) Status {
	switch {
	case p.CurrentNodeID == "":
		return StatusNotStarted
	case rules.SetContains(p.UnlockedEndingIDs, p.CurrentNodeID):
		return StatusEnded
	default:
		return StatusInProgress
	}
}

func elapsed(action Action) int64 {
	return max(action.ElapsedSeconds, 0)
}

// addSeconds saturates at math.MaxInt64 so the total never wraps negative.
func addSeconds(total, delta int64) int64 {
	if delta > math.MaxInt64-total {
		return math.MaxInt64
	}
	return total + delta
}

func unchanged(current *Progress) Result {
	if current == nil {
		return Result{}
	}
	return Result{Progress: *current}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}
