package progress

import (
	"reflect"
	"testing"
	"time"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
)

// divergedPair plays the same start on two devices and then takes different
// routes on each.
func divergedPair(t *testing.T) (Progress, Progress) {
	t.Helper()
	g := keyGraph()
	now := clock(epoch)
	base := mustAdvance(t, g, nil, Action{Kind: ActionStart, ReaderID: "r1", ComicID: "c1", RevisionID: "rev1", ElapsedSeconds: 2}, now).Progress

	phone := mustAdvance(t, g, &base, Action{Kind: ActionChoose, ChoiceID: "pick-key", ElapsedSeconds: 10}, now).Progress
	phone = mustAdvance(t, g, &phone, Choose("go-right"), now).Progress

	laptop := mustAdvance(t, g, &base, Action{Kind: ActionChoose, ChoiceID: "go-left", ElapsedSeconds: 30}, now).Progress
	return phone, laptop
}

func TestMergeUnionsMonotonicFields(t *testing.T) {
	t.Parallel()

	phone, laptop := divergedPair(t)
	merged := Merge(phone, laptop)

	if !reflect.DeepEqual(merged.Inventory, []string{"key"}) {
		t.Fatalf("inventory = %v", merged.Inventory)
	}
	if !reflect.DeepEqual(merged.UnlockedEndingIDs, []string{"ending-good"}) {
		t.Fatalf("endings = %v", merged.UnlockedEndingIDs)
	}
	if !reflect.DeepEqual(merged.VisitedNodeIDs, []string{"start", "node-2", "ending-good"}) {
		t.Fatalf("visited = %v", merged.VisitedNodeIDs)
	}
	if len(merged.ChoiceHistory) != 3 {
		t.Fatalf("history = %+v", merged.ChoiceHistory)
	}
	if merged.TotalTimeSeconds != 32 {
		t.Fatalf("total time = %d, want max 32", merged.TotalTimeSeconds)
	}
	// The laptop moved last.
	if merged.CurrentNodeID != "ending-good" || merged.Status != StatusEnded {
		t.Fatalf("current = %q status = %q", merged.CurrentNodeID, merged.Status)
	}
	if !merged.StartedAt.Equal(phone.StartedAt) {
		t.Fatalf("started at = %v", merged.StartedAt)
	}
}

func TestMergeIsCommutative(t *testing.T) {
	t.Parallel()

	phone, laptop := divergedPair(t)
	if ab, ba := Merge(phone, laptop), Merge(laptop, phone); !reflect.DeepEqual(ab, ba) {
		t.Fatalf("merge not commutative:\n ab=%+v\n ba=%+v", ab, ba)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	t.Parallel()

	phone, laptop := divergedPair(t)
	merged := Merge(phone, laptop)
	if again := Merge(phone, merged); !reflect.DeepEqual(again, merged) {
		t.Fatalf("merge(a, merge(a,b)) != merge(a,b):\n got %+v\nwant %+v", again, merged)
	}
	if self := Merge(merged, merged); !reflect.DeepEqual(self, merged) {
		t.Fatalf("merge(m, m) != m")
	}
}

func TestMergeVariablesLastWriterWins(t *testing.T) {
	t.Parallel()

	early := epoch
	late := epoch.Add(time.Minute)
	a := Progress{Variables: map[string]Variable{
		"gold": {Value: graph.NumberValue(1), UpdatedAt: late},
		"mood": {Value: graph.StringValue("calm"), UpdatedAt: early},
		"tie":  {Value: graph.StringValue("a"), UpdatedAt: early},
	}}
	b := Progress{Variables: map[string]Variable{
		"gold": {Value: graph.NumberValue(9), UpdatedAt: early},
		"mood": {Value: graph.StringValue("angry"), UpdatedAt: late},
		"tie":  {Value: graph.StringValue("b"), UpdatedAt: early},
		"new":  {Value: graph.BoolValue(true), UpdatedAt: early},
	}}

	for _, merged := range []Progress{Merge(a, b), Merge(b, a)} {
		if n, _ := merged.Variables["gold"].Value.Number(); n != 1 {
			t.Fatalf("gold = %v, want 1", merged.Variables["gold"].Value)
		}
		if got := merged.Variables["mood"].Value.String(); got != "angry" {
			t.Fatalf("mood = %q", got)
		}
		if got := merged.Variables["tie"].Value.String(); got != "b" {
			t.Fatalf("tie = %q", got)
		}
		if _, ok := merged.Variables["new"]; !ok {
			t.Fatal("expected variable from one side only to survive")
		}
	}
}

func TestMergeDedupesRepeatedDelivery(t *testing.T) {
	t.Parallel()

	entry := HistoryEntry{NodeID: "start", ChoiceID: "go-left", TargetNodeID: "ending-good", At: epoch}
	local := HistoryEntry{NodeID: "start", ChoiceID: "go-left", TargetNodeID: "ending-good", At: epoch.In(time.FixedZone("X", 3600))}
	a := Progress{CurrentNodeID: "ending-good", ChoiceHistory: []HistoryEntry{entry}, UnlockedEndingIDs: []string{"ending-good"}}
	b := Progress{CurrentNodeID: "ending-good", ChoiceHistory: []HistoryEntry{local}, UnlockedEndingIDs: []string{"ending-good"}}

	merged := Merge(a, b)
	if len(merged.ChoiceHistory) != 1 {
		t.Fatalf("history = %+v", merged.ChoiceHistory)
	}
	if merged.ChoiceHistory[0].At.Location() != time.UTC {
		t.Fatalf("history time not normalized: %v", merged.ChoiceHistory[0].At)
	}
}

func TestMergeCurrentNodeTieBreak(t *testing.T) {
	t.Parallel()

	a := Progress{CurrentNodeID: "alpha"}
	b := Progress{CurrentNodeID: "beta"}
	if got := Merge(a, b).CurrentNodeID; got != "beta" {
		t.Fatalf("current = %q, want beta", got)
	}
	if got := Merge(b, a).CurrentNodeID; got != "beta" {
		t.Fatalf("current = %q, want beta", got)
	}
	if got := Merge(Progress{}, Progress{}).Status; got != StatusNotStarted {
		t.Fatalf("status = %q", got)
	}
}

func TestMergeKeepsStartFirstAfterRestart(t *testing.T) {
	t.Parallel()

	g := keyGraph()
	now := clock(epoch)
	p := mustAdvance(t, g, nil, Start("r1", "c1", "rev1"), now).Progress
	p = mustAdvance(t, g, &p, Choose("go-left"), now).Progress
	p = mustAdvance(t, g, &p, Restart(), now).Progress

	for _, merged := range []Progress{Merge(p, p), Merge(p, Progress{})} {
		if !reflect.DeepEqual(merged.VisitedNodeIDs, []string{"start", "ending-good"}) {
			t.Fatalf("visited = %v, want start first", merged.VisitedNodeIDs)
		}
	}
}
