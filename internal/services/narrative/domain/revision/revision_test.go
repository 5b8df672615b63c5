package revision

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/branching.ink/internal/platform/errors"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/event"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
)

var fixedNow = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

func sequentialIDs() func() (string, error) {
	n := 0
	return func() (string, error) {
		n++
		return fmt.Sprintf("rev-%d", n), nil
	}
}

func validGraph() graph.Graph {
	return graph.Graph{
		SchemaVersion: graph.SchemaVersion,
		Title:         "Lighthouse",
		StartNodeID:   "start",
		Nodes: []graph.Node{
			{ID: "start", EndingType: graph.EndingNeutral, Choices: []graph.Choice{{ID: "go", TargetNodeID: "end", Consequences: []graph.Consequence{}}}},
			{ID: "end", IsEnding: true, EndingType: graph.EndingGood, Choices: []graph.Choice{}},
		},
	}
}

func pendingRevision(t *testing.T) Revision {
	t.Helper()
	draft, err := NewDraft("comic-1", "author-1", 1, validGraph(), fixedNow, sequentialIDs())
	if err != nil {
		t.Fatalf("new draft: %v", err)
	}
	pending, _, err := Submit(draft, fixedNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return pending
}

func TestNewComicValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewComic("", "Title", fixedNow, sequentialIDs()); !errors.Is(err, ErrAuthorMissing) {
		t.Fatalf("expected ErrAuthorMissing, got %v", err)
	}
	if _, err := NewComic("a", "  ", fixedNow, sequentialIDs()); !errors.Is(err, ErrTitleEmpty) {
		t.Fatalf("expected ErrTitleEmpty, got %v", err)
	}
	comic, err := NewComic("a", " Lighthouse ", fixedNow, sequentialIDs())
	if err != nil {
		t.Fatalf("new comic: %v", err)
	}
	if comic.Title != "Lighthouse" || comic.Published() {
		t.Fatalf("comic = %+v", comic)
	}
}

func TestNewDraftAndUpdate(t *testing.T) {
	t.Parallel()

	draft, err := NewDraft("comic-1", "author-1", 0, graph.CreateDefault(graph.DefaultMeta{}), fixedNow, sequentialIDs())
	if err != nil {
		t.Fatalf("new draft: %v", err)
	}
	if draft.Version != 1 || draft.Status != StatusDraft || !strings.HasPrefix(draft.PayloadDigest, "blake3:") {
		t.Fatalf("draft = %+v", draft)
	}

	updated, err := UpdateDraft(draft, validGraph(), fixedNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if updated.PayloadDigest == draft.PayloadDigest {
		t.Fatal("expected digest to change with graph")
	}
	if !updated.UpdatedAt.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("updated at = %v", updated.UpdatedAt)
	}

	pending := pendingRevision(t)
	if _, err := UpdateDraft(pending, validGraph(), fixedNow); !errors.Is(err, ErrNotDraft) {
		t.Fatalf("expected ErrNotDraft, got %v", err)
	}
}

func TestDigestIsStable(t *testing.T) {
	t.Parallel()

	if Digest(validGraph()) != Digest(validGraph()) {
		t.Fatal("expected equal graphs to share a digest")
	}
	changed := validGraph()
	changed.Nodes[0].Title = "Shore"
	if Digest(changed) == Digest(validGraph()) {
		t.Fatal("expected different graphs to differ")
	}
}

func TestSubmitRequiresValidGraph(t *testing.T) {
	t.Parallel()

	draft, err := NewDraft("comic-1", "author-1", 1, graph.CreateDefault(graph.DefaultMeta{}), fixedNow, sequentialIDs())
	if err != nil {
		t.Fatalf("new draft: %v", err)
	}
	same, report, err := Submit(draft, fixedNow)
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
	if report.Valid() {
		t.Fatal("expected report errors")
	}
	if same.Status != StatusDraft || same.SubmittedAt != nil {
		t.Fatalf("revision changed on failure: %+v", same)
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) || domainErr.Metadata["ErrorCount"] != "1" {
		t.Fatalf("metadata = %+v", domainErr)
	}
}

func TestSubmitSetsPending(t *testing.T) {
	t.Parallel()

	pending := pendingRevision(t)
	if pending.Status != StatusPendingReview || pending.SubmittedAt == nil {
		t.Fatalf("pending = %+v", pending)
	}
	if _, _, err := Submit(pending, fixedNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on resubmit, got %v", err)
	}
}

func TestApproveProducesPointerSwap(t *testing.T) {
	t.Parallel()

	pending := pendingRevision(t)
	decision, err := Approve(pending, "mod-1", fixedNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if decision.Revision.Status != StatusApproved || decision.Revision.ReviewedBy != "mod-1" || decision.Revision.ReviewedAt == nil {
		t.Fatalf("revision = %+v", decision.Revision)
	}
	want := PublishPointer{ComicID: "comic-1", RevisionID: pending.ID, Version: 1}
	if decision.Publish == nil || *decision.Publish != want {
		t.Fatalf("publish = %+v, want %+v", decision.Publish, want)
	}
	evt := decision.Event()
	payload, ok := evt.Payload.(event.RevisionDecided)
	if !ok || payload.Decision != event.DecisionApproved || payload.AuthorID != "author-1" || payload.ComicTitle != "Lighthouse" {
		t.Fatalf("event = %+v", evt)
	}
	if !evt.Timestamp.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("event timestamp = %v", evt.Timestamp)
	}
}

func TestApproveTwiceFails(t *testing.T) {
	t.Parallel()

	decision, err := Approve(pendingRevision(t), "mod-1", fixedNow)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	again, err := Approve(decision.Revision, "mod-2", fixedNow.Add(time.Minute))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second approve: expected ErrInvalidTransition, got %v", err)
	}
	if again.Publish != nil {
		t.Fatalf("second approve moved the pointer: %+v", again.Publish)
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) || domainErr.Metadata["FromStatus"] != "approved" || domainErr.Metadata["ToStatus"] != "approved" {
		t.Fatalf("metadata = %+v", domainErr)
	}
}

func TestRejectKeepsPointer(t *testing.T) {
	t.Parallel()

	pending := pendingRevision(t)
	if _, err := Reject(pending, "mod-1", " ", fixedNow); !errors.Is(err, ErrReasonMissing) {
		t.Fatalf("expected ErrReasonMissing, got %v", err)
	}
	decision, err := Reject(pending, "mod-1", "panel 3 is blank", fixedNow)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if decision.Publish != nil {
		t.Fatal("rejection must not move the published pointer")
	}
	if decision.Revision.RejectionReason != "panel 3 is blank" || decision.Decided.Decision != event.DecisionRejected {
		t.Fatalf("decision = %+v", decision)
	}
}

func TestIllegalTransitions(t *testing.T) {
	t.Parallel()

	draft, err := NewDraft("comic-1", "author-1", 1, validGraph(), fixedNow, sequentialIDs())
	if err != nil {
		t.Fatalf("new draft: %v", err)
	}
	if _, err := Approve(draft, "mod-1", fixedNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("approve draft: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := Reject(draft, "mod-1", "no", fixedNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reject draft: expected ErrInvalidTransition, got %v", err)
	}

	approved, err := Approve(pendingRevision(t), "mod-1", fixedNow)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = Reject(approved.Revision, "mod-1", "changed my mind", fixedNow)
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) || domainErr.Code != apperrors.CodeRevisionInvalidTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if domainErr.Metadata["FromStatus"] != "approved" || domainErr.Metadata["ToStatus"] != "rejected" {
		t.Fatalf("metadata = %v", domainErr.Metadata)
	}
	if _, err := Approve(pendingRevision(t), " ", fixedNow); !errors.Is(err, ErrReviewerMissing) {
		t.Fatalf("expected ErrReviewerMissing, got %v", err)
	}
}

func TestStatusTransitionTable(t *testing.T) {
	t.Parallel()

	statuses := []Status{StatusDraft, StatusPendingReview, StatusApproved, StatusRejected}
	allowed := map[[2]Status]bool{
		{StatusDraft, StatusPendingReview}:    true,
		{StatusPendingReview, StatusApproved}: true,
		{StatusPendingReview, StatusRejected}: true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			if got := IsStatusTransitionAllowed(from, to); got != allowed[[2]Status{from, to}] {
				t.Fatalf("IsStatusTransitionAllowed(%s, %s) = %v", from, to, got)
			}
		}
	}
}

func TestNextDraftCarriesPayloadForward(t *testing.T) {
	t.Parallel()

	ids := sequentialIDs()
	pending := pendingRevision(t)
	rejected, err := Reject(pending, "mod-1", "typo", fixedNow)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}

	next, err := NextDraft(rejected.Revision, nil, fixedNow.Add(time.Hour), ids)
	if err != nil {
		t.Fatalf("next draft: %v", err)
	}
	if next.Version != 2 || next.Status != StatusDraft || next.ID == rejected.Revision.ID {
		t.Fatalf("next = %+v", next)
	}
	if next.PayloadDigest != rejected.Revision.PayloadDigest {
		t.Fatal("expected payload carried forward")
	}
	if rejected.Revision.Status != StatusRejected {
		t.Fatal("rejected revision must stay rejected")
	}

	replacement := graph.CreateDefault(graph.DefaultMeta{Title: "New"})
	withGraph, err := NextDraft(rejected.Revision, &replacement, fixedNow, ids)
	if err != nil {
		t.Fatalf("next draft with graph: %v", err)
	}
	if withGraph.Graph.Title != "New" {
		t.Fatalf("graph = %+v", withGraph.Graph)
	}

	if _, err := NextDraft(pending, nil, fixedNow, ids); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from pending, got %v", err)
	}
}

func TestLiveAndLatest(t *testing.T) {
	t.Parallel()

	revisions := []Revision{
		{ID: "r1", Version: 1, Status: StatusApproved},
		{ID: "r2", Version: 2, Status: StatusRejected},
		{ID: "r3", Version: 3, Status: StatusDraft},
	}
	live, ok := Live(revisions, "r1")
	if !ok || live.ID != "r1" {
		t.Fatalf("live = %+v, %v", live, ok)
	}
	if _, ok := Live(revisions, "r2"); ok {
		t.Fatal("rejected revision cannot be live")
	}
	if _, ok := Live(revisions, ""); ok {
		t.Fatal("empty pointer has no live revision")
	}
	latest, ok := Latest(revisions)
	if !ok || latest.ID != "r3" {
		t.Fatalf("latest = %+v", latest)
	}
	if _, ok := Latest(nil); ok {
		t.Fatal("expected no latest for empty list")
	}
}

func TestIDGeneratorFailure(t *testing.T) {
	t.Parallel()

	failing := func() (string, error) { return "", errors.New("entropy exhausted") }
	if _, err := NewDraft("c", "a", 1, validGraph(), fixedNow, failing); err == nil {
		t.Fatal("expected id generation error")
	}
}
