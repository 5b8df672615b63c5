// Package revision models the moderation lifecycle that promotes an editable
// draft graph into an immutable published revision.
//
// Revisions are append-only. A rejected or approved version never changes
// again; the next edit opens version N+1 as a new draft.
package revision

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/branching.ink/internal/platform/id"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/event"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
)

// Revision is one version of a comic's graph.
type Revision struct {
	ID              string
	ComicID         string
	AuthorID        string
	Version         int
	Status          Status
	Graph           graph.Graph
	PayloadDigest   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SubmittedAt     *time.Time
	ReviewedAt      *time.Time
	ReviewedBy      string
	RejectionReason string
}

// Comic owns the single published revision pointer.
type Comic struct {
	ID                  string
	AuthorID            string
	Title               string
	PublishedRevisionID string
	PublishedVersion    int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Published reports whether the comic has a live revision.
func (c Comic) Published() bool {
	return c.PublishedRevisionID != ""
}

// PublishPointer is the comic pointer swap produced by an approval.
type PublishPointer struct {
	ComicID    string
	RevisionID string
	Version    int
}

// Decision is the outcome of a review: the updated revision, the event to
// publish to the author, and, for approvals, the pointer swap to persist.
type Decision struct {
	Revision Revision
	Decided  event.RevisionDecided
	Publish  *PublishPointer
}

// Event wraps the decision payload stamped at the review time.
func (d Decision) Event() event.Event {
	at := time.Time{}
	if d.Revision.ReviewedAt != nil {
		at = *d.Revision.ReviewedAt
	}
	return event.New(d.Decided, at)
}

// NewComic validates and creates a comic record.
func NewComic(authorID, title string, now time.Time, newID id.Generator) (Comic, error) {
	authorID = strings.TrimSpace(authorID)
	title = strings.TrimSpace(title)
	if authorID == "" {
		return Comic{}, ErrAuthorMissing
	}
	if title == "" {
		return Comic{}, ErrTitleEmpty
	}
	comicID, err := newID()
	if err != nil {
		return Comic{}, fmt.Errorf("generate comic id: %w", err)
	}
	now = now.UTC()
	return Comic{ID: comicID, AuthorID: authorID, Title: title, CreatedAt: now, UpdatedAt: now}, nil
}

// NewDraft creates a draft revision at version.
func NewDraft(comicID, authorID string, version int, g graph.Graph, now time.Time, newID id.Generator) (Revision, error) {
	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return Revision{}, ErrAuthorMissing
	}
	if version < 1 {
		version = 1
	}
	revisionID, err := newID()
	if err != nil {
		return Revision{}, fmt.Errorf("generate revision id: %w", err)
	}
	now = now.UTC()
	return Revision{
		ID:            revisionID,
		ComicID:       comicID,
		AuthorID:      authorID,
		Version:       version,
		Status:        StatusDraft,
		Graph:         g,
		PayloadDigest: Digest(g),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// UpdateDraft replaces the graph of a draft revision.
func UpdateDraft(rev Revision, g graph.Graph, now time.Time) (Revision, error) {
	if rev.Status != StatusDraft {
		return rev, ErrNotDraft
	}
	rev.Graph = g
	rev.PayloadDigest = Digest(g)
	rev.UpdatedAt = now.UTC()
	return rev, nil
}

// NextDraft opens version N+1 after latest reached a terminal status. A nil
// graph carries the latest payload forward.
func NextDraft(latest Revision, g *graph.Graph, now time.Time, newID id.Generator) (Revision, error) {
	if !latest.Status.Terminal() {
		return Revision{}, transitionError(latest.Status, StatusDraft)
	}
	payload := latest.Graph
	if g != nil {
		payload = *g
	}
	return NewDraft(latest.ComicID, latest.AuthorID, latest.Version+1, payload, now, newID)
}

// Submit moves a draft into review. The graph must have no validator errors;
// the report is returned either way.
func Submit(rev Revision, now time.Time) (Revision, graph.Report, error) {
	if !isStatusTransitionAllowed(rev.Status, StatusPendingReview) {
		return rev, graph.Report{}, transitionError(rev.Status, StatusPendingReview)
	}
	report := graph.Validate(rev.Graph)
	if !report.Valid() {
		return rev, report, validationError(report)
	}
	now = now.UTC()
	rev.Status = StatusPendingReview
	rev.SubmittedAt = &now
	rev.UpdatedAt = now
	return rev, report, nil
}

// Approve publishes a revision under review.
func Approve(rev Revision, reviewerID string, now time.Time) (Decision, error) {
	return decide(rev, reviewerID, StatusApproved, "", now)
}

// Reject closes a revision under review. The published pointer is untouched.
func Reject(rev Revision, reviewerID, reason string, now time.Time) (Decision, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Decision{}, ErrReasonMissing
	}
	return decide(rev, reviewerID, StatusRejected, reason, now)
}

func decide(rev Revision, reviewerID string, to Status, reason string, now time.Time) (Decision, error) {
	reviewerID = strings.TrimSpace(reviewerID)
	if reviewerID == "" {
		return Decision{}, ErrReviewerMissing
	}
	if !isStatusTransitionAllowed(rev.Status, to) {
		return Decision{}, transitionError(rev.Status, to)
	}

	now = now.UTC()
	rev.Status = to
	rev.ReviewedAt = &now
	rev.ReviewedBy = reviewerID
	rev.RejectionReason = reason
	rev.UpdatedAt = now

	decision := Decision{
		Revision: rev,
		Decided: event.RevisionDecided{
			AuthorID:   rev.AuthorID,
			ComicID:    rev.ComicID,
			ComicTitle: rev.Graph.Title,
			RevisionID: rev.ID,
			Version:    rev.Version,
			ReviewerID: reviewerID,
			Reason:     reason,
		},
	}
	if to == StatusApproved {
		decision.Decided.Decision = event.DecisionApproved
		decision.Publish = &PublishPointer{ComicID: rev.ComicID, RevisionID: rev.ID, Version: rev.Version}
	} else {
		decision.Decided.Decision = event.DecisionRejected
	}
	return decision, nil
}

// Live returns the approved revision referenced by the published pointer.
func Live(revisions []Revision, publishedID string) (Revision, bool) {
	if publishedID == "" {
		return Revision{}, false
	}
	for _, rev := range revisions {
		if rev.ID == publishedID && rev.Status == StatusApproved {
			return rev, true
		}
	}
	return Revision{}, false
}

// Latest returns the highest version in revisions.
func Latest(revisions []Revision) (Revision, bool) {
	if len(revisions) == 0 {
		return Revision{}, false
	}
	latest := revisions[0]
	for _, rev := range revisions[1:] {
		if rev.Version > latest.Version {
			latest = rev
		}
	}
	return latest, true
}
