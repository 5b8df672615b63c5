package narrative

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/branching.ink/internal/platform/grpc/pagination"
	"github.com/louisbranch/branching.ink/internal/platform/id"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/event"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/revision"
	"github.com/louisbranch/branching.ink/internal/services/narrative/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type authoringApplication struct {
	store     storage.Store
	sink      func(ctx context.Context, topic string, events ...event.Event)
	clock     func() time.Time
	newID     id.Generator
	telemetry *telemetry
}

func newAuthoringApplication(service *Service) authoringApplication {
	return authoringApplication{
		store:     service.store,
		sink:      service.publish,
		clock:     service.now,
		newID:     service.newID,
		telemetry: service.telemetry,
	}
}

// CreateComic creates a comic and its first draft holding the default graph.
func (a authoringApplication) CreateComic(ctx context.Context, authorID, title string) (_ revision.Comic, _ revision.Revision, err error) {
	ctx, span := a.telemetry.start(ctx, "narrative.CreateComic", attribute.String("author.id", authorID))
	defer func() { end(span, err) }()

	now := a.clock()
	comic, err := revision.NewComic(authorID, title, now, a.newID)
	if err != nil {
		return revision.Comic{}, revision.Revision{}, err
	}
	draft, err := revision.NewDraft(comic.ID, comic.AuthorID, 1, graph.CreateDefault(graph.DefaultMeta{Title: comic.Title}), now, a.newID)
	if err != nil {
		return revision.Comic{}, revision.Revision{}, err
	}
	if err := a.store.CreateComic(ctx, comic, draft); err != nil {
		return revision.Comic{}, revision.Revision{}, fmt.Errorf("create comic: %w", err)
	}
	return comic, draft, nil
}

func (a authoringApplication) GetComic(ctx context.Context, comicID string) (revision.Comic, error) {
	comic, err := a.store.GetComic(ctx, strings.TrimSpace(comicID))
	if err != nil {
		return revision.Comic{}, notFound(err, "comic")
	}
	return comic, nil
}

// SaveDraft stores g as the comic's working draft. The latest draft is
// updated in place; after a decision a new version is opened. A save whose
// digest matches the latest revision writes nothing.
func (a authoringApplication) SaveDraft(ctx context.Context, comicID, authorID string, g graph.Graph) (_ revision.Revision, _ graph.Report, err error) {
	ctx, span := a.telemetry.start(ctx, "narrative.SaveDraft", attribute.String("comic.id", comicID))
	defer func() { end(span, err) }()

	if _, err := a.ownedComic(ctx, comicID, authorID); err != nil {
		return revision.Revision{}, graph.Report{}, err
	}
	report := graph.Validate(g)

	latest, err := a.store.LatestRevision(ctx, comicID)
	if err != nil {
		return revision.Revision{}, graph.Report{}, notFound(err, "revision")
	}
	if latest.PayloadDigest == revision.Digest(g) {
		return latest, report, nil
	}

	now := a.clock()
	switch {
	case latest.Status == revision.StatusDraft:
		updated, err := revision.UpdateDraft(latest, g, now)
		if err != nil {
			return revision.Revision{}, graph.Report{}, err
		}
		if err := a.store.UpdateRevision(ctx, updated, revision.StatusDraft); err != nil {
			return revision.Revision{}, graph.Report{}, fmt.Errorf("update draft: %w", err)
		}
		return updated, report, nil
	case latest.Status.Terminal():
		next, err := revision.NextDraft(latest, &g, now, a.newID)
		if err != nil {
			return revision.Revision{}, graph.Report{}, err
		}
		if err := a.store.CreateRevision(ctx, next); err != nil {
			return revision.Revision{}, graph.Report{}, fmt.Errorf("create draft: %w", err)
		}
		return next, report, nil
	default:
		return revision.Revision{}, graph.Report{}, revision.ErrNotDraft
	}
}

// ValidateGraph reports on g without persisting anything.
func (a authoringApplication) ValidateGraph(g graph.Graph) graph.Report {
	return graph.Validate(g)
}

// SubmitRevision moves a draft into review.
func (a authoringApplication) SubmitRevision(ctx context.Context, revisionID, authorID string) (_ revision.Revision, _ graph.Report, err error) {
	ctx, span := a.telemetry.start(ctx, "narrative.SubmitRevision", attribute.String("revision.id", revisionID))
	defer func() { end(span, err) }()

	rev, err := a.store.GetRevision(ctx, strings.TrimSpace(revisionID))
	if err != nil {
		return revision.Revision{}, graph.Report{}, notFound(err, "revision")
	}
	if _, err := a.ownedComic(ctx, rev.ComicID, authorID); err != nil {
		return revision.Revision{}, graph.Report{}, err
	}
	submitted, report, err := revision.Submit(rev, a.clock())
	if err != nil {
		return revision.Revision{}, report, err
	}
	if err := a.store.UpdateRevision(ctx, submitted, revision.StatusDraft); err != nil {
		return revision.Revision{}, graph.Report{}, fmt.Errorf("submit revision: %w", err)
	}
	return submitted, report, nil
}

// ApproveRevision publishes a pending revision and notifies the author.
func (a authoringApplication) ApproveRevision(ctx context.Context, revisionID, reviewerID string) (revision.Revision, error) {
	return a.decide(ctx, revisionID, func(rev revision.Revision, now time.Time) (revision.Decision, error) {
		return revision.Approve(rev, reviewerID, now)
	})
}

// RejectRevision closes a pending revision and notifies the author.
func (a authoringApplication) RejectRevision(ctx context.Context, revisionID, reviewerID, reason string) (revision.Revision, error) {
	return a.decide(ctx, revisionID, func(rev revision.Revision, now time.Time) (revision.Decision, error) {
		return revision.Reject(rev, reviewerID, reason, now)
	})
}

func (a authoringApplication) decide(ctx context.Context, revisionID string, decideFn func(revision.Revision, time.Time) (revision.Decision, error)) (_ revision.Revision, err error) {
	ctx, span := a.telemetry.start(ctx, "narrative.DecideRevision", attribute.String("revision.id", revisionID))
	decisionLabel := ""
	defer func() {
		a.telemetry.revisionDecisions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("decision", decisionLabel),
			attribute.String("outcome", outcome(err)),
		))
		end(span, err)
	}()

	rev, err := a.store.GetRevision(ctx, strings.TrimSpace(revisionID))
	if err != nil {
		return revision.Revision{}, notFound(err, "revision")
	}
	comic, err := a.store.GetComic(ctx, rev.ComicID)
	if err != nil {
		return revision.Revision{}, notFound(err, "comic")
	}
	decision, err := decideFn(rev, a.clock())
	if err != nil {
		return revision.Revision{}, err
	}
	decisionLabel = decision.Decided.Decision
	decision.Decided.ComicTitle = comic.Title

	if err := a.store.DecideRevision(ctx, decision); err != nil {
		return revision.Revision{}, fmt.Errorf("decide revision: %w", err)
	}
	a.sink(ctx, event.UserTopic(decision.Decided.AuthorID), decision.Event())
	return decision.Revision, nil
}

// ListRevisions returns one page of a comic's revisions, newest first.
// Page tokens are opaque wrappers around the storage version cursor.
func (a authoringApplication) ListRevisions(ctx context.Context, comicID string, pageSize int, pageToken string) (storage.RevisionPage, error) {
	comicID = strings.TrimSpace(comicID)
	if _, err := a.store.GetComic(ctx, comicID); err != nil {
		return storage.RevisionPage{}, notFound(err, "comic")
	}
	pageSize = pagination.ClampPageSize(pageSize, pagination.PageSizeConfig{
		Default: defaultListRevisionsPageSize,
		Max:     maxListRevisionsPageSize,
	})
	cursor, err := pagination.DecodeOffset(pageToken)
	if err != nil {
		return storage.RevisionPage{}, errInvalidArgument(err.Error())
	}
	storeToken := ""
	if cursor > 0 {
		storeToken = strconv.Itoa(cursor)
	}

	page, err := a.store.ListRevisions(ctx, comicID, pageSize, storeToken)
	if err != nil {
		return storage.RevisionPage{}, fmt.Errorf("list revisions: %w", err)
	}
	if page.NextPageToken != "" {
		next, err := strconv.Atoi(page.NextPageToken)
		if err != nil {
			return storage.RevisionPage{}, fmt.Errorf("list revisions: invalid cursor %q", page.NextPageToken)
		}
		page.NextPageToken = pagination.EncodeOffset(next)
	}
	return page, nil
}

func (a authoringApplication) GetRevision(ctx context.Context, revisionID string) (revision.Revision, error) {
	rev, err := a.store.GetRevision(ctx, strings.TrimSpace(revisionID))
	if err != nil {
		return revision.Revision{}, notFound(err, "revision")
	}
	return rev, nil
}

func (a authoringApplication) ownedComic(ctx context.Context, comicID, authorID string) (revision.Comic, error) {
	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return revision.Comic{}, revision.ErrAuthorMissing
	}
	comic, err := a.store.GetComic(ctx, strings.TrimSpace(comicID))
	if err != nil {
		return revision.Comic{}, notFound(err, "comic")
	}
	if comic.AuthorID != authorID {
		return revision.Comic{}, ErrAuthorMismatch
	}
	return comic, nil
}
