package narrative

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	apperrors "github.com/louisbranch/branching.ink/internal/platform/errors"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/event"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/progress"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/revision"
	"github.com/louisbranch/branching.ink/internal/services/narrative/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type readingApplication struct {
	service *Service
}

func newReadingApplication(service *Service) readingApplication {
	return readingApplication{service: service}
}

// ReadResult is the stored progress after a move and the events it emitted.
type ReadResult struct {
	Progress storage.StoredProgress
	Events   []event.Event
}

// GetPublishedGraph returns the comic and its live revision.
func (a readingApplication) GetPublishedGraph(ctx context.Context, comicID string) (revision.Comic, revision.Revision, error) {
	return a.service.publishedRevision(ctx, strings.TrimSpace(comicID))
}

// StartReading opens progress on the published revision. A reader who has
// already started gets the stored progress back unchanged.
func (a readingApplication) StartReading(ctx context.Context, readerID, comicID string, elapsed int64) (ReadResult, error) {
	action := progress.Start(readerID, comicID, "")
	action.ElapsedSeconds = elapsed
	return a.advance(ctx, readerID, comicID, action)
}

func (a readingApplication) Choose(ctx context.Context, readerID, comicID, choiceID string, elapsed int64) (ReadResult, error) {
	action := progress.Choose(strings.TrimSpace(choiceID))
	action.ElapsedSeconds = elapsed
	return a.advance(ctx, readerID, comicID, action)
}

func (a readingApplication) Jump(ctx context.Context, readerID, comicID, nodeID string, elapsed int64) (ReadResult, error) {
	action := progress.Jump(strings.TrimSpace(nodeID))
	action.ElapsedSeconds = elapsed
	return a.advance(ctx, readerID, comicID, action)
}

func (a readingApplication) Restart(ctx context.Context, readerID, comicID string, elapsed int64) (ReadResult, error) {
	action := progress.Restart()
	action.ElapsedSeconds = elapsed
	return a.advance(ctx, readerID, comicID, action)
}

// GetProgress returns the stored progress of reader on comic.
func (a readingApplication) GetProgress(ctx context.Context, readerID, comicID string) (storage.StoredProgress, error) {
	readerID, comicID = strings.TrimSpace(readerID), strings.TrimSpace(comicID)
	if readerID == "" {
		return storage.StoredProgress{}, ErrReaderMissing
	}
	stored, err := a.service.store.GetProgress(ctx, readerID, comicID)
	if err != nil {
		return storage.StoredProgress{}, notFound(err, "progress")
	}
	return stored, nil
}

// SyncProgress merges progress uploaded by a device into the stored copy.
func (a readingApplication) SyncProgress(ctx context.Context, readerID, comicID string, incoming progress.Progress) (_ ReadResult, err error) {
	readerID, comicID = strings.TrimSpace(readerID), strings.TrimSpace(comicID)
	ctx, span := a.service.telemetry.start(ctx, "narrative.SyncProgress",
		attribute.String("reader.id", readerID),
		attribute.String("comic.id", comicID),
	)
	defer func() { end(span, err) }()

	if readerID == "" {
		return ReadResult{}, ErrReaderMissing
	}
	incoming.ReaderID = readerID
	incoming.ComicID = comicID

	var current *progress.Progress
	expected := int64(0)
	stored, err := a.service.store.GetProgress(ctx, readerID, comicID)
	switch {
	case err == nil:
		current = &stored.Progress
		expected = stored.Version
		if incoming.RevisionID == "" {
			incoming.RevisionID = stored.Progress.RevisionID
		}
		if incoming.RevisionID != stored.Progress.RevisionID {
			return ReadResult{}, revisionMismatch(incoming.RevisionID)
		}
	case errors.Is(err, storage.ErrNotFound):
		if incoming.RevisionID == "" {
			_, live, err := a.service.publishedRevision(ctx, comicID)
			if err != nil {
				return ReadResult{}, err
			}
			incoming.RevisionID = live.ID
		}
	default:
		return ReadResult{}, fmt.Errorf("get progress: %w", err)
	}

	if err := a.checkIncoming(ctx, comicID, incoming); err != nil {
		return ReadResult{}, err
	}
	candidate := progress.Merge(incoming, incoming)
	if current != nil {
		candidate = progress.Merge(*current, incoming)
	}

	written, err := a.writeProgress(ctx, candidate, expected)
	if err != nil {
		return ReadResult{}, err
	}
	synced := a.synced(written)
	a.service.publish(ctx, event.UserTopic(readerID), synced)
	return ReadResult{Progress: written, Events: []event.Event{synced}}, nil
}

// checkIncoming rejects uploaded progress pinned to a revision the reader
// cannot read, or naming nodes that revision does not have.
func (a readingApplication) checkIncoming(ctx context.Context, comicID string, incoming progress.Progress) error {
	rev, err := a.service.graphs.Get(ctx, incoming.RevisionID)
	if errors.Is(err, storage.ErrNotFound) {
		return revisionMismatch(incoming.RevisionID)
	}
	if err != nil {
		return fmt.Errorf("get revision: %w", err)
	}
	if rev.ComicID != comicID || rev.Status != revision.StatusApproved {
		return revisionMismatch(incoming.RevisionID)
	}
	return progress.CheckGraph(rev.Graph, incoming)
}

func revisionMismatch(revisionID string) error {
	return apperrors.WithMetadata(progress.ErrSyncMismatch.Code, progress.ErrSyncMismatch.Message, map[string]string{
		"Field": "revisionId",
		"Value": revisionID,
	})
}

func (a readingApplication) advance(ctx context.Context, readerID, comicID string, action progress.Action) (_ ReadResult, err error) {
	readerID, comicID = strings.TrimSpace(readerID), strings.TrimSpace(comicID)
	ctx, span := a.service.telemetry.start(ctx, "narrative.Advance",
		attribute.String("reader.id", readerID),
		attribute.String("comic.id", comicID),
		attribute.String("action", string(action.Kind)),
	)
	defer func() {
		a.service.telemetry.advanceTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", string(action.Kind)),
			attribute.String("outcome", outcome(err)),
		))
		end(span, err)
	}()

	if readerID == "" {
		return ReadResult{}, ErrReaderMissing
	}

	var current *progress.Progress
	expected := int64(0)
	stored, err := a.service.store.GetProgress(ctx, readerID, comicID)
	switch {
	case err == nil:
		current = &stored.Progress
		expected = stored.Version
	case errors.Is(err, storage.ErrNotFound):
	default:
		return ReadResult{}, fmt.Errorf("get progress: %w", err)
	}

	if current != nil && action.Kind == progress.ActionStart {
		return ReadResult{Progress: stored}, nil
	}

	g, revisionID, err := a.graphFor(ctx, comicID, current, action)
	if err != nil {
		return ReadResult{}, err
	}
	if action.Kind == progress.ActionStart {
		action.ReaderID = readerID
		action.ComicID = comicID
		action.RevisionID = revisionID
	}

	result, err := progress.Advance(g, current, action, a.service.now)
	if err != nil {
		return ReadResult{}, err
	}
	if current != nil && len(result.Events) == 0 {
		return ReadResult{Progress: stored}, nil
	}
	written, err := a.writeProgress(ctx, result.Progress, expected)
	if err != nil {
		return ReadResult{}, err
	}

	events := append(result.Events, a.synced(written))
	a.service.publish(ctx, event.UserTopic(readerID), events...)
	return ReadResult{Progress: written, Events: events}, nil
}

// graphFor picks the graph a move runs against. Started progress stays on the
// revision it began with; a new start uses the live revision.
func (a readingApplication) graphFor(ctx context.Context, comicID string, current *progress.Progress, action progress.Action) (graph.Graph, string, error) {
	if current == nil {
		if action.Kind != progress.ActionStart {
			return graph.Graph{}, "", progress.ErrNotStarted
		}
		_, live, err := a.service.publishedRevision(ctx, comicID)
		if err != nil {
			return graph.Graph{}, "", err
		}
		return live.Graph, live.ID, nil
	}
	rev, err := a.service.graphs.Get(ctx, current.RevisionID)
	if err != nil {
		return graph.Graph{}, "", notFound(err, "revision")
	}
	return rev.Graph, rev.ID, nil
}

// writeProgress stores candidate under the expected version. When another
// device wrote first, the stored copy is merged with candidate and the write
// retried.
func (a readingApplication) writeProgress(ctx context.Context, candidate progress.Progress, expected int64) (storage.StoredProgress, error) {
	for attempt := 1; ; attempt++ {
		now := a.service.now()
		version, err := a.service.store.PutProgress(ctx, candidate, expected, now)
		if err == nil {
			return storage.StoredProgress{Progress: candidate, Version: version, UpdatedAt: now}, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return storage.StoredProgress{}, fmt.Errorf("put progress: %w", err)
		}

		log.Printf("progress write conflict reader_id=%s comic_id=%s attempt=%d", candidate.ReaderID, candidate.ComicID, attempt)
		a.service.telemetry.progressConflicts.Add(ctx, 1)
		if attempt >= maxProgressWriteAttempts {
			return storage.StoredProgress{}, err
		}

		latest, err := a.service.store.GetProgress(ctx, candidate.ReaderID, candidate.ComicID)
		switch {
		case err == nil:
			candidate = progress.Merge(latest.Progress, candidate)
			expected = latest.Version
		case errors.Is(err, storage.ErrNotFound):
			expected = 0
		default:
			return storage.StoredProgress{}, fmt.Errorf("get progress: %w", err)
		}
	}
}

func (a readingApplication) synced(stored storage.StoredProgress) event.Event {
	return event.New(event.ProgressSynced{
		ReaderID:      stored.Progress.ReaderID,
		ComicID:       stored.Progress.ComicID,
		Version:       stored.Version,
		CurrentNodeID: stored.Progress.CurrentNodeID,
		Status:        string(stored.Progress.Status),
	}, stored.UpdatedAt)
}
