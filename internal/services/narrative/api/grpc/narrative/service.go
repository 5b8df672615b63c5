// Package narrative exposes the authoring, moderation and reading workflows
// over gRPC.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	apperrors "github.com/louisbranch/branching.ink/internal/platform/errors"
	"github.com/louisbranch/branching.ink/internal/platform/id"
	"github.com/louisbranch/branching.ink/internal/platform/timeouts"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/event"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/revision"
	"github.com/louisbranch/branching.ink/internal/services/narrative/realtime"
	"github.com/louisbranch/branching.ink/internal/services/narrative/storage"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultListRevisionsPageSize = 10
	maxListRevisionsPageSize     = 50

	// maxProgressWriteAttempts bounds the read-merge-write loop on progress.
	maxProgressWriteAttempts = 5

	// maxMoveElapsedSeconds caps the reading time one move may report.
	maxMoveElapsedSeconds = 24 * 60 * 60
)

// ErrComicNotPublished indicates a reader request on a comic with no live
// revision.
var ErrComicNotPublished = apperrors.New(apperrors.CodeComicNotPublished, "comic has no published revision")

// ErrAuthorMismatch indicates an authoring call from someone other than the
// comic author.
var ErrAuthorMismatch = apperrors.New(apperrors.CodeComicAuthorMismatch, "caller is not the comic author")

// ErrReaderMissing indicates a reading call without a reader id.
var ErrReaderMissing = apperrors.New(apperrors.CodeProgressReaderMissing, "reader is required")

// Config wires a Service.
type Config struct {
	Store storage.Store
	// Hub serves Subscribe and, when Sink is nil, receives published events.
	Hub            *realtime.Hub
	Sink           event.Sink
	Clock          func() time.Time
	IDGenerator    id.Generator
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	// PublishTimeout bounds event delivery after a write. Zero means
	// timeouts.EventPublish.
	PublishTimeout time.Duration
}

// Service exposes narrative.v1 operations.
type Service struct {
	store     storage.Store
	hub       *realtime.Hub
	sink      event.Sink
	clock     func() time.Time
	newID     id.Generator
	telemetry *telemetry
	graphs    *graphCache

	publishTimeout time.Duration
}

// NewService creates a narrative service. Store is required; the other
// fields fall back to defaults.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("narrative store is required")
	}
	tel, err := newTelemetry(cfg.TracerProvider, cfg.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("init narrative telemetry: %w", err)
	}
	s := &Service{
		store:     cfg.Store,
		hub:       cfg.Hub,
		sink:      cfg.Sink,
		clock:     cfg.Clock,
		newID:     cfg.IDGenerator,
		telemetry: tel,

		publishTimeout: cfg.PublishTimeout,
	}
	if s.sink == nil && s.hub != nil {
		s.sink = s.hub
	}
	if s.sink == nil {
		s.sink = event.Discard
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = id.Default
	}
	if s.publishTimeout <= 0 {
		s.publishTimeout = timeouts.EventPublish
	}
	s.graphs = newGraphCache(cfg.Store.GetRevision)
	return s, nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// publish delivers events to topic within publishTimeout. Delivery failures
// are logged and never fail the write that produced the events; devices catch
// up on next read.
func (s *Service) publish(ctx context.Context, topic string, events ...event.Event) {
	if len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err := s.sink.Publish(ctx, topic, events...); err != nil {
		log.Printf("publish events topic=%s count=%d: %v", topic, len(events), err)
	}
}

// publishedRevision returns the live revision of comicID.
func (s *Service) publishedRevision(ctx context.Context, comicID string) (revision.Comic, revision.Revision, error) {
	comic, err := s.store.GetComic(ctx, comicID)
	if err != nil {
		return revision.Comic{}, revision.Revision{}, notFound(err, "comic")
	}
	if !comic.Published() {
		return comic, revision.Revision{}, ErrComicNotPublished
	}
	rev, err := s.graphs.Get(ctx, comic.PublishedRevisionID)
	if err != nil {
		return comic, revision.Revision{}, notFound(err, "revision")
	}
	return comic, rev, nil
}

// notFound annotates storage.ErrNotFound with the missing resource so the
// localized message can name it.
func notFound(err error, resource string) error {
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return &apperrors.Error{
		Code:     apperrors.CodeNotFound,
		Message:  resource + " not found",
		Metadata: map[string]string{"Resource": resource},
		Cause:    err,
	}
}
