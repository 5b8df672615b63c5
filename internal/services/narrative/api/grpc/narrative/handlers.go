package narrative

import (
	"context"
	"encoding/json"
	"log"

	apperrors "github.com/louisbranch/branching.ink/internal/platform/errors"
	"github.com/louisbranch/branching.ink/internal/platform/requestctx"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/event"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// handleError converts err to a localized status for the caller.
func handleError(ctx context.Context, err error) error {
	converted := apperrors.HandleError(err, requestctx.LocaleFromContext(ctx))
	if status.Code(converted) == codes.Internal {
		log.Printf("narrative rpc failed: %v", err)
	}
	return converted
}

func respond(ctx context.Context, v any, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return toStruct(v)
}

// CreateComic creates a comic owned by the caller.
func (s *Service) CreateComic(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	comic, draft, err := newAuthoringApplication(s).CreateComic(ctx, requestctx.UserIDFromContext(ctx), stringField(in, "title"))
	if err != nil {
		return nil, handleError(ctx, err)
	}
	draftView, err := toRevisionView(draft, true)
	return respond(ctx, map[string]any{"comic": toComicView(comic), "draft": draftView}, err)
}

// GetComic returns one comic.
func (s *Service) GetComic(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	comicID, err := requireField(in, "comicId")
	if err != nil {
		return nil, err
	}
	comic, err := newAuthoringApplication(s).GetComic(ctx, comicID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return toStruct(map[string]any{"comic": toComicView(comic)})
}

// SaveDraft stores the caller's working graph for a comic.
func (s *Service) SaveDraft(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	comicID, err := requireField(in, "comicId")
	if err != nil {
		return nil, err
	}
	g, err := graphField(in)
	if err != nil {
		return nil, err
	}
	rev, report, err := newAuthoringApplication(s).SaveDraft(ctx, comicID, requestctx.UserIDFromContext(ctx), g)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	view, err := toRevisionView(rev, true)
	return respond(ctx, map[string]any{"revision": view, "report": report}, err)
}

// ValidateGraph normalizes and validates a graph without storing it.
func (s *Service) ValidateGraph(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	g, err := graphField(in)
	if err != nil {
		return nil, err
	}
	report := newAuthoringApplication(s).ValidateGraph(g)
	canonical, err := graph.MarshalCanonical(g)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return toStruct(map[string]any{"graph": json.RawMessage(canonical), "report": report})
}

// SubmitRevision sends a draft to review.
func (s *Service) SubmitRevision(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	revisionID, err := requireField(in, "revisionId")
	if err != nil {
		return nil, err
	}
	rev, report, err := newAuthoringApplication(s).SubmitRevision(ctx, revisionID, requestctx.UserIDFromContext(ctx))
	if err != nil {
		return nil, handleError(ctx, err)
	}
	view, err := toRevisionView(rev, false)
	return respond(ctx, map[string]any{"revision": view, "report": report}, err)
}

// ApproveRevision publishes a pending revision; the caller is the reviewer.
func (s *Service) ApproveRevision(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	revisionID, err := requireField(in, "revisionId")
	if err != nil {
		return nil, err
	}
	rev, err := newAuthoringApplication(s).ApproveRevision(ctx, revisionID, requestctx.UserIDFromContext(ctx))
	if err != nil {
		return nil, handleError(ctx, err)
	}
	view, err := toRevisionView(rev, false)
	return respond(ctx, map[string]any{"revision": view}, err)
}

// RejectRevision closes a pending revision with a reason.
func (s *Service) RejectRevision(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	revisionID, err := requireField(in, "revisionId")
	if err != nil {
		return nil, err
	}
	rev, err := newAuthoringApplication(s).RejectRevision(ctx, revisionID, requestctx.UserIDFromContext(ctx), stringField(in, "reason"))
	if err != nil {
		return nil, handleError(ctx, err)
	}
	view, err := toRevisionView(rev, false)
	return respond(ctx, map[string]any{"revision": view}, err)
}

// GetRevision returns one revision with its graph.
func (s *Service) GetRevision(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	revisionID, err := requireField(in, "revisionId")
	if err != nil {
		return nil, err
	}
	rev, err := newAuthoringApplication(s).GetRevision(ctx, revisionID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	view, err := toRevisionView(rev, true)
	return respond(ctx, map[string]any{"revision": view}, err)
}

// ListRevisions returns a page of revisions, newest first.
func (s *Service) ListRevisions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	comicID, err := requireField(in, "comicId")
	if err != nil {
		return nil, err
	}
	page, err := newAuthoringApplication(s).ListRevisions(ctx, comicID, int(intField(in, "pageSize")), stringField(in, "pageToken"))
	if err != nil {
		return nil, handleError(ctx, err)
	}
	views := make([]revisionView, 0, len(page.Revisions))
	for _, rev := range page.Revisions {
		view, err := toRevisionView(rev, false)
		if err != nil {
			return nil, handleError(ctx, err)
		}
		views = append(views, view)
	}
	return toStruct(map[string]any{"revisions": views, "nextPageToken": page.NextPageToken})
}

// GetPublishedGraph returns the live revision of a comic.
func (s *Service) GetPublishedGraph(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	comicID, err := requireField(in, "comicId")
	if err != nil {
		return nil, err
	}
	comic, rev, err := newReadingApplication(s).GetPublishedGraph(ctx, comicID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	view, err := toRevisionView(rev, true)
	return respond(ctx, map[string]any{"comic": toComicView(comic), "revision": view}, err)
}

// StartReading opens the caller's progress on a comic.
func (s *Service) StartReading(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	comicID, err := requireField(in, "comicId")
	if err != nil {
		return nil, err
	}
	result, err := newReadingApplication(s).StartReading(ctx, requestctx.UserIDFromContext(ctx), comicID, elapsedField(in))
	return respondRead(ctx, result, err)
}

// Choose takes a choice on the caller's current node.
func (s *Service) Choose(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	comicID, err := requireField(in, "comicId")
	if err != nil {
		return nil, err
	}
	choiceID, err := requireField(in, "choiceId")
	if err != nil {
		return nil, err
	}
	result, err := newReadingApplication(s).Choose(ctx, requestctx.UserIDFromContext(ctx), comicID, choiceID, elapsedField(in))
	return respondRead(ctx, result, err)
}

// Jump moves the caller back to a visited node.
func (s *Service) Jump(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	comicID, err := requireField(in, "comicId")
	if err != nil {
		return nil, err
	}
	nodeID, err := requireField(in, "nodeId")
	if err != nil {
		return nil, err
	}
	result, err := newReadingApplication(s).Jump(ctx, requestctx.UserIDFromContext(ctx), comicID, nodeID, elapsedField(in))
	return respondRead(ctx, result, err)
}

// Restart returns the caller to the start node.
func (s *Service) Restart(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	comicID, err := requireField(in, "comicId")
	if err != nil {
		return nil, err
	}
	result, err := newReadingApplication(s).Restart(ctx, requestctx.UserIDFromContext(ctx), comicID, elapsedField(in))
	return respondRead(ctx, result, err)
}

// GetProgress returns the caller's stored progress.
func (s *Service) GetProgress(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	comicID, err := requireField(in, "comicId")
	if err != nil {
		return nil, err
	}
	stored, err := newReadingApplication(s).GetProgress(ctx, requestctx.UserIDFromContext(ctx), comicID)
	if err != nil {
		return nil, handleError(ctx, err)
	}
	return toStruct(map[string]any{"progress": toProgressView(stored)})
}

// SyncProgress merges progress uploaded by one of the caller's devices.
func (s *Service) SyncProgress(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	comicID, err := requireField(in, "comicId")
	if err != nil {
		return nil, err
	}
	incoming, err := progressField(in)
	if err != nil {
		return nil, err
	}
	result, err := newReadingApplication(s).SyncProgress(ctx, requestctx.UserIDFromContext(ctx), comicID, incoming)
	return respondRead(ctx, result, err)
}

// Subscribe streams events addressed to the caller until the client leaves
// or the server stops.
func (s *Service) Subscribe(_ *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	if s.hub == nil {
		return status.Error(codes.Unimplemented, "event subscriptions are not configured")
	}
	userID := requestctx.UserIDFromContext(ctx)
	if userID == "" {
		return handleError(ctx, ErrReaderMissing)
	}

	sub := s.hub.Subscribe(event.UserTopic(userID))
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			return nil
		case evt := <-sub.Events():
			msg, err := eventStruct(evt)
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func respondRead(ctx context.Context, result ReadResult, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, handleError(ctx, err)
	}
	events := result.Events
	if events == nil {
		events = []event.Event{}
	}
	return toStruct(map[string]any{"progress": toProgressView(result.Progress), "events": events})
}
