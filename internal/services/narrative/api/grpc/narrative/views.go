package narrative

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/event"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/progress"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/revision"
	"github.com/louisbranch/branching.ink/internal/services/narrative/storage"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

type comicView struct {
	ID                  string    `json:"id"`
	AuthorID            string    `json:"authorId"`
	Title               string    `json:"title"`
	PublishedRevisionID string    `json:"publishedRevisionId,omitempty"`
	PublishedVersion    int       `json:"publishedVersion,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type revisionView struct {
	ID              string          `json:"id"`
	ComicID         string          `json:"comicId"`
	AuthorID        string          `json:"authorId"`
	Version         int             `json:"version"`
	Status          string          `json:"status"`
	PayloadDigest   string          `json:"payloadDigest"`
	Graph           json.RawMessage `json:"graph,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	SubmittedAt     *time.Time      `json:"submittedAt,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewedAt,omitempty"`
	ReviewedBy      string          `json:"reviewedBy,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
}

type progressView struct {
	Progress  progress.Progress `json:"progress"`
	Version   int64             `json:"version"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func toComicView(comic revision.Comic) comicView {
	return comicView{
		ID:                  comic.ID,
		AuthorID:            comic.AuthorID,
		Title:               comic.Title,
		PublishedRevisionID: comic.PublishedRevisionID,
		PublishedVersion:    comic.PublishedVersion,
		CreatedAt:           comic.CreatedAt,
		UpdatedAt:           comic.UpdatedAt,
	}
}

// toRevisionView maps rev; the graph is included only when withGraph is set
// so list pages stay small.
func toRevisionView(rev revision.Revision, withGraph bool) (revisionView, error) {
	view := revisionView{
		ID:              rev.ID,
		ComicID:         rev.ComicID,
		AuthorID:        rev.AuthorID,
		Version:         rev.Version,
		Status:          string(rev.Status),
		PayloadDigest:   rev.PayloadDigest,
		CreatedAt:       rev.CreatedAt,
		UpdatedAt:       rev.UpdatedAt,
		SubmittedAt:     rev.SubmittedAt,
		ReviewedAt:      rev.ReviewedAt,
		ReviewedBy:      rev.ReviewedBy,
		RejectionReason: rev.RejectionReason,
	}
	if withGraph {
		raw, err := graph.MarshalCanonical(rev.Graph)
		if err != nil {
			return revisionView{}, fmt.Errorf("encode graph: %w", err)
		}
		view.Graph = raw
	}
	return view, nil
}

func toProgressView(stored storage.StoredProgress) progressView {
	return progressView{Progress: stored.Progress, Version: stored.Version, UpdatedAt: stored.UpdatedAt}
}

// toStruct encodes v as JSON and decodes it into a Struct message.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func eventStruct(evt event.Event) (*structpb.Struct, error) {
	return toStruct(evt)
}

func stringField(in *structpb.Struct, key string) string {
	return strings.TrimSpace(in.GetFields()[key].GetStringValue())
}

// intField truncates a numeric field, saturating at the int64 range. NaN
// reads as zero.
func intField(in *structpb.Struct, key string) int64 {
	value := in.GetFields()[key].GetNumberValue()
	switch {
	case math.IsNaN(value):
		return 0
	case value >= math.MaxInt64:
		return math.MaxInt64
	case value <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(value)
	}
}

// elapsedField reads elapsedSeconds clamped to one move's plausible range.
func elapsedField(in *structpb.Struct) int64 {
	return min(max(intField(in, "elapsedSeconds"), 0), maxMoveElapsedSeconds)
}

// graphField reads a graph given either as a JSON object under "graph" or as
// a JSON document string under "graphJson". Both go through normalization.
func graphField(in *structpb.Struct) (graph.Graph, error) {
	fields := in.GetFields()
	if value, ok := fields["graph"]; ok && value.GetStructValue() != nil {
		return graph.NormalizeValue(value.AsInterface()), nil
	}
	if raw := fields["graphJson"].GetStringValue(); strings.TrimSpace(raw) != "" {
		return graph.Normalize([]byte(raw)), nil
	}
	return graph.Graph{}, errInvalidArgument("graph is required")
}

// progressField decodes the "progress" object of a sync request.
func progressField(in *structpb.Struct) (progress.Progress, error) {
	value, ok := in.GetFields()["progress"]
	if !ok || value.GetStructValue() == nil {
		return progress.Progress{}, errInvalidArgument("progress is required")
	}
	data, err := protojson.Marshal(value)
	if err != nil {
		return progress.Progress{}, errInvalidArgument("progress is malformed")
	}
	var p progress.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return progress.Progress{}, errInvalidArgument("progress is malformed: " + err.Error())
	}
	return p, nil
}

func errInvalidArgument(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func requireField(in *structpb.Struct, key string) (string, error) {
	value := stringField(in, key)
	if value == "" {
		return "", errInvalidArgument(key + " is required")
	}
	return value, nil
}
