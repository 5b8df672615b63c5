// Package storage defines persistence contracts for narrative service state.
package storage

import (
	"context"
	"time"

	apperrors "github.com/louisbranch/branching.ink/internal/platform/errors"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/progress"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/revision"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
	// ErrConflict indicates a conditional write lost to a concurrent writer.
	ErrConflict = apperrors.New(apperrors.CodeConflict, "record changed concurrently")
)

// RevisionPage stores one page of revisions, newest version first.
type RevisionPage struct {
	Revisions     []revision.Revision
	NextPageToken string
}

// ComicStore persists comics and their published pointer.
type ComicStore interface {
	// CreateComic inserts a comic together with its first draft.
	CreateComic(ctx context.Context, comic revision.Comic, draft revision.Revision) error
	GetComic(ctx context.Context, comicID string) (revision.Comic, error)
	// SetPublished moves the published pointer forward to version. It fails
	// with ErrConflict when the pointer already holds this or a newer version.
	SetPublished(ctx context.Context, comicID, revisionID string, version int, at time.Time) error
}

// RevisionStore persists the append-only revision log.
type RevisionStore interface {
	// CreateRevision fails with ErrConflict when the version already exists.
	CreateRevision(ctx context.Context, rev revision.Revision) error
	GetRevision(ctx context.Context, revisionID string) (revision.Revision, error)
	LatestRevision(ctx context.Context, comicID string) (revision.Revision, error)
	ListRevisions(ctx context.Context, comicID string, pageSize int, pageToken string) (RevisionPage, error)
	// UpdateRevision writes rev only while the stored status equals from.
	UpdateRevision(ctx context.Context, rev revision.Revision, from revision.Status) error
	// DecideRevision writes a review decision and, for approvals, swaps the
	// published pointer in the same transaction.
	DecideRevision(ctx context.Context, decision revision.Decision) error
}

// StoredProgress is reading progress with its concurrency token.
type StoredProgress struct {
	Progress  progress.Progress
	Version   int64
	UpdatedAt time.Time
}

// ProgressStore persists reading progress under optimistic concurrency.
type ProgressStore interface {
	GetProgress(ctx context.Context, readerID, comicID string) (StoredProgress, error)
	// PutProgress writes p when the stored version equals expected, where 0
	// means no row yet. It returns the new version or ErrConflict.
	PutProgress(ctx context.Context, p progress.Progress, expected int64, at time.Time) (int64, error)
}

// Store is the full narrative persistence surface.
type Store interface {
	ComicStore
	RevisionStore
	ProgressStore
	Close() error
}
