package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/revision"
	"github.com/louisbranch/branching.ink/internal/services/narrative/storage"
)

const revisionColumns = `id, comic_id, author_id, version, status, graph_json, payload_digest,
       created_at, updated_at, submitted_at, reviewed_at, reviewed_by, rejection_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateRevision appends a revision to the comic log.
func (s *Store) CreateRevision(ctx context.Context, rev revision.Revision) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return insertRevision(ctx, s.sqlDB, rev)
}

func insertRevision(ctx context.Context, db execer, rev revision.Revision) error {
	if strings.TrimSpace(rev.ID) == "" {
		return fmt.Errorf("revision id is required")
	}
	if strings.TrimSpace(rev.ComicID) == "" {
		return fmt.Errorf("comic id is required")
	}
	if rev.Version < 1 {
		return fmt.Errorf("revision version must be positive")
	}
	graphJSON, err := graph.MarshalCanonical(rev.Graph)
	if err != nil {
		return fmt.Errorf("encode revision graph: %w", err)
	}

	_, err = db.ExecContext(ctx, `
INSERT INTO revisions (
  id, comic_id, author_id, version, status, graph_json, payload_digest,
  created_at, updated_at, submitted_at, reviewed_at, reviewed_by, rejection_reason
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		rev.ID,
		rev.ComicID,
		rev.AuthorID,
		rev.Version,
		string(rev.Status),
		string(graphJSON),
		rev.PayloadDigest,
		toMillis(rev.CreatedAt),
		toMillis(rev.UpdatedAt),
		toNullMillis(rev.SubmittedAt),
		toNullMillis(rev.ReviewedAt),
		rev.ReviewedBy,
		rev.RejectionReason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create revision: %w", err)
	}
	return nil
}

// GetRevision returns one revision by id.
func (s *Store) GetRevision(ctx context.Context, revisionID string) (revision.Revision, error) {
	if err := s.ready(ctx); err != nil {
		return revision.Revision{}, err
	}
	revisionID = strings.TrimSpace(revisionID)
	if revisionID == "" {
		return revision.Revision{}, fmt.Errorf("revision id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+revisionColumns+` FROM revisions WHERE id = ?`, revisionID)
	rev, err := scanRevision(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return revision.Revision{}, storage.ErrNotFound
		}
		return revision.Revision{}, fmt.Errorf("get revision: %w", err)
	}
	return rev, nil
}

// LatestRevision returns the highest version of a comic.
func (s *Store) LatestRevision(ctx context.Context, comicID string) (revision.Revision, error) {
	if err := s.ready(ctx); err != nil {
		return revision.Revision{}, err
	}
	comicID = strings.TrimSpace(comicID)
	if comicID == "" {
		return revision.Revision{}, fmt.Errorf("comic id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT `+revisionColumns+`
FROM revisions
WHERE comic_id = ?
ORDER BY version DESC
LIMIT 1
`, comicID)
	rev, err := scanRevision(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return revision.Revision{}, storage.ErrNotFound
		}
		return revision.Revision{}, fmt.Errorf("latest revision: %w", err)
	}
	return rev, nil
}

// ListRevisions returns one page of a comic's revisions, newest first. The
// page token is the last version returned.
func (s *Store) ListRevisions(ctx context.Context, comicID string, pageSize int, pageToken string) (storage.RevisionPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RevisionPage{}, err
	}
	comicID = strings.TrimSpace(comicID)
	if comicID == "" {
		return storage.RevisionPage{}, fmt.Errorf("comic id is required")
	}
	if pageSize <= 0 {
		return storage.RevisionPage{}, fmt.Errorf("page size must be greater than zero")
	}
	pageToken = strings.TrimSpace(pageToken)

	var (
		rows *sql.Rows
		err  error
	)
	if pageToken == "" {
		rows, err = s.sqlDB.QueryContext(ctx, `
SELECT `+revisionColumns+`
FROM revisions
WHERE comic_id = ?
ORDER BY version DESC
LIMIT ?
`, comicID, pageSize+1)
	} else {
		before, convErr := strconv.Atoi(pageToken)
		if convErr != nil || before < 1 {
			return storage.RevisionPage{}, fmt.Errorf("invalid page token")
		}
		rows, err = s.sqlDB.QueryContext(ctx, `
SELECT `+revisionColumns+`
FROM revisions
WHERE comic_id = ? AND version < ?
ORDER BY version DESC
LIMIT ?
`, comicID, before, pageSize+1)
	}
	if err != nil {
		return storage.RevisionPage{}, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	page := storage.RevisionPage{Revisions: make([]revision.Revision, 0, pageSize)}
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return storage.RevisionPage{}, fmt.Errorf("list revisions: %w", err)
		}
		page.Revisions = append(page.Revisions, rev)
	}
	if err := rows.Err(); err != nil {
		return storage.RevisionPage{}, fmt.Errorf("list revisions: %w", err)
	}
	if len(page.Revisions) > pageSize {
		page.NextPageToken = strconv.Itoa(page.Revisions[pageSize-1].Version)
		page.Revisions = page.Revisions[:pageSize]
	}
	return page, nil
}

// UpdateRevision writes rev while the stored status still equals from.
func (s *Store) UpdateRevision(ctx context.Context, rev revision.Revision, from revision.Status) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return updateRevision(ctx, s.sqlDB, rev, from)
}

// DecideRevision persists a review decision. Approvals also move the
// published pointer; both writes commit or neither does.
func (s *Store) DecideRevision(ctx context.Context, decision revision.Decision) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin decide revision: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := updateRevision(ctx, tx, decision.Revision, revision.StatusPendingReview); err != nil {
		return err
	}
	if ptr := decision.Publish; ptr != nil {
		if err := setPublished(ctx, tx, ptr.ComicID, ptr.RevisionID, ptr.Version, decision.Revision.UpdatedAt); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decide revision: %w", err)
	}
	return nil
}

func updateRevision(ctx context.Context, db execer, rev revision.Revision, from revision.Status) error {
	revisionID := strings.TrimSpace(rev.ID)
	if revisionID == "" {
		return fmt.Errorf("revision id is required")
	}
	graphJSON, err := graph.MarshalCanonical(rev.Graph)
	if err != nil {
		return fmt.Errorf("encode revision graph: %w", err)
	}

	res, err := db.ExecContext(ctx, `
UPDATE revisions
SET status = ?, graph_json = ?, payload_digest = ?, updated_at = ?,
    submitted_at = ?, reviewed_at = ?, reviewed_by = ?, rejection_reason = ?
WHERE id = ? AND status = ?
`,
		string(rev.Status),
		string(graphJSON),
		rev.PayloadDigest,
		toMillis(rev.UpdatedAt),
		toNullMillis(rev.SubmittedAt),
		toNullMillis(rev.ReviewedAt),
		rev.ReviewedBy,
		rev.RejectionReason,
		revisionID,
		string(from),
	)
	if err != nil {
		return fmt.Errorf("update revision: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update revision rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	if err := db.QueryRowContext(ctx, `SELECT 1 FROM revisions WHERE id = ?`, revisionID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("check revision: %w", err)
	}
	return storage.ErrConflict
}

func scanRevision(row rowScanner) (revision.Revision, error) {
	var (
		rev                     revision.Revision
		status                  string
		graphJSON               string
		createdAt, updatedAt    int64
		submittedAt, reviewedAt sql.NullInt64
	)
	if err := row.Scan(
		&rev.ID,
		&rev.ComicID,
		&rev.AuthorID,
		&rev.Version,
		&status,
		&graphJSON,
		&rev.PayloadDigest,
		&createdAt,
		&updatedAt,
		&submittedAt,
		&reviewedAt,
		&rev.ReviewedBy,
		&rev.RejectionReason,
	); err != nil {
		return revision.Revision{}, err
	}
	parsed, ok := revision.ParseStatus(status)
	if !ok {
		return revision.Revision{}, fmt.Errorf("unknown revision status %q", status)
	}
	if err := json.Unmarshal([]byte(graphJSON), &rev.Graph); err != nil {
		return revision.Revision{}, fmt.Errorf("decode revision graph: %w", err)
	}
	rev.Status = parsed
	rev.CreatedAt = fromMillis(createdAt)
	rev.UpdatedAt = fromMillis(updatedAt)
	rev.SubmittedAt = fromNullMillis(submittedAt)
	rev.ReviewedAt = fromNullMillis(reviewedAt)
	return rev, nil
}
