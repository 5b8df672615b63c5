package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/revision"
	"github.com/louisbranch/branching.ink/internal/services/narrative/storage"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateComic inserts a comic and its first draft atomically.
func (s *Store) CreateComic(ctx context.Context, comic revision.Comic, draft revision.Revision) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	comicID := strings.TrimSpace(comic.ID)
	if comicID == "" {
		return fmt.Errorf("comic id is required")
	}
	if strings.TrimSpace(comic.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if draft.ComicID != comicID {
		return fmt.Errorf("draft belongs to comic %q, want %q", draft.ComicID, comicID)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create comic: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
INSERT INTO comics (id, author_id, title, published_revision_id, published_version, created_at, updated_at)
VALUES (?, ?, ?, '', 0, ?, ?)
`, comicID, comic.AuthorID, strings.TrimSpace(comic.Title), toMillis(comic.CreatedAt), toMillis(comic.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("create comic: %w", err)
	}
	if err := insertRevision(ctx, tx, draft); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create comic: %w", err)
	}
	return nil
}

// GetComic returns one comic by id.
func (s *Store) GetComic(ctx context.Context, comicID string) (revision.Comic, error) {
	if err := s.ready(ctx); err != nil {
		return revision.Comic{}, err
	}
	comicID = strings.TrimSpace(comicID)
	if comicID == "" {
		return revision.Comic{}, fmt.Errorf("comic id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, author_id, title, published_revision_id, published_version, created_at, updated_at
FROM comics
WHERE id = ?
`, comicID)

	var comic revision.Comic
	var createdAt, updatedAt int64
	if err := row.Scan(
		&comic.ID,
		&comic.AuthorID,
		&comic.Title,
		&comic.PublishedRevisionID,
		&comic.PublishedVersion,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return revision.Comic{}, storage.ErrNotFound
		}
		return revision.Comic{}, fmt.Errorf("get comic: %w", err)
	}
	comic.CreatedAt = fromMillis(createdAt)
	comic.UpdatedAt = fromMillis(updatedAt)
	return comic, nil
}

// SetPublished swaps the published pointer forward in a single conditional
// update.
func (s *Store) SetPublished(ctx context.Context, comicID, revisionID string, version int, at time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	return setPublished(ctx, s.sqlDB, comicID, revisionID, version, at)
}

func setPublished(ctx context.Context, db execer, comicID, revisionID string, version int, at time.Time) error {
	comicID = strings.TrimSpace(comicID)
	revisionID = strings.TrimSpace(revisionID)
	if comicID == "" || revisionID == "" {
		return fmt.Errorf("comic id and revision id are required")
	}

	res, err := db.ExecContext(ctx, `
UPDATE comics
SET published_revision_id = ?, published_version = ?, updated_at = ?
WHERE id = ? AND published_version < ?
`, revisionID, version, toMillis(at), comicID, version)
	if err != nil {
		return fmt.Errorf("set published: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set published rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	if err := db.QueryRowContext(ctx, `SELECT 1 FROM comics WHERE id = ?`, comicID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("check comic: %w", err)
	}
	return storage.ErrConflict
}
