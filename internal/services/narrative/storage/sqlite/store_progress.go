package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/progress"
	"github.com/louisbranch/branching.ink/internal/services/narrative/storage"
)

// progressState is the JSON column holding the collection fields of a
// progress record.
type progressState struct {
	VisitedNodeIDs    []string                     `json:"visitedNodeIds"`
	ChoiceHistory     []progress.HistoryEntry      `json:"choiceHistory"`
	Variables         map[string]progress.Variable `json:"variables"`
	Inventory         []string                     `json:"inventory"`
	UnlockedEndingIDs []string                     `json:"unlockedEndingIds"`
}

// GetProgress returns a reader's progress on a comic with its version.
func (s *Store) GetProgress(ctx context.Context, readerID, comicID string) (storage.StoredProgress, error) {
	if err := s.ready(ctx); err != nil {
		return storage.StoredProgress{}, err
	}
	readerID = strings.TrimSpace(readerID)
	comicID = strings.TrimSpace(comicID)
	if readerID == "" || comicID == "" {
		return storage.StoredProgress{}, fmt.Errorf("reader id and comic id are required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT reader_id, comic_id, revision_id, current_node_id, status, state_json,
       total_time_seconds, started_at, updated_at, version
FROM reading_progress
WHERE reader_id = ? AND comic_id = ?
`, readerID, comicID)

	var (
		stored               storage.StoredProgress
		status               string
		stateJSON            string
		startedAt, updatedAt int64
	)
	p := &stored.Progress
	if err := row.Scan(
		&p.ReaderID,
		&p.ComicID,
		&p.RevisionID,
		&p.CurrentNodeID,
		&status,
		&stateJSON,
		&p.TotalTimeSeconds,
		&startedAt,
		&updatedAt,
		&stored.Version,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.StoredProgress{}, storage.ErrNotFound
		}
		return storage.StoredProgress{}, fmt.Errorf("get progress: %w", err)
	}

	var state progressState
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return storage.StoredProgress{}, fmt.Errorf("decode progress state: %w", err)
	}
	p.Status = progress.Status(status)
	p.VisitedNodeIDs = nonNil(state.VisitedNodeIDs)
	p.ChoiceHistory = state.ChoiceHistory
	if p.ChoiceHistory == nil {
		p.ChoiceHistory = []progress.HistoryEntry{}
	}
	p.Variables = state.Variables
	if p.Variables == nil {
		p.Variables = map[string]progress.Variable{}
	}
	p.Inventory = nonNil(state.Inventory)
	p.UnlockedEndingIDs = nonNil(state.UnlockedEndingIDs)
	p.StartedAt = fromMillis(startedAt)
	stored.UpdatedAt = fromMillis(updatedAt)
	return stored, nil
}

// PutProgress writes p conditioned on the stored version. An expected
// version of zero inserts a new row.
func (s *Store) PutProgress(ctx context.Context, p progress.Progress, expected int64, at time.Time) (int64, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	readerID := strings.TrimSpace(p.ReaderID)
	comicID := strings.TrimSpace(p.ComicID)
	if readerID == "" || comicID == "" {
		return 0, fmt.Errorf("reader id and comic id are required")
	}
	if expected < 0 {
		return 0, fmt.Errorf("expected version must not be negative")
	}
	stateJSON, err := json.Marshal(progressState{
		VisitedNodeIDs:    p.VisitedNodeIDs,
		ChoiceHistory:     p.ChoiceHistory,
		Variables:         p.Variables,
		Inventory:         p.Inventory,
		UnlockedEndingIDs: p.UnlockedEndingIDs,
	})
	if err != nil {
		return 0, fmt.Errorf("encode progress state: %w", err)
	}

	if expected == 0 {
		_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO reading_progress (
  reader_id, comic_id, revision_id, current_node_id, status, state_json,
  total_time_seconds, started_at, updated_at, version
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
`, readerID, comicID, p.RevisionID, p.CurrentNodeID, string(p.Status), string(stateJSON),
			p.TotalTimeSeconds, toMillis(p.StartedAt), toMillis(at))
		if err != nil {
			if isUniqueViolation(err) {
				return 0, storage.ErrConflict
			}
			return 0, fmt.Errorf("insert progress: %w", err)
		}
		return 1, nil
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE reading_progress
SET revision_id = ?, current_node_id = ?, status = ?, state_json = ?,
    total_time_seconds = ?, started_at = ?, updated_at = ?, version = version + 1
WHERE reader_id = ? AND comic_id = ? AND version = ?
`, p.RevisionID, p.CurrentNodeID, string(p.Status), string(stateJSON),
		p.TotalTimeSeconds, toMillis(p.StartedAt), toMillis(at),
		readerID, comicID, expected)
	if err != nil {
		return 0, fmt.Errorf("update progress: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update progress rows affected: %w", err)
	}
	if affected == 0 {
		return 0, storage.ErrConflict
	}
	return expected + 1, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
