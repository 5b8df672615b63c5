package progress

import apperrors "github.com/louisbranch/branching.ink/internal/platform/errors"

var (
	// ErrNotStarted indicates a move on a reader with no progress.
	ErrNotStarted = apperrors.New(apperrors.CodeProgressNotStarted, "reading has not started")
	// ErrInvalidChoice indicates a choice not offered on the current node.
	ErrInvalidChoice = apperrors.New(apperrors.CodeProgressInvalidChoice, "choice is not available on the current node")
	// ErrConditionNotMet indicates a choice whose guard is false.
	ErrConditionNotMet = apperrors.New(apperrors.CodeProgressConditionNotMet, "choice condition is not met")
	// ErrNodeNotVisited indicates a jump to a node the reader has not seen.
	ErrNodeNotVisited = apperrors.New(apperrors.CodeProgressNodeNotVisited, "node has not been visited")
	// ErrInvalidAction indicates an unknown action or a graph without a start node.
	ErrInvalidAction = apperrors.New(apperrors.CodeProgressInvalidAction, "action is not valid")
	// ErrSyncMismatch indicates uploaded progress that does not fit the
	// revision it is pinned to.
	ErrSyncMismatch = apperrors.New(apperrors.CodeProgressSyncMismatch, "progress does not match the comic revision")
)

func syncError(field, value string) error {
	return apperrors.WithMetadata(ErrSyncMismatch.Code, ErrSyncMismatch.Message, map[string]string{
		"Field": field,
		"Value": value,
	})
}

func choiceError(base *apperrors.Error, nodeID, choiceID string) error {
	return apperrors.WithMetadata(base.Code, base.Message, map[string]string{
		"NodeID":   nodeID,
		"ChoiceID": choiceID,
	})
}
