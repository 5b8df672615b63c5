package revision

import (
	"strconv"

	apperrors "github.com/louisbranch/branching.ink/internal/platform/errors"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/graph"
)

var (
	// ErrInvalidTransition indicates a disallowed revision status change.
	ErrInvalidTransition = apperrors.New(apperrors.CodeRevisionInvalidTransition, "revision status transition is not allowed")
	// ErrNotDraft indicates an edit to a revision that is no longer a draft.
	ErrNotDraft = apperrors.New(apperrors.CodeRevisionNotDraft, "only draft revisions can be edited")
	// ErrValidationFailed indicates a submission blocked by graph errors.
	ErrValidationFailed = apperrors.New(apperrors.CodeGraphValidationFailed, "graph has validation errors")
	// ErrReviewerMissing indicates a decision without a reviewer.
	ErrReviewerMissing = apperrors.New(apperrors.CodeRevisionReviewerMissing, "reviewer is required")
	// ErrReasonMissing indicates a rejection without a reason.
	ErrReasonMissing = apperrors.New(apperrors.CodeRevisionReasonMissing, "rejection reason is required")
	// ErrTitleEmpty indicates a comic without a title.
	ErrTitleEmpty = apperrors.New(apperrors.CodeComicTitleEmpty, "comic title is required")
	// ErrAuthorMissing indicates a comic or revision without an author.
	ErrAuthorMissing = apperrors.New(apperrors.CodeComicAuthorMissing, "author is required")
)

func transitionError(from, to Status) error {
	return apperrors.WithMetadata(
		apperrors.CodeRevisionInvalidTransition,
		"revision cannot move from "+string(from)+" to "+string(to),
		map[string]string{"FromStatus": string(from), "ToStatus": string(to)},
	)
}

func validationError(report graph.Report) error {
	metadata := map[string]string{"ErrorCount": strconv.Itoa(len(report.Errors))}
	if len(report.Errors) > 0 {
		metadata["FirstIssue"] = string(report.Errors[0].Code)
	}
	return apperrors.WithMetadata(apperrors.CodeGraphValidationFailed, "graph has validation errors", metadata)
}
