// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Comic errors
	CodeComicTitleEmpty     Code = "COMIC_TITLE_EMPTY"
	CodeComicAuthorMissing  Code = "COMIC_AUTHOR_MISSING"
	CodeComicNotPublished   Code = "COMIC_NOT_PUBLISHED"
	CodeComicAuthorMismatch Code = "COMIC_AUTHOR_MISMATCH"

	// Graph errors
	CodeGraphValidationFailed Code = "GRAPH_VALIDATION_FAILED"

	// Revision errors
	CodeRevisionInvalidTransition Code = "REVISION_INVALID_TRANSITION"
	CodeRevisionReviewerMissing   Code = "REVISION_REVIEWER_MISSING"
	CodeRevisionReasonMissing     Code = "REVISION_REJECTION_REASON_MISSING"
	CodeRevisionNotDraft          Code = "REVISION_NOT_DRAFT"

	// Progress errors
	CodeProgressNotStarted      Code = "PROGRESS_NOT_STARTED"
	CodeProgressInvalidChoice   Code = "PROGRESS_INVALID_CHOICE"
	CodeProgressConditionNotMet Code = "PROGRESS_CONDITION_NOT_MET"
	CodeProgressNodeNotVisited  Code = "PROGRESS_NODE_NOT_VISITED"
	CodeProgressInvalidAction   Code = "PROGRESS_INVALID_ACTION"
	CodeProgressReaderMissing   Code = "PROGRESS_READER_MISSING"
	CodeProgressSyncMismatch    Code = "PROGRESS_SYNC_MISMATCH"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeConflict Code = "STORAGE_CONFLICT"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeComicTitleEmpty,
		CodeComicAuthorMissing,
		CodeGraphValidationFailed,
		CodeRevisionReviewerMissing,
		CodeRevisionReasonMissing,
		CodeProgressInvalidAction,
		CodeProgressReaderMissing,
		CodeProgressSyncMismatch:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeRevisionInvalidTransition,
		CodeRevisionNotDraft,
		CodeComicNotPublished,
		CodeProgressNotStarted,
		CodeProgressInvalidChoice,
		CodeProgressConditionNotMet,
		CodeProgressNodeNotVisited:
		return codes.FailedPrecondition

	// PermissionDenied - caller does not own the resource
	case CodeComicAuthorMismatch:
		return codes.PermissionDenied

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return codes.NotFound

	// Aborted - optimistic write lost a race; caller reconciles and retries
	case CodeConflict:
		return codes.Aborted

	default:
		return codes.Internal
	}
}
