package revision

// Status describes where a revision sits in moderation.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusPendingReview Status = "pending_review"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// isStatusTransitionAllowed enforces valid revision lifecycle transitions.
func isStatusTransitionAllowed(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusPendingReview
	case StatusPendingReview:
		return to == StatusApproved || to == StatusRejected
	default:
		return false
	}
}

// IsStatusTransitionAllowed reports whether a status transition is permitted.
func IsStatusTransitionAllowed(from, to Status) bool {
	return isStatusTransitionAllowed(from, to)
}

// ParseStatus maps a stored label to a Status.
func ParseStatus(value string) (Status, bool) {
	switch s := Status(value); s {
	case StatusDraft, StatusPendingReview, StatusApproved, StatusRejected:
		return s, true
	}
	return "", false
}
