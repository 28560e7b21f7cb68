package verification

// Verification statuses. The set accepted at runtime is configuration
// defined (see config.VerificationConfig.AllowedStatuses); these constants
// are the compiled default set.
const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
	StatusInReview  = "in_review"
	StatusVerified  = "verified"
	StatusRejected  = "rejected"
)

// DefaultStatuses returns the default allowed status set, in display order.
func DefaultStatuses() []string {
	return []string{StatusPending, StatusSubmitted, StatusInReview, StatusVerified, StatusRejected}
}

// reviewedStatuses are the terminal statuses that carry a review decision.
// A record's ReviewedAt is non-nil exactly when its status is one of these.
var reviewedStatuses = map[string]struct{}{
	StatusVerified: {},
	StatusRejected: {},
}

// openStatuses are the statuses counted toward the SLA backlog.
var openStatuses = []string{StatusPending, StatusSubmitted, StatusInReview}

// IsReviewedStatus reports whether status carries a review decision.
func IsReviewedStatus(status string) bool {
	_, ok := reviewedStatuses[status]
	return ok
}

// OpenStatuses returns the statuses considered unresolved for SLA purposes.
func OpenStatuses() []string {
	out := make([]string, len(openStatuses))
	copy(out, openStatuses)
	return out
}

// Event types recorded in the audit trail.
const (
	EventStatusChange    = "status_change"
	EventAssignment      = "assignment"
	EventNote            = "note"
	EventDocumentRequest = "document_request"
	EventEscalation      = "escalation"
	EventReminder        = "reminder"
)

var knownEventTypes = map[string]struct{}{
	EventStatusChange:    {},
	EventAssignment:      {},
	EventNote:            {},
	EventDocumentRequest: {},
	EventEscalation:      {},
	EventReminder:        {},
}

// IsKnownEventType reports whether eventType is a recognized audit event type.
func IsKnownEventType(eventType string) bool {
	_, ok := knownEventTypes[eventType]
	return ok
}

// statusSet builds a membership set from an allowed status list, falling
// back to the compiled defaults when the list is empty.
func statusSet(allowed []string) map[string]struct{} {
	if len(allowed) == 0 {
		allowed = DefaultStatuses()
	}
	set := make(map[string]struct{}, len(allowed))
	for _, s := range allowed {
		set[s] = struct{}{}
	}
	return set
}
