package verification

import (
	"time"
)

// IntentKind discriminates the transition intents accepted by
// WorkflowEngine.Update. Each kind maps to exactly one event-construction
// rule, so a single update call can never produce an ambiguous mix of
// side effects.
type IntentKind string

const (
	IntentChangeStatus    IntentKind = "changeStatus"
	IntentReassign        IntentKind = "reassign"
	IntentNote            IntentKind = "note"
	IntentRequestDocument IntentKind = "requestDocument"
	IntentEscalate        IntentKind = "escalate"
)

// Intent is one requested transition against a verification record. Only
// the fields relevant to its Kind are consulted; Validate rejects intents
// missing their required fields.
type Intent struct {
	Kind IntentKind `json:"kind"`

	// changeStatus
	Status         string     `json:"status,omitempty"`
	ReviewedAt     *time.Time `json:"reviewedAt,omitempty"`
	ReviewNotes    string     `json:"reviewNotes,omitempty"`
	DeclinedReason string     `json:"declinedReason,omitempty"`

	// reassign
	ReviewerID *uint `json:"reviewerId,omitempty"`

	// note, requestDocument, escalate
	Note         string `json:"note,omitempty"`
	DocumentType string `json:"documentType,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// Validate checks the intent against the allowed status set. It is called
// for every intent before any database work starts, so an invalid intent
// anywhere in the batch fails the whole update up front.
func (in Intent) Validate(allowed map[string]struct{}) error {
	switch in.Kind {
	case IntentChangeStatus:
		if in.Status == "" {
			return NewValidationError("status", "status is required for a changeStatus intent")
		}
		if _, ok := allowed[in.Status]; !ok {
			return NewValidationError("status", "invalid status \""+in.Status+"\"")
		}
	case IntentReassign:
		// ReviewerID nil means unassign; always valid.
	case IntentNote:
		if in.Note == "" {
			return NewValidationError("note", "note text is required for a note intent")
		}
	case IntentRequestDocument:
		if in.DocumentType == "" {
			return NewValidationError("documentType", "documentType is required for a requestDocument intent")
		}
	case IntentEscalate:
		if in.Reason == "" {
			return NewValidationError("reason", "reason is required for an escalate intent")
		}
	default:
		return NewValidationError("kind", "unknown intent kind \""+string(in.Kind)+"\"")
	}
	return nil
}
