package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/talenthub/backoffice/pkg/metrics"
	"github.com/talenthub/backoffice/pkg/models"
)

// Actor identifies who performed a workflow action. ID is nil for fully
// automated (system) actions.
type Actor struct {
	ID   *uint  `json:"id"`
	Role string `json:"role"`
}

// CreateInput is the payload for opening a new verification record.
type CreateInput struct {
	UserID    uint   `json:"userId" validate:"required"`
	ProfileID uint   `json:"profileId" validate:"required"`
	Status    string `json:"status,omitempty"`
	Provider  string `json:"provider,omitempty"`

	DocumentType   string     `json:"documentType,omitempty"`
	DocumentLast4  string     `json:"documentLast4,omitempty" validate:"omitempty,max=4"`
	IssuingCountry string     `json:"issuingCountry,omitempty" validate:"omitempty,len=2"`
	IssuedAt       *time.Time `json:"issuedAt,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	FrontKey       string     `json:"frontKey,omitempty"`
	BackKey        string     `json:"backKey,omitempty"`
	SelfieKey      string     `json:"selfieKey,omitempty"`

	FullName     string     `json:"fullName" validate:"required,max=255"`
	DateOfBirth  *time.Time `json:"dateOfBirth" validate:"required"`
	AddressLine1 string     `json:"addressLine1" validate:"required,max=255"`
	AddressLine2 string     `json:"addressLine2,omitempty" validate:"omitempty,max=255"`
	City         string     `json:"city" validate:"required,max=128"`
	PostalCode   string     `json:"postalCode" validate:"required,max=32"`
	Country      string     `json:"country" validate:"required,len=2"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// EventInput is the payload for appending a standalone audit event.
type EventInput struct {
	EventType string                 `json:"eventType" validate:"required"`
	Note      string                 `json:"note,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// WorkflowEngine owns every mutation of verification records. A record and
// its audit events are always written inside one transaction, so a status
// change can never commit without its status_change event or vice versa.
type WorkflowEngine struct {
	db        *gorm.DB
	events    *EventLog
	directory Directory
	logger    *zap.Logger

	allowed   map[string]struct{}
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

// NewWorkflowEngine creates the engine. allowedStatuses may be empty to use
// the compiled default set.
func NewWorkflowEngine(db *gorm.DB, events *EventLog, directory Directory, logger *zap.Logger, allowedStatuses []string) *WorkflowEngine {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &WorkflowEngine{
		db:        db,
		events:    events,
		directory: directory,
		logger:    logger,
		allowed:   statusSet(allowedStatuses),
		validate:  v,
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
	}
}

// Create opens a verification record for a user's profile and writes the
// seed status_change event in the same transaction.
func (e *WorkflowEngine) Create(ctx context.Context, input CreateInput, actor Actor) (*models.VerificationRecord, error) {
	if err := e.validateInput(input); err != nil {
		return nil, err
	}

	profile, err := e.directory.FindProfile(ctx, input.ProfileID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, NewValidationError("profileId", fmt.Sprintf("profile %d does not exist", input.ProfileID))
	}
	if profile.UserID != input.UserID {
		return nil, NewValidationError("profileId", "profileId does not belong to the specified user")
	}

	status := input.Status
	if status == "" {
		status = StatusSubmitted
	}
	if _, ok := e.allowed[status]; !ok {
		return nil, NewValidationError("status", "invalid status \""+status+"\"")
	}

	now := e.now()
	record := &models.VerificationRecord{
		UserID:         input.UserID,
		ProfileID:      input.ProfileID,
		Status:         status,
		Provider:       strings.TrimSpace(input.Provider),
		DocumentType:   strings.TrimSpace(input.DocumentType),
		DocumentLast4:  strings.TrimSpace(input.DocumentLast4),
		IssuingCountry: strings.ToUpper(strings.TrimSpace(input.IssuingCountry)),
		IssuedAt:       input.IssuedAt,
		ExpiresAt:      input.ExpiresAt,
		FrontKey:       input.FrontKey,
		BackKey:        input.BackKey,
		SelfieKey:      input.SelfieKey,
		FullName:       e.sanitizer.Sanitize(strings.TrimSpace(input.FullName)),
		DateOfBirth:    input.DateOfBirth,
		AddressLine1:   e.sanitizer.Sanitize(strings.TrimSpace(input.AddressLine1)),
		AddressLine2:   e.sanitizer.Sanitize(strings.TrimSpace(input.AddressLine2)),
		City:           e.sanitizer.Sanitize(strings.TrimSpace(input.City)),
		PostalCode:     strings.TrimSpace(input.PostalCode),
		Country:        strings.ToUpper(strings.TrimSpace(input.Country)),
		SubmittedAt:    now,
		Metadata:       encodeMetadata(input.Metadata),
	}
	if IsReviewedStatus(status) {
		record.ReviewedAt = &now
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to create verification record: %w", err)
		}
		seed := &models.VerificationEvent{
			ID:             uuid.New(),
			VerificationID: record.ID,
			EventType:      EventStatusChange,
			ActorID:        actor.ID,
			ActorRole:      actor.Role,
			FromStatus:     nil,
			ToStatus:       &record.Status,
			CreatedAt:      now,
		}
		return e.events.Append(ctx, tx, seed)
	})
	if err != nil {
		return nil, err
	}

	metrics.VerificationTransitions.WithLabelValues("", record.Status).Inc()
	metrics.VerificationEvents.WithLabelValues(EventStatusChange).Inc()
	e.logger.Info("Verification record created",
		zap.Uint("verification_id", record.ID),
		zap.Uint("user_id", record.UserID),
		zap.String("status", record.Status))

	return e.GetByID(ctx, record.ID)
}

// Update applies a batch of transition intents to one record. The record
// row is locked for the duration of the transaction, serializing concurrent
// reviewer actions; field updates and all queued events commit together.
//
// Ordering policy for same-call events: each event's CreatedAt is the
// transaction timestamp advanced by one microsecond per preceding intent,
// so the audit trail is strictly monotonically ordered and the default
// newest-first read lists the batch in reverse intent order.
func (e *WorkflowEngine) Update(ctx context.Context, id uint, intents []Intent, actor Actor) (*models.VerificationRecord, error) {
	if len(intents) == 0 {
		return nil, NewValidationError("intents", "at least one intent is required")
	}
	for _, intent := range intents {
		if err := intent.Validate(e.allowed); err != nil {
			return nil, err
		}
	}

	var transitions [][2]string
	var appended []string

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.VerificationRecord
		if err := e.lockForUpdate(tx).First(&record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "verification", ID: id}
			}
			return fmt.Errorf("failed to load verification record: %w", err)
		}

		txTime := e.now()
		var queued []*models.VerificationEvent
		queue := func(ev *models.VerificationEvent) {
			ev.ID = uuid.New()
			ev.VerificationID = record.ID
			ev.ActorID = actor.ID
			ev.ActorRole = actor.Role
			ev.CreatedAt = txTime.Add(time.Duration(len(queued)) * time.Microsecond)
			queued = append(queued, ev)
		}

		for _, intent := range intents {
			switch intent.Kind {
			case IntentChangeStatus:
				if intent.Status == record.Status {
					// Same-status request is a no-op: no event, no error.
					continue
				}
				from := record.Status
				record.Status = intent.Status
				if IsReviewedStatus(intent.Status) {
					if intent.ReviewedAt != nil {
						record.ReviewedAt = intent.ReviewedAt
					} else {
						t := txTime
						record.ReviewedAt = &t
					}
				} else {
					record.ReviewedAt = nil
				}
				if intent.ReviewNotes != "" {
					record.ReviewNotes = e.sanitizer.Sanitize(intent.ReviewNotes)
				}
				switch {
				case intent.Status == StatusRejected && intent.DeclinedReason != "":
					record.DeclinedReason = e.sanitizer.Sanitize(intent.DeclinedReason)
				case intent.Status == StatusVerified:
					record.DeclinedReason = ""
				}
				fromCopy, toCopy := from, intent.Status
				queue(&models.VerificationEvent{
					EventType:  EventStatusChange,
					FromStatus: &fromCopy,
					ToStatus:   &toCopy,
					Note:       e.sanitizer.Sanitize(intent.Note),
				})
				transitions = append(transitions, [2]string{from, intent.Status})

			case IntentReassign:
				if equalReviewer(record.ReviewerID, intent.ReviewerID) {
					continue
				}
				record.ReviewerID = intent.ReviewerID
				queue(&models.VerificationEvent{
					EventType: EventAssignment,
					Note:      e.sanitizer.Sanitize(intent.Note),
					Metadata:  encodeMetadata(map[string]interface{}{"reviewer_id": intent.ReviewerID}),
				})

			case IntentNote:
				queue(&models.VerificationEvent{
					EventType: EventNote,
					Note:      e.sanitizer.Sanitize(intent.Note),
				})

			case IntentRequestDocument:
				queue(&models.VerificationEvent{
					EventType: EventDocumentRequest,
					Note:      e.sanitizer.Sanitize(intent.Note),
					Metadata:  encodeMetadata(map[string]interface{}{"document_type": intent.DocumentType}),
				})

			case IntentEscalate:
				queue(&models.VerificationEvent{
					EventType: EventEscalation,
					Note:      e.sanitizer.Sanitize(intent.Reason),
				})
			}
		}

		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("failed to update verification record: %w", err)
		}
		for _, ev := range queued {
			if err := e.events.Append(ctx, tx, ev); err != nil {
				return err
			}
			appended = append(appended, ev.EventType)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, t := range transitions {
		metrics.VerificationTransitions.WithLabelValues(t[0], t[1]).Inc()
	}
	for _, eventType := range appended {
		metrics.VerificationEvents.WithLabelValues(eventType).Inc()
	}
	e.logger.Info("Verification record updated",
		zap.Uint("verification_id", id),
		zap.Int("intents", len(intents)),
		zap.Int("events", len(appended)))

	return e.GetByID(ctx, id)
}

// AppendEvent records a standalone audit event. Status changes are
// rejected here: they must go through Update so the snapshot and the audit
// trail cannot diverge.
func (e *WorkflowEngine) AppendEvent(ctx context.Context, id uint, input EventInput, actor Actor) (*models.VerificationEvent, error) {
	if !IsKnownEventType(input.EventType) {
		return nil, NewValidationError("eventType", "invalid event type \""+input.EventType+"\"")
	}
	if input.EventType == EventStatusChange {
		return nil, NewValidationError("eventType", "status_change events must be recorded through the update workflow")
	}

	var record models.VerificationRecord
	if err := e.db.WithContext(ctx).Select("id").First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "verification", ID: id}
		}
		return nil, fmt.Errorf("failed to load verification record: %w", err)
	}

	event := &models.VerificationEvent{
		ID:             uuid.New(),
		VerificationID: id,
		EventType:      input.EventType,
		ActorID:        actor.ID,
		ActorRole:      actor.Role,
		Note:           e.sanitizer.Sanitize(input.Note),
		Metadata:       encodeMetadata(input.Metadata),
		CreatedAt:      e.now(),
	}
	if err := e.events.Append(ctx, e.db, event); err != nil {
		return nil, err
	}

	metrics.VerificationEvents.WithLabelValues(event.EventType).Inc()
	return event, nil
}

// GetByID returns the record hydrated with its audit trail.
func (e *WorkflowEngine) GetByID(ctx context.Context, id uint) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	if err := e.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "verification", ID: id}
		}
		return nil, fmt.Errorf("failed to load verification record: %w", err)
	}
	events, err := e.events.ListByRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Events = events
	return &record, nil
}

// lockForUpdate adds a row-level write lock on dialects that support it.
// The sqlite driver used in tests serializes writers itself and rejects
// FOR UPDATE syntax.
func (e *WorkflowEngine) lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// validateInput runs the struct tags and converts the first failure into a
// domain ValidationError naming the JSON field.
func (e *WorkflowEngine) validateInput(input CreateInput) error {
	err := e.validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return NewValidationError(fe.Field(), fe.Field()+" is required")
		}
		return NewValidationError(fe.Field(), "invalid value for "+fe.Field())
	}
	return fmt.Errorf("failed to validate input: %w", err)
}

func equalReviewer(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func encodeMetadata(metadata map[string]interface{}) string {
	if len(metadata) == 0 {
		return ""
	}
	raw, _ := json.Marshal(metadata)
	return string(raw)
}
