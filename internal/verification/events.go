package verification

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/talenthub/backoffice/pkg/models"
)

// EventLog is the write-once audit store. Entries are only ever inserted;
// nothing in the codebase updates or deletes a verification event.
type EventLog struct {
	db *gorm.DB
}

// NewEventLog creates an event log over the given database.
func NewEventLog(db *gorm.DB) *EventLog {
	return &EventLog{db: db}
}

// Append inserts one event using the supplied transaction handle so record
// mutation and audit entry commit or roll back together.
func (l *EventLog) Append(ctx context.Context, tx *gorm.DB, event *models.VerificationEvent) error {
	if err := tx.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append verification event: %w", err)
	}
	return nil
}

// ListByRecord returns all events for a record, newest first with id as the
// tiebreak so same-timestamp events keep a stable order.
func (l *EventLog) ListByRecord(ctx context.Context, verificationID uint) ([]models.VerificationEvent, error) {
	var events []models.VerificationEvent
	err := l.db.WithContext(ctx).
		Where("verification_id = ?", verificationID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list verification events: %w", err)
	}
	return events, nil
}
