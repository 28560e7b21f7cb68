package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationRecord is the mutable current-state snapshot of one user's
// identity check. The event stream is the durable audit trail; this row
// only holds the latest state.
type VerificationRecord struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	UserID    uint   `json:"user_id" gorm:"index;not null"`
	ProfileID uint   `json:"profile_id" gorm:"index;not null"`
	Status    string `json:"status" gorm:"type:varchar(32);index;not null"`
	Provider  string `json:"provider" gorm:"type:varchar(64);index"`

	DocumentType   string     `json:"document_type" gorm:"type:varchar(64)"`
	DocumentLast4  string     `json:"document_last4" gorm:"type:varchar(4)"`
	IssuingCountry string     `json:"issuing_country" gorm:"type:varchar(2)"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	FrontKey       string     `json:"front_key,omitempty" gorm:"type:varchar(255)"`
	BackKey        string     `json:"back_key,omitempty" gorm:"type:varchar(255)"`
	SelfieKey      string     `json:"selfie_key,omitempty" gorm:"type:varchar(255)"`

	FullName     string     `json:"full_name" gorm:"type:varchar(255)"`
	DateOfBirth  *time.Time `json:"date_of_birth"`
	AddressLine1 string     `json:"address_line1" gorm:"type:varchar(255)"`
	AddressLine2 string     `json:"address_line2,omitempty" gorm:"type:varchar(255)"`
	City         string     `json:"city" gorm:"type:varchar(128)"`
	PostalCode   string     `json:"postal_code" gorm:"type:varchar(32)"`
	Country      string     `json:"country" gorm:"type:varchar(2)"`

	ReviewerID     *uint      `json:"reviewer_id" gorm:"index"`
	SubmittedAt    time.Time  `json:"submitted_at" gorm:"index;not null"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	ReviewNotes    string     `json:"review_notes,omitempty" gorm:"type:text"`
	DeclinedReason string     `json:"declined_reason,omitempty" gorm:"type:text"`
	Metadata       string     `json:"metadata,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Events []VerificationEvent `json:"events,omitempty" gorm:"foreignKey:VerificationID"`
}

// TableName returns the table name for GORM
func (VerificationRecord) TableName() string {
	return "verification_records"
}

// VerificationEvent is one immutable audit entry describing an action taken
// against a verification record. Events are append-only; there is no update
// or delete surface for them anywhere in the codebase.
type VerificationEvent struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	VerificationID uint      `json:"verification_id" gorm:"index;not null"`
	EventType      string    `json:"event_type" gorm:"type:varchar(32);index;not null"`
	ActorID        *uint     `json:"actor_id" gorm:"index"`
	ActorRole      string    `json:"actor_role,omitempty" gorm:"type:varchar(32)"`
	FromStatus     *string   `json:"from_status,omitempty" gorm:"type:varchar(32)"`
	ToStatus       *string   `json:"to_status,omitempty" gorm:"type:varchar(32)"`
	Note           string    `json:"note,omitempty" gorm:"type:text"`
	Metadata       string    `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time `json:"created_at" gorm:"index;not null"`
}

// TableName returns the table name for GORM
func (VerificationEvent) TableName() string {
	return "verification_events"
}

// VerificationSetting is the singleton settings row. The document column
// holds the last resolved settings JSON; readers never trust its shape and
// re-merge it against compiled defaults on every access.
type VerificationSetting struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Document  string    `json:"document" gorm:"type:jsonb"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM
func (VerificationSetting) TableName() string {
	return "verification_settings"
}
