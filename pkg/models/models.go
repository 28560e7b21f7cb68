package models

import (
	"strings"
	"time"
)

// User is a marketplace account. Only the fields the verification
// back-office reads are modeled here; the full account schema is owned by
// the main application.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex" validate:"required,email,max=254"`
	FirstName string    `json:"first_name" validate:"max=50"`
	LastName  string    `json:"last_name" validate:"max=50"`
	Role      string    `json:"role" gorm:"default:user"` // user, reviewer, admin
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM
func (User) TableName() string {
	return "users"
}

// DisplayName returns the name shown in reviewer breakdowns.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Profile is a talent profile owned by a user. A user may hold several
// profiles; verification requests always reference one of them.
type Profile struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"index;not null"`
	DisplayName string    `json:"display_name" validate:"max=100"`
	Kind        string    `json:"kind" gorm:"default:individual"` // individual, business
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM
func (Profile) TableName() string {
	return "profiles"
}
