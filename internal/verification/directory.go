package verification

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/talenthub/backoffice/pkg/models"
)

// Directory is the read-only identity/profile lookup this subsystem
// consumes. The main application owns the users and profiles tables; the
// workflow only needs profile ownership and reviewer display names.
type Directory interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
	FindProfile(ctx context.Context, id uint) (*models.Profile, error)
}

// GormDirectory resolves users and profiles straight from the shared
// database. Lookups that miss return (nil, nil) so callers can distinguish
// absence from infrastructure failure.
type GormDirectory struct {
	db *gorm.DB
}

// NewGormDirectory creates a database-backed directory.
func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user %d: %w", id, err)
	}
	return &user, nil
}

func (d *GormDirectory) FindProfile(ctx context.Context, id uint) (*models.Profile, error) {
	var profile models.Profile
	err := d.db.WithContext(ctx).First(&profile, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find profile %d: %w", id, err)
	}
	return &profile, nil
}
