package verification

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/talenthub/backoffice/pkg/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql.DB: %v", err)
	}
	// A single connection keeps every session on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.VerificationRecord{},
		&models.VerificationEvent{},
		&models.VerificationSetting{},
	)
	if err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

type stubDirectory struct {
	users    map[uint]*models.User
	profiles map[uint]*models.Profile
}

func (d *stubDirectory) FindUser(ctx context.Context, id uint) (*models.User, error) {
	return d.users[id], nil
}

func (d *stubDirectory) FindProfile(ctx context.Context, id uint) (*models.Profile, error) {
	return d.profiles[id], nil
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		users: map[uint]*models.User{
			1: {ID: 1, Email: "alice@example.com", FirstName: "Alice", LastName: "Park"},
			2: {ID: 2, Email: "bob@example.com", FirstName: "Bob", LastName: "Stone"},
			7: {ID: 7, Email: "rita@example.com", FirstName: "Rita", LastName: "Review", Role: "reviewer"},
		},
		profiles: map[uint]*models.Profile{
			10: {ID: 10, UserID: 1, DisplayName: "Alice P.", Kind: "individual"},
			20: {ID: 20, UserID: 2, DisplayName: "Bob S.", Kind: "individual"},
			99: {ID: 99, UserID: 2, DisplayName: "Bob Org", Kind: "business"},
		},
	}
}

func newTestEngine(t *testing.T) (*WorkflowEngine, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	engine := NewWorkflowEngine(db, NewEventLog(db), newStubDirectory(), zap.NewNop(), nil)
	return engine, db
}

func validCreateInput() CreateInput {
	dob := time.Date(1992, 4, 15, 0, 0, 0, 0, time.UTC)
	return CreateInput{
		UserID:       1,
		ProfileID:    10,
		Provider:     "persona",
		FullName:     "Alice Park",
		DateOfBirth:  &dob,
		AddressLine1: "12 Harbor Way",
		City:         "Lisbon",
		PostalCode:   "1100-001",
		Country:      "pt",
	}
}
