// Database initialization and connection management
package database

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/talenthub/backoffice/internal/config"
	"github.com/talenthub/backoffice/pkg/metrics"
	"github.com/talenthub/backoffice/pkg/models"
)

// Connect opens the postgres connection with pool settings from config and
// starts the pool gauge reporter.
func Connect(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.Info("database connection initialized",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	go reportPoolStats(sqlDB)

	return db, nil
}

// Migrate creates or updates the tables owned by this service.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.VerificationRecord{},
		&models.VerificationEvent{},
		&models.VerificationSetting{},
	)
}

// reportPoolStats publishes connection pool gauges every 15 seconds.
func reportPoolStats(sqlDB *sql.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		stats := sqlDB.Stats()
		metrics.DBOpenConns.WithLabelValues("backoffice").Set(float64(stats.OpenConnections))
		metrics.DBIdleConns.WithLabelValues("backoffice").Set(float64(stats.Idle))
		metrics.DBInUseConns.WithLabelValues("backoffice").Set(float64(stats.InUse))
	}
}
