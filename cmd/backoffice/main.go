package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/talenthub/backoffice/api"
	"github.com/talenthub/backoffice/internal/config"
	"github.com/talenthub/backoffice/internal/database"
	"github.com/talenthub/backoffice/internal/verification"
	"github.com/talenthub/backoffice/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("BACKOFFICE_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.Connect(cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	directory := verification.NewGormDirectory(db)
	events := verification.NewEventLog(db)
	settings := verification.NewSettingsStore(db, zapLogger)
	cache := verification.NewOverviewCache(redisClient, cfg.Verification.OverviewCacheTTL, zapLogger)

	engine := verification.NewWorkflowEngine(db, events, directory, zapLogger, cfg.Verification.AllowedStatuses)
	query := verification.NewQueryService(db, cfg.Verification.AllowedStatuses)
	analytics := verification.NewAnalyticsAggregator(db, settings, directory, cache, zapLogger, cfg.Verification.AllowedStatuses)

	server := api.NewServer(zapLogger, engine, query, analytics, settings)
	if err := server.Start(cfg.Server.Addr()); err != nil {
		zapLogger.Fatal("API server exited", zap.Error(err))
	}
}
