package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/talenthub/backoffice/internal/verification"
)

// Server is the JSON transport over the verification workflow. Routing and
// auth semantics live upstream; the server only expects the gateway to set
// X-Actor-ID and X-Actor-Role on authenticated requests.
type Server struct {
	router    *gin.Engine
	logger    *zap.Logger
	engine    *verification.WorkflowEngine
	query     *verification.QueryService
	analytics *verification.AnalyticsAggregator
	settings  *verification.SettingsStore
}

// NewServer creates the API server with injected workflow components.
func NewServer(
	logger *zap.Logger,
	engine *verification.WorkflowEngine,
	query *verification.QueryService,
	analytics *verification.AnalyticsAggregator,
	settings *verification.SettingsStore,
) *Server {
	server := &Server{
		logger:    logger,
		engine:    engine,
		query:     query,
		analytics: analytics,
		settings:  settings,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Actor-ID", "X-Actor-Role"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/metrics", gin.WrapH(promhttp.Handler()))
		v1.GET("/health", s.healthCheck)

		admin := v1.Group("/admin")
		{
			admin.GET("/verifications", s.listVerifications)
			admin.GET("/verifications/overview", s.verificationOverview)
			admin.GET("/verifications/:id", s.getVerification)
			admin.POST("/verifications", s.createVerification)
			admin.PATCH("/verifications/:id", s.updateVerification)
			admin.POST("/verifications/:id/events", s.appendVerificationEvent)
			admin.GET("/verification-settings", s.getVerificationSettings)
			admin.PUT("/verification-settings", s.updateVerificationSettings)
		}
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// writeError maps domain errors onto HTTP statuses: validation failures are
// 400 with the offending field named, unresolved ids are 404, everything
// else is a 500 with the detail logged rather than leaked.
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case verification.IsValidation(err):
		var ve *verification.ValidationError
		errors.As(err, &ve)
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message, "field": ve.Field})
	case verification.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
