package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/talenthub/backoffice/internal/verification"
	"github.com/talenthub/backoffice/pkg/models"
)

func newTestServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every session on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.VerificationRecord{},
		&models.VerificationEvent{},
		&models.VerificationSetting{},
	))

	require.NoError(t, db.Create(&models.User{ID: 1, Email: "alice@example.com", FirstName: "Alice", LastName: "Almeida"}).Error)
	require.NoError(t, db.Create(&models.Profile{ID: 10, UserID: 1, DisplayName: "Alice", Kind: "individual"}).Error)

	logger := zap.NewNop()
	directory := verification.NewGormDirectory(db)
	events := verification.NewEventLog(db)
	settings := verification.NewSettingsStore(db, logger)
	engine := verification.NewWorkflowEngine(db, events, directory, logger, nil)
	query := verification.NewQueryService(db, nil)
	analytics := verification.NewAnalyticsAggregator(db, settings, directory, nil, logger, nil)

	return NewServer(logger, engine, query, analytics, settings), db
}

func doRequest(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", "7")
	req.Header.Set("X-Actor-Role", "admin")
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)
	return w
}

const createBody = `{
	"userId": 1,
	"profileId": 10,
	"provider": "persona",
	"fullName": "Alice Almeida",
	"dateOfBirth": "1991-02-03T00:00:00Z",
	"addressLine1": "Rua das Flores 1",
	"city": "Lisboa",
	"postalCode": "1100-001",
	"country": "PT"
}`

func TestCreateVerificationEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodPost, "/api/v1/admin/verifications", createBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var record models.VerificationRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "submitted", record.Status)
	assert.Equal(t, "PT", record.Country)
	require.Len(t, record.Events, 1)
	assert.Equal(t, "status_change", record.Events[0].EventType)
}

func TestCreateVerificationValidationFailure(t *testing.T) {
	server, _ := newTestServer(t)

	// Profile 10 belongs to user 1, not user 99.
	body := strings.Replace(createBody, `"userId": 1`, `"userId": 99`, 1)
	w := doRequest(t, server, http.MethodPost, "/api/v1/admin/verifications", body)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "profileId", payload["field"])
	assert.NotEmpty(t, payload["error"])
}

func TestUpdateVerificationEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	created := doRequest(t, server, http.MethodPost, "/api/v1/admin/verifications", createBody)
	require.Equal(t, http.StatusCreated, created.Code)
	var record models.VerificationRecord
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &record))

	patch := `{"intents": [{"kind": "changeStatus", "status": "verified"}, {"kind": "note", "note": "looks good"}]}`
	w := doRequest(t, server, http.MethodPatch, fmt.Sprintf("/api/v1/admin/verifications/%d", record.ID), patch)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.VerificationRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "verified", updated.Status)
	require.NotNil(t, updated.ReviewedAt)
	assert.Len(t, updated.Events, 3)
}

func TestGetVerificationNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/v1/admin/verifications/4242", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	bad := doRequest(t, server, http.MethodGet, "/api/v1/admin/verifications/not-a-number", "")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestListVerificationsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	created := doRequest(t, server, http.MethodPost, "/api/v1/admin/verifications", createBody)
	require.Equal(t, http.StatusCreated, created.Code)

	w := doRequest(t, server, http.MethodGet, "/api/v1/admin/verifications?status=submitted,bogus&pageSize=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var result verification.ListResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, int64(1), result.Pagination.Total)
	assert.Equal(t, 10, result.Pagination.PageSize)
	require.Len(t, result.Data, 1)
}

func TestOverviewEndpointClampsLookback(t *testing.T) {
	server, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/v1/admin/verifications/overview?lookbackDays=500", "")
	require.Equal(t, http.StatusOK, w.Code)

	var overview verification.Overview
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &overview))
	assert.Equal(t, 180, overview.Metrics.LookbackDays)
}

func TestSettingsEndpointsRoundTrip(t *testing.T) {
	server, _ := newTestServer(t)

	get := doRequest(t, server, http.MethodGet, "/api/v1/admin/verification-settings", "")
	require.Equal(t, http.StatusOK, get.Code)
	var defaults verification.Settings
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &defaults))
	assert.Equal(t, 48, defaults.Automation.EscalationHours)

	put := doRequest(t, server, http.MethodPut, "/api/v1/admin/verification-settings",
		`{"automation": {"escalationHours": 500}, "unknown": true}`)
	require.Equal(t, http.StatusOK, put.Code)
	var updated verification.Settings
	require.NoError(t, json.Unmarshal(put.Body.Bytes(), &updated))
	assert.Equal(t, 240, updated.Automation.EscalationHours)

	again := doRequest(t, server, http.MethodGet, "/api/v1/admin/verification-settings", "")
	require.Equal(t, http.StatusOK, again.Code)
	var persisted verification.Settings
	require.NoError(t, json.Unmarshal(again.Body.Bytes(), &persisted))
	assert.Equal(t, updated, persisted)
}

func TestAppendEventEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	created := doRequest(t, server, http.MethodPost, "/api/v1/admin/verifications", createBody)
	require.Equal(t, http.StatusCreated, created.Code)
	var record models.VerificationRecord
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &record))

	w := doRequest(t, server, http.MethodPost,
		fmt.Sprintf("/api/v1/admin/verifications/%d/events", record.ID),
		`{"eventType": "reminder", "note": "please upload the back side"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var event models.VerificationEvent
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &event))
	assert.Equal(t, "reminder", event.EventType)
	require.NotNil(t, event.ActorID)
	assert.Equal(t, uint(7), *event.ActorID)

	rejected := doRequest(t, server, http.MethodPost,
		fmt.Sprintf("/api/v1/admin/verifications/%d/events", record.ID),
		`{"eventType": "status_change"}`)
	assert.Equal(t, http.StatusBadRequest, rejected.Code)
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := doRequest(t, server, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}
