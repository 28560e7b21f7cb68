package verification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talenthub/backoffice/pkg/models"
)

func TestSettingsLazyDefaults(t *testing.T) {
	db := setupTestDB(t)
	store := NewSettingsStore(db, zap.NewNop())
	ctx := context.Background()

	settings, err := store.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, 48, settings.Automation.EscalationHours)
	assert.Equal(t, 24, settings.Automation.ReminderHours)
	assert.InDelta(t, 0.25, settings.Automation.RiskTolerance, 0.001)
	require.Len(t, settings.Providers, 1)
	assert.Equal(t, "manual", settings.Providers[0].ID)
	assert.True(t, settings.Providers[0].Enabled)
	assert.Equal(t, "verification-documents", settings.Storage.Bucket)

	// First read materializes the singleton row.
	var count int64
	require.NoError(t, db.Model(&models.VerificationSetting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSettingsRoundTripIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	store := NewSettingsStore(db, zap.NewNop())
	ctx := context.Background()

	patch := map[string]interface{}{
		"automation": map[string]interface{}{
			"escalationHours": float64(500), // clamped to 240
			"riskTolerance":   0.456,        // rounded to 0.46
			"autoApprove":     "yes",        // coerced to true
		},
		"storage": map[string]interface{}{
			"bucket": "  talent-kyc-docs  ", // trimmed
		},
		"bogus": "dropped",
	}

	first, err := store.Update(ctx, patch)
	require.NoError(t, err)
	second, err := store.Update(ctx, patch)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, 240, first.Automation.EscalationHours)
	assert.InDelta(t, 0.46, first.Automation.RiskTolerance, 0.001)
	assert.True(t, first.Automation.AutoApprove)
	assert.Equal(t, "talent-kyc-docs", first.Storage.Bucket)
	// Untouched sections keep their defaults.
	assert.Equal(t, 24, first.Automation.ReminderHours)
	require.Len(t, first.Providers, 1)

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	// Unknown keys never reach storage.
	var row models.VerificationSetting
	require.NoError(t, db.First(&row, "id = ?", 1).Error)
	assert.NotContains(t, row.Document, "bogus")
}

func TestSettingsNumericClamps(t *testing.T) {
	db := setupTestDB(t)
	store := NewSettingsStore(db, zap.NewNop())
	ctx := context.Background()

	settings, err := store.Update(ctx, map[string]interface{}{
		"automation": map[string]interface{}{
			"escalationHours": float64(0),
			"reminderHours":   float64(-3),
			"riskTolerance":   float64(5),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, settings.Automation.EscalationHours)
	assert.Equal(t, 1, settings.Automation.ReminderHours)
	assert.InDelta(t, 1.0, settings.Automation.RiskTolerance, 0.001)
}

func TestSettingsProviderCoercion(t *testing.T) {
	db := setupTestDB(t)
	store := NewSettingsStore(db, zap.NewNop())
	ctx := context.Background()

	settings, err := store.Update(ctx, map[string]interface{}{
		"providers": []interface{}{
			map[string]interface{}{
				"id":               " persona ",
				"name":             "Persona",
				"enabled":          "1",
				"sandbox":          true,
				"allowedDocuments": []interface{}{"passport", " national_id "},
				"secretHandshake":  "dropped",
			},
			map[string]interface{}{"name": "missing id, skipped"},
			"not-an-object",
		},
	})
	require.NoError(t, err)

	require.Len(t, settings.Providers, 1)
	p := settings.Providers[0]
	assert.Equal(t, "persona", p.ID)
	assert.True(t, p.Enabled)
	assert.True(t, p.Sandbox)
	assert.Equal(t, []string{"passport", "national_id"}, p.AllowedDocuments)
}

func TestSettingsSurvivesCorruptDocument(t *testing.T) {
	db := setupTestDB(t)
	store := NewSettingsStore(db, zap.NewNop())
	ctx := context.Background()

	_, err := store.Get(ctx) // materialize row
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.VerificationSetting{}).
		Where("id = ?", 1).
		Update("document", "{not json").Error)

	settings, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, defaultSettings(), settings)
}
