package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/talenthub/backoffice/pkg/models"
)

// Settings is the fully resolved verification configuration document.
// Every read and write re-merges compiled defaults with whatever was
// persisted, so callers always receive a complete, schema-valid shape no
// matter what older code left in storage.
type Settings struct {
	Providers  []ProviderSettings `json:"providers"`
	Automation AutomationSettings `json:"automation"`
	Documents  DocumentSettings   `json:"documents"`
	Storage    StorageSettings    `json:"storage"`
}

// ProviderSettings configures one verification provider. Webhook and
// credential fields are configuration only; no provider integration logic
// lives in this subsystem.
type ProviderSettings struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Enabled          bool     `json:"enabled"`
	WebhookURL       string   `json:"webhookUrl"`
	APIKey           string   `json:"apiKey"`
	Sandbox          bool     `json:"sandbox"`
	AllowedDocuments []string `json:"allowedDocuments"`
}

// AutomationSettings controls automatic workflow behavior and SLA windows.
type AutomationSettings struct {
	AutoAssign      bool    `json:"autoAssign"`
	AutoReject      bool    `json:"autoReject"`
	AutoApprove     bool    `json:"autoApprove"`
	EscalationHours int     `json:"escalationHours"`
	ReminderHours   int     `json:"reminderHours"`
	RiskTolerance   float64 `json:"riskTolerance"`
}

// DocumentSettings lists required document types per profile kind.
type DocumentSettings struct {
	RequiredForIndividual []string `json:"requiredForIndividual"`
	RequiredForBusiness   []string `json:"requiredForBusiness"`
}

// StorageSettings points at the bucket holding uploaded documents.
type StorageSettings struct {
	Bucket        string `json:"bucket"`
	PublicBaseURL string `json:"publicBaseUrl"`
}

// defaultSettings returns a fresh compiled default document. It must stay a
// pure function: every merge starts from a new value so no caller can
// mutate shared defaults.
func defaultSettings() Settings {
	return Settings{
		Providers: []ProviderSettings{
			{
				ID:               "manual",
				Name:             "Manual review",
				Enabled:          true,
				AllowedDocuments: []string{"passport", "driver_license", "national_id"},
			},
		},
		Automation: AutomationSettings{
			EscalationHours: 48,
			ReminderHours:   24,
			RiskTolerance:   0.25,
		},
		Documents: DocumentSettings{
			RequiredForIndividual: []string{"government_id", "selfie"},
			RequiredForBusiness:   []string{"registration_certificate", "government_id"},
		},
		Storage: StorageSettings{
			Bucket: "verification-documents",
		},
	}
}

const settingsSingletonID = 1

// SettingsStore manages the singleton verification settings document with
// read-merge-write semantics. Merges are deterministic pure functions of
// (defaults, stored, patch), so concurrent writers degrade to
// last-writer-wins, which is acceptable for configuration data.
type SettingsStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSettingsStore creates a settings store.
func NewSettingsStore(db *gorm.DB, logger *zap.Logger) *SettingsStore {
	return &SettingsStore{db: db, logger: logger}
}

// Get returns the resolved settings document, lazily creating the singleton
// row with compiled defaults on first access.
func (s *SettingsStore) Get(ctx context.Context) (Settings, error) {
	row, err := s.load(ctx)
	if err != nil {
		return Settings{}, err
	}
	return resolveSettings(decodeDocument(row.Document), nil), nil
}

// Update overlays the recognized keys of patch onto the stored document and
// persists the full resolved result. Unknown keys are dropped; repeating
// the same patch is a no-op.
func (s *SettingsStore) Update(ctx context.Context, patch map[string]interface{}) (Settings, error) {
	row, err := s.load(ctx)
	if err != nil {
		return Settings{}, err
	}

	merged := resolveSettings(decodeDocument(row.Document), patch)

	doc, err := json.Marshal(merged)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to encode settings document: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.VerificationSetting{}).
		Where("id = ?", settingsSingletonID).
		Update("document", string(doc)).Error; err != nil {
		s.logger.Error("Failed to persist verification settings", zap.Error(err))
		return Settings{}, fmt.Errorf("failed to update settings: %w", err)
	}

	s.logger.Info("Verification settings updated", zap.Int("patch_keys", len(patch)))
	return merged, nil
}

// load fetches the singleton row, creating it with defaults when missing.
func (s *SettingsStore) load(ctx context.Context) (*models.VerificationSetting, error) {
	var row models.VerificationSetting
	err := s.db.WithContext(ctx).First(&row, "id = ?", settingsSingletonID).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	doc, err := json.Marshal(defaultSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to encode default settings: %w", err)
	}
	row = models.VerificationSetting{ID: settingsSingletonID, Document: string(doc)}
	// FirstOrCreate tolerates a concurrent first access creating the row.
	if err := s.db.WithContext(ctx).
		Where("id = ?", settingsSingletonID).
		FirstOrCreate(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to initialize settings: %w", err)
	}
	return &row, nil
}

// decodeDocument parses a stored settings document, tolerating empty or
// corrupt payloads: the merge never trusts the stored shape anyway.
func decodeDocument(doc string) map[string]interface{} {
	if doc == "" {
		return nil
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil
	}
	return out
}

// resolveSettings builds the final document: compiled defaults, overlaid by
// the stored document's recognized keys, overlaid by the patch's recognized
// keys. Both overlays run through the same per-field coercion.
func resolveSettings(stored, patch map[string]interface{}) Settings {
	s := defaultSettings()
	overlaySettings(&s, stored)
	overlaySettings(&s, patch)
	return s
}

func overlaySettings(s *Settings, doc map[string]interface{}) {
	if doc == nil {
		return
	}

	if raw, present := doc["providers"]; present {
		if items, ok := raw.([]interface{}); ok {
			providers := make([]ProviderSettings, 0, len(items))
			for _, item := range items {
				m, ok := item.(map[string]interface{})
				if !ok {
					continue
				}
				p := coerceProvider(m)
				if p.ID == "" {
					continue
				}
				providers = append(providers, p)
			}
			s.Providers = providers
		}
	}

	if m, ok := doc["automation"].(map[string]interface{}); ok {
		a := &s.Automation
		overlayBool(m, "autoAssign", &a.AutoAssign)
		overlayBool(m, "autoReject", &a.AutoReject)
		overlayBool(m, "autoApprove", &a.AutoApprove)
		overlayInt(m, "escalationHours", &a.EscalationHours, 1, 240)
		overlayInt(m, "reminderHours", &a.ReminderHours, 1, 240)
		if raw, present := m["riskTolerance"]; present {
			if f, ok := coerceFloat(raw); ok {
				a.RiskTolerance = math.Round(clampFloat(f, 0, 1)*100) / 100
			}
		}
	}

	if m, ok := doc["documents"].(map[string]interface{}); ok {
		d := &s.Documents
		overlayStringSlice(m, "requiredForIndividual", &d.RequiredForIndividual)
		overlayStringSlice(m, "requiredForBusiness", &d.RequiredForBusiness)
	}

	if m, ok := doc["storage"].(map[string]interface{}); ok {
		overlayString(m, "bucket", &s.Storage.Bucket, 128)
		overlayString(m, "publicBaseUrl", &s.Storage.PublicBaseURL, 512)
	}
}

func coerceProvider(m map[string]interface{}) ProviderSettings {
	var p ProviderSettings
	overlayString(m, "id", &p.ID, 64)
	overlayString(m, "name", &p.Name, 128)
	overlayBool(m, "enabled", &p.Enabled)
	overlayString(m, "webhookUrl", &p.WebhookURL, 512)
	overlayString(m, "apiKey", &p.APIKey, 256)
	overlayBool(m, "sandbox", &p.Sandbox)
	p.AllowedDocuments = []string{}
	overlayStringSlice(m, "allowedDocuments", &p.AllowedDocuments)
	return p
}

func overlayString(m map[string]interface{}, key string, dst *string, max int) {
	raw, present := m[key]
	if !present {
		return
	}
	str, ok := raw.(string)
	if !ok {
		return
	}
	str = strings.TrimSpace(str)
	if len(str) > max {
		str = str[:max]
	}
	*dst = str
}

func overlayBool(m map[string]interface{}, key string, dst *bool) {
	raw, present := m[key]
	if !present {
		return
	}
	if b, ok := coerceBool(raw); ok {
		*dst = b
	}
}

func overlayInt(m map[string]interface{}, key string, dst *int, min, max int) {
	raw, present := m[key]
	if !present {
		return
	}
	if f, ok := coerceFloat(raw); ok {
		n := int(math.Round(f))
		if n < min {
			n = min
		}
		if n > max {
			n = max
		}
		*dst = n
	}
}

func overlayStringSlice(m map[string]interface{}, key string, dst *[]string) {
	raw, present := m[key]
	if !present {
		return
	}
	items, ok := raw.([]interface{})
	if !ok {
		return
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if str, ok := item.(string); ok {
			str = strings.TrimSpace(str)
			if str != "" && len(str) <= 64 {
				out = append(out, str)
			}
		}
	}
	*dst = out
}

// coerceBool accepts native bools plus the string and numeric spellings a
// dashboard form is liable to send.
func coerceBool(raw interface{}) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		}
	case float64:
		return v != 0, true
	case int:
		return v != 0, true
	}
	return false, false
}

func coerceFloat(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v), "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func clampFloat(f, min, max float64) float64 {
	if f < min {
		return min
	}
	if f > max {
		return max
	}
	return f
}
