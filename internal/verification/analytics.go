package verification

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/talenthub/backoffice/pkg/metrics"
	"github.com/talenthub/backoffice/pkg/models"
)

const (
	defaultLookbackDays = 30
	maxLookbackDays     = 180
	backlogPageLimit    = 50
	topReviewerLimit    = 5
	recentActivityLimit = 20
)

// Overview is the dashboard aggregate for the verification workflow.
type Overview struct {
	Totals            Totals                      `json:"totals"`
	ReviewerBreakdown []ReviewerStat              `json:"reviewerBreakdown"`
	RecentActivity    []models.VerificationEvent  `json:"recentActivity"`
	OpenQueue         []models.VerificationRecord `json:"openQueue"`
	Metrics           OverviewMetrics             `json:"metrics"`
}

// Totals holds the status and provider breakdowns over all records.
type Totals struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"byStatus"`
	ByProvider map[string]int64 `json:"byProvider"`
}

// ReviewerStat is one reviewer's share of assignments, hydrated with a
// display name from the directory.
type ReviewerStat struct {
	ReviewerID uint   `json:"reviewerId"`
	Name       string `json:"name"`
	Count      int64  `json:"count"`
}

// OverviewMetrics carries the scalar dashboard figures. AverageReviewSeconds
// is nil when no record completed review inside the lookback window.
type OverviewMetrics struct {
	LookbackDays         int    `json:"lookbackDays"`
	AverageReviewSeconds *int64 `json:"averageReviewSeconds"`
	AutoApprovedCount    int64  `json:"autoApprovedCount"`
	BacklogSize          int    `json:"backlogSize"`
}

// AnalyticsAggregator computes overview metrics. It takes no locks and may
// trail in-flight writes slightly; the optional cache widens that window by
// its TTL, which the dashboard tolerates.
type AnalyticsAggregator struct {
	db        *gorm.DB
	settings  *SettingsStore
	directory Directory
	cache     *OverviewCache
	logger    *zap.Logger

	allowed []string
	now     func() time.Time
}

// NewAnalyticsAggregator creates the aggregator. cache may be nil.
func NewAnalyticsAggregator(db *gorm.DB, settings *SettingsStore, directory Directory, cache *OverviewCache, logger *zap.Logger, allowedStatuses []string) *AnalyticsAggregator {
	if len(allowedStatuses) == 0 {
		allowedStatuses = DefaultStatuses()
	}
	return &AnalyticsAggregator{
		db:        db,
		settings:  settings,
		directory: directory,
		cache:     cache,
		logger:    logger,
		allowed:   allowedStatuses,
		now:       time.Now,
	}
}

// Overview computes the dashboard aggregate for the given lookback window.
// lookbackDays is clamped to [1,180]; zero selects the default of 30. Every
// aggregate returns zero or nil on empty data rather than an error.
func (a *AnalyticsAggregator) Overview(ctx context.Context, lookbackDays int) (*Overview, error) {
	if lookbackDays == 0 {
		lookbackDays = defaultLookbackDays
	}
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	if lookbackDays > maxLookbackDays {
		lookbackDays = maxLookbackDays
	}

	if cached, ok := a.cache.Get(ctx, lookbackDays); ok {
		return cached, nil
	}

	start := a.now()
	defer func() {
		metrics.OverviewLatency.Observe(time.Since(start).Seconds())
	}()

	since := start.AddDate(0, 0, -lookbackDays)

	totals, err := a.totals(ctx)
	if err != nil {
		return nil, err
	}
	reviewers, err := a.reviewerBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	queue, err := a.openQueue(ctx, start)
	if err != nil {
		return nil, err
	}
	activity, err := a.recentActivity(ctx, since)
	if err != nil {
		return nil, err
	}
	avgReview, err := a.averageReviewSeconds(ctx, since)
	if err != nil {
		return nil, err
	}
	autoApproved, err := a.autoApprovedCount(ctx)
	if err != nil {
		return nil, err
	}

	overview := &Overview{
		Totals:            totals,
		ReviewerBreakdown: reviewers,
		RecentActivity:    activity,
		OpenQueue:         queue,
		Metrics: OverviewMetrics{
			LookbackDays:         lookbackDays,
			AverageReviewSeconds: avgReview,
			AutoApprovedCount:    autoApproved,
			BacklogSize:          len(queue),
		},
	}

	a.cache.Set(ctx, lookbackDays, overview)
	return overview, nil
}

func (a *AnalyticsAggregator) totals(ctx context.Context) (Totals, error) {
	type countRow struct {
		Key   string
		Count int64
	}

	totals := Totals{
		ByStatus:   make(map[string]int64, len(a.allowed)),
		ByProvider: make(map[string]int64),
	}
	// Zero-fill so the dashboard renders every allowed status.
	for _, status := range a.allowed {
		totals.ByStatus[status] = 0
	}

	var statusRows []countRow
	err := a.db.WithContext(ctx).Model(&models.VerificationRecord{}).
		Select("status AS key, COUNT(*) AS count").
		Group("status").
		Scan(&statusRows).Error
	if err != nil {
		return Totals{}, fmt.Errorf("failed to compute status breakdown: %w", err)
	}
	for _, row := range statusRows {
		totals.ByStatus[row.Key] = row.Count
		totals.Total += row.Count
	}

	var providerRows []countRow
	err = a.db.WithContext(ctx).Model(&models.VerificationRecord{}).
		Select("provider AS key, COUNT(*) AS count").
		Where("provider <> ''").
		Group("provider").
		Scan(&providerRows).Error
	if err != nil {
		return Totals{}, fmt.Errorf("failed to compute provider breakdown: %w", err)
	}
	for _, row := range providerRows {
		totals.ByProvider[row.Key] = row.Count
	}

	return totals, nil
}

func (a *AnalyticsAggregator) reviewerBreakdown(ctx context.Context) ([]ReviewerStat, error) {
	type reviewerRow struct {
		ReviewerID uint
		Count      int64
	}
	var rows []reviewerRow
	err := a.db.WithContext(ctx).Model(&models.VerificationRecord{}).
		Select("reviewer_id, COUNT(*) AS count").
		Where("reviewer_id IS NOT NULL").
		Group("reviewer_id").
		Order("count DESC").
		Limit(topReviewerLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute reviewer breakdown: %w", err)
	}

	stats := make([]ReviewerStat, 0, len(rows))
	for _, row := range rows {
		name := "Unknown"
		if user, err := a.directory.FindUser(ctx, row.ReviewerID); err == nil && user != nil {
			name = user.DisplayName()
		}
		stats = append(stats, ReviewerStat{ReviewerID: row.ReviewerID, Name: name, Count: row.Count})
	}
	return stats, nil
}

// openQueue returns the records that have breached the configured SLA
// escalation threshold: still unresolved and submitted before
// now - escalationHours, oldest first.
func (a *AnalyticsAggregator) openQueue(ctx context.Context, now time.Time) ([]models.VerificationRecord, error) {
	settings, err := a.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-time.Duration(settings.Automation.EscalationHours) * time.Hour)

	var records []models.VerificationRecord
	err = a.db.WithContext(ctx).
		Where("status IN ?", OpenStatuses()).
		Where("submitted_at < ?", cutoff).
		Order("submitted_at ASC").
		Limit(backlogPageLimit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute backlog: %w", err)
	}
	return records, nil
}

func (a *AnalyticsAggregator) recentActivity(ctx context.Context, since time.Time) ([]models.VerificationEvent, error) {
	var events []models.VerificationEvent
	err := a.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("created_at DESC").
		Order("id DESC").
		Limit(recentActivityLimit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent activity: %w", err)
	}
	return events, nil
}

// averageReviewSeconds is the mean of (reviewedAt - submittedAt) over
// records touched within the lookback window, rounded to the nearest
// second; nil when no record qualifies.
func (a *AnalyticsAggregator) averageReviewSeconds(ctx context.Context, since time.Time) (*int64, error) {
	type reviewRow struct {
		SubmittedAt time.Time
		ReviewedAt  time.Time
	}
	var rows []reviewRow
	err := a.db.WithContext(ctx).Model(&models.VerificationRecord{}).
		Select("submitted_at, reviewed_at").
		Where("reviewed_at IS NOT NULL").
		Where("updated_at >= ?", since).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to compute review time average: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var total float64
	for _, row := range rows {
		total += row.ReviewedAt.Sub(row.SubmittedAt).Seconds()
	}
	avg := int64(math.Round(total / float64(len(rows))))
	return &avg, nil
}

func (a *AnalyticsAggregator) autoApprovedCount(ctx context.Context) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).Model(&models.VerificationRecord{}).
		Where("status = ?", StatusVerified).
		Where("reviewer_id IS NULL").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count auto-approved records: %w", err)
	}
	return count, nil
}
