package verification

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/talenthub/backoffice/pkg/models"
)

const (
	defaultPage     = 1
	defaultPageSize = 25
	maxPageSize     = 100
)

// ListFilters narrows and pages the verification listing. Zero values mean
// "no filter"; out-of-range pagination is clamped rather than rejected.
type ListFilters struct {
	Status        []string   `json:"status,omitempty"`
	Provider      string     `json:"provider,omitempty"`
	ReviewerID    *uint      `json:"reviewerId,omitempty"`
	Search        string     `json:"search,omitempty"`
	SubmittedFrom *time.Time `json:"submittedFrom,omitempty"`
	SubmittedTo   *time.Time `json:"submittedTo,omitempty"`
	Page          int        `json:"page,omitempty"`
	PageSize      int        `json:"pageSize,omitempty"`
	Sort          string     `json:"sort,omitempty"`
	SortDesc      bool       `json:"sortDesc,omitempty"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// ListResult is the listing envelope returned to the dashboard.
type ListResult struct {
	Data       []models.VerificationRecord `json:"data"`
	Pagination Pagination                  `json:"pagination"`
}

// sortColumns whitelists the sortable keys. Anything else falls back to the
// default submitted_at ordering.
var sortColumns = map[string]string{
	"status":      "status",
	"reviewer":    "reviewer_id",
	"provider":    "provider",
	"submittedAt": "submitted_at",
}

// QueryService serves filtered, paginated reads over verification records.
// It takes no locks; listings may trail in-flight writes slightly.
type QueryService struct {
	db      *gorm.DB
	allowed map[string]struct{}
}

// NewQueryService creates a query service. allowedStatuses may be empty to
// use the compiled default set.
func NewQueryService(db *gorm.DB, allowedStatuses []string) *QueryService {
	return &QueryService{db: db, allowed: statusSet(allowedStatuses)}
}

// List returns one page of verification records matching the filters.
func (q *QueryService) List(ctx context.Context, filters ListFilters) (*ListResult, error) {
	page := filters.Page
	if page < 1 {
		page = defaultPage
	}
	pageSize := filters.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	query := q.db.WithContext(ctx).Model(&models.VerificationRecord{})

	// Invalid status values are silently dropped against the allowed set.
	if len(filters.Status) > 0 {
		statuses := make([]string, 0, len(filters.Status))
		for _, s := range filters.Status {
			if _, ok := q.allowed[s]; ok {
				statuses = append(statuses, s)
			}
		}
		if len(statuses) > 0 {
			query = query.Where("status IN ?", statuses)
		}
	}
	if filters.Provider != "" {
		query = query.Where("provider = ?", filters.Provider)
	}
	if filters.ReviewerID != nil {
		query = query.Where("reviewer_id = ?", *filters.ReviewerID)
	}
	if filters.SubmittedFrom != nil {
		query = query.Where("submitted_at >= ?", *filters.SubmittedFrom)
	}
	if filters.SubmittedTo != nil {
		query = query.Where("submitted_at <= ?", *filters.SubmittedTo)
	}
	if term := strings.TrimSpace(filters.Search); term != "" {
		if n, err := strconv.ParseUint(term, 10, 64); err == nil {
			query = query.Where("id = ? OR user_id = ?", n, n)
		} else {
			like := "%" + strings.ToLower(term) + "%"
			query = query.Where("LOWER(full_name) LIKE ? OR LOWER(provider) LIKE ?", like, like)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count verification records: %w", err)
	}

	query = applySort(query, filters.Sort, filters.SortDesc)

	var records []models.VerificationRecord
	if err := query.Limit(pageSize).Offset((page - 1) * pageSize).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list verification records: %w", err)
	}

	return &ListResult{
		Data: records,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
		},
	}, nil
}

// applySort maps a whitelisted sort key to its column, falling back to the
// stable default of submitted_at DESC with created_at DESC as tiebreak.
func applySort(query *gorm.DB, sort string, desc bool) *gorm.DB {
	if column, ok := sortColumns[sort]; ok {
		direction := "ASC"
		if desc {
			direction = "DESC"
		}
		return query.Order(column + " " + direction).Order("created_at DESC")
	}
	return query.Order("submitted_at DESC").Order("created_at DESC")
}
