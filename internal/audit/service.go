package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/assetdesk/assetdesk/internal/shared"
)

const maxSummarySpan = 366 * 24 * time.Hour

// Reader is the query side of Repository.
type Reader interface {
	List(ctx context.Context, filters Filters) ([]Record, error)
	Summary(ctx context.Context, filters SummaryFilters) ([]SummaryRow, error)
}

// Service answers audit queries for reporting.
type Service struct {
	repo Reader
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Reader) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns entries matching filters.
func (s *Service) List(ctx context.Context, filters Filters) ([]Record, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.From.After(filters.To) {
		return nil, fmt.Errorf("%w: from must not be after to", shared.ErrValidation)
	}
	filters.Module = strings.TrimSpace(filters.Module)
	filters.Action = strings.TrimSpace(filters.Action)
	filters.Limit = shared.ClampLimit(filters.Limit)
	records, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Summary counts entries per (module, action) per window. Missing bounds
// default to the trailing 30 days.
func (s *Service) Summary(ctx context.Context, filters SummaryFilters) (Summary, error) {
	if s.repo == nil {
		return Summary{}, fmt.Errorf("audit: repository not configured")
	}
	if filters.To.IsZero() {
		filters.To = s.now().UTC()
	}
	if filters.From.IsZero() {
		filters.From = filters.To.Add(-30 * 24 * time.Hour)
	}
	if filters.From.After(filters.To) {
		return Summary{}, fmt.Errorf("%w: from must not be after to", shared.ErrValidation)
	}
	if filters.To.Sub(filters.From) > maxSummarySpan {
		return Summary{}, fmt.Errorf("%w: summary range too large", shared.ErrValidation)
	}
	if filters.Window == "" {
		filters.Window = WindowDay
	}
	rows, err := s.repo.Summary(ctx, filters)
	if err != nil {
		return Summary{}, fmt.Errorf("audit: summary: %w", err)
	}
	if rows == nil {
		rows = []SummaryRow{}
	}
	return Summary{From: filters.From, To: filters.To, Window: filters.Window, Rows: rows}, nil
}
