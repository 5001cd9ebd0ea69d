package companies

import (
	"context"
	"time"
)

// ListFilter narrows candidate selection for an analysis run.
type ListFilter struct {
	// IDs restricts the selection to these companies. Empty means all
	// monitored companies.
	IDs []string
	// AnalyzedBefore excludes companies analyzed at or after this time.
	// Zero disables the freshness cut.
	AnalyzedBefore time.Time
}

// Repo defines persistence operations for companies.
type Repo interface {
	Create(ctx context.Context, company Company) error
	GetByID(ctx context.Context, companyID string) (Company, error)
	// ListMonitored returns active, monitoring-enabled companies matching the
	// filter, ordered by priority tier descending then last-analyzed ascending
	// with never-analyzed companies first.
	ListMonitored(ctx context.Context, filter ListFilter) ([]Company, error)
	// MarkAnalyzed records a completed analysis and bumps the insight rollups.
	MarkAnalyzed(ctx context.Context, companyID string, at time.Time, insights, highPriority int) error
}
