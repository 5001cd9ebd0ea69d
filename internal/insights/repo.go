package insights

import "context"

// Repo defines persistence operations for insights.
type Repo interface {
	// InsertIfAbsent stores the insight unless the company already has one
	// with the same content hash. It reports whether a row was inserted;
	// a duplicate is not an error.
	InsertIfAbsent(ctx context.Context, insight Insight) (bool, error)
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]Insight, error)
}
