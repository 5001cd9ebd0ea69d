package companies

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores companies in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Company
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Company)}
}

// Create stores the company.
func (r *MemoryRepo) Create(ctx context.Context, company Company) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[company.ID] = company
	return nil
}

// GetByID returns a company by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, companyID string) (Company, error) {
	if err := ctx.Err(); err != nil {
		return Company{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	company, ok := r.byID[companyID]
	if !ok {
		return Company{}, ErrNotFound
	}
	return company, nil
}

// ListMonitored returns eligible companies matching the filter.
func (r *MemoryRepo) ListMonitored(ctx context.Context, filter ListFilter) ([]Company, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var wanted map[string]bool
	if len(filter.IDs) > 0 {
		wanted = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			wanted[id] = true
		}
	}

	out := make([]Company, 0)
	for _, company := range r.byID {
		if !company.IsActive || !company.MonitoringOn {
			continue
		}
		if wanted != nil && !wanted[company.ID] {
			continue
		}
		if !filter.AnalyzedBefore.IsZero() && company.LastAnalyzedAt != nil && !company.LastAnalyzedAt.Before(filter.AnalyzedBefore) {
			continue
		}
		out = append(out, company)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].PriorityTier != out[j].PriorityTier {
			return out[i].PriorityTier > out[j].PriorityTier
		}
		li, lj := out[i].LastAnalyzedAt, out[j].LastAnalyzedAt
		if li == nil && lj == nil {
			return out[i].ID < out[j].ID
		}
		if li == nil {
			return true
		}
		if lj == nil {
			return false
		}
		return li.Before(*lj)
	})
	return out, nil
}

// MarkAnalyzed records a completed analysis for a company.
func (r *MemoryRepo) MarkAnalyzed(ctx context.Context, companyID string, at time.Time, insights, highPriority int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	company, ok := r.byID[companyID]
	if !ok {
		return ErrNotFound
	}
	t := at
	company.LastAnalyzedAt = &t
	company.TotalInsights += insights
	company.HighPriorityInsights += highPriority
	company.UpdatedAt = time.Now().UTC()
	r.byID[companyID] = company
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
