package insights

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores insights in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu        sync.RWMutex
	byID      map[string]Insight
	byContent map[string]bool // companyID + "\x00" + contentHash
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:      make(map[string]Insight),
		byContent: make(map[string]bool),
	}
}

// InsertIfAbsent stores the insight unless its fingerprint already exists for
// the company.
func (r *MemoryRepo) InsertIfAbsent(ctx context.Context, insight Insight) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := insight.CompanyID + "\x00" + insight.ContentHash
	if r.byContent[key] {
		return false, nil
	}
	r.byContent[key] = true
	r.byID[insight.ID] = insight
	return true, nil
}

// ListByCompany returns insights for a company, newest first.
func (r *MemoryRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]Insight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	out := make([]Insight, 0)
	for _, insight := range r.byID {
		if insight.CompanyID == companyID {
			out = append(out, insight)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Insight{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

var _ Repo = (*MemoryRepo)(nil)
