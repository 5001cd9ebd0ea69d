package companies

import (
	"context"
	"sort"
	"time"
)

// Selection describes which companies an analysis run should cover.
type Selection struct {
	// IDs restricts the run to explicit companies. Empty means every
	// monitored company.
	IDs []string
	// ForceRerun disables the freshness cut so recently analyzed companies
	// are included again.
	ForceRerun bool
}

// Selector resolves a Selection into the ordered worklist for a run.
type Selector struct {
	Repo Repo
	// FreshnessWindow excludes companies analyzed more recently than this.
	// Zero falls back to 24h.
	FreshnessWindow time.Duration
	// Now is a clock seam for tests. Nil uses time.Now.
	Now func() time.Time
}

// Select returns the companies to analyze, ordered by priority tier then
// staleness. Explicit IDs that do not resolve to eligible companies fail the
// whole selection. An empty result is valid.
func (s *Selector) Select(ctx context.Context, sel Selection) ([]Company, error) {
	filter := ListFilter{IDs: sel.IDs}
	if len(sel.IDs) == 0 && !sel.ForceRerun {
		window := s.FreshnessWindow
		if window <= 0 {
			window = 24 * time.Hour
		}
		filter.AnalyzedBefore = s.now().Add(-window)
	}

	matched, err := s.Repo.ListMonitored(ctx, filter)
	if err != nil {
		return nil, err
	}

	if len(sel.IDs) > 0 {
		found := make(map[string]bool, len(matched))
		for _, company := range matched {
			found[company.ID] = true
		}
		var missing []string
		for _, id := range sel.IDs {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, &UnknownIDsError{IDs: missing}
		}
	}
	return matched, nil
}

func (s *Selector) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
