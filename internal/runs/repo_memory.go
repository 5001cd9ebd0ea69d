package runs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRunRepo stores runs in memory and is safe for concurrent use.
type MemoryRunRepo struct {
	mu   sync.RWMutex
	byID map[string]AnalysisRun
}

// NewMemoryRunRepo constructs a MemoryRunRepo.
func NewMemoryRunRepo() *MemoryRunRepo {
	return &MemoryRunRepo{byID: make(map[string]AnalysisRun)}
}

// Create stores the run.
func (r *MemoryRunRepo) Create(ctx context.Context, run AnalysisRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[run.ID] = run
	return nil
}

// GetByID returns a run by its ID.
func (r *MemoryRunRepo) GetByID(ctx context.Context, runID string) (AnalysisRun, error) {
	if err := ctx.Err(); err != nil {
		return AnalysisRun{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.byID[runID]
	if !ok {
		return AnalysisRun{}, ErrNotFound
	}
	return run, nil
}

// List returns runs newest-first with limit/offset.
func (r *MemoryRunRepo) List(ctx context.Context, limit, offset int) ([]AnalysisRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	out := make([]AnalysisRun, 0, len(r.byID))
	for _, run := range r.byID {
		out = append(out, run)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []AnalysisRun{}, nil
	}
	end := len(out)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], nil
}

// MarkRunning transitions pending -> running.
func (r *MemoryRunRepo) MarkRunning(ctx context.Context, runID string, startedAt time.Time, totalCompanies int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[runID]
	if !ok {
		return ErrNotFound
	}
	if run.Status != StatusPending {
		return ErrAlreadyStarted
	}
	t := startedAt
	run.Status = StatusRunning
	run.StartedAt = &t
	run.TotalCompanies = totalCompanies
	run.UpdatedAt = time.Now().UTC()
	r.byID[runID] = run
	return nil
}

// AddProgress folds counters into the run under the repo lock.
func (r *MemoryRunRepo) AddProgress(ctx context.Context, runID string, delta Progress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[runID]
	if !ok {
		return ErrNotFound
	}
	run.ProcessedCompanies += delta.Processed
	run.FailedCompanies += delta.Failed
	run.InsightsGenerated += delta.InsightsGenerated
	run.HighPriorityInsights += delta.HighPriorityInsights
	run.ErrorCount += delta.Errors
	run.UpdatedAt = time.Now().UTC()
	r.byID[runID] = run
	return nil
}

// Finish moves a non-terminal run to a terminal status.
func (r *MemoryRunRepo) Finish(ctx context.Context, runID, status string, completedAt time.Time, errorMessage *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.byID[runID]
	if !ok {
		return ErrNotFound
	}
	if run.Terminal() {
		return ErrNotCancellable
	}
	t := completedAt
	run.Status = status
	run.CompletedAt = &t
	if run.StartedAt != nil {
		secs := int(completedAt.Sub(*run.StartedAt).Seconds())
		run.DurationSeconds = &secs
	}
	if errorMessage != nil {
		run.ErrorMessage = errorMessage
	}
	run.UpdatedAt = time.Now().UTC()
	r.byID[runID] = run
	return nil
}

// DeleteOlderThan removes terminal runs created before the cutoff.
func (r *MemoryRunRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, run := range r.byID {
		if run.Terminal() && run.CreatedAt.Before(cutoff) {
			delete(r.byID, id)
			removed++
		}
	}
	return removed, nil
}

// Stats aggregates run history.
func (r *MemoryRunRepo) Stats(ctx context.Context, recent int) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats Stats
	var durationSum float64
	var durationCount int
	all := make([]AnalysisRun, 0, len(r.byID))
	for _, run := range r.byID {
		all = append(all, run)
		stats.TotalRuns++
		stats.InsightsTotal += run.InsightsGenerated
		switch run.Status {
		case StatusCompleted:
			stats.CompletedRuns++
		case StatusFailed:
			stats.FailedRuns++
		case StatusCancelled:
			stats.CancelledRuns++
		}
		if run.DurationSeconds != nil {
			durationSum += float64(*run.DurationSeconds)
			durationCount++
		}
	}
	if durationCount > 0 {
		stats.AvgDurationSecs = durationSum / float64(durationCount)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if recent > 0 && recent < len(all) {
		all = all[:recent]
	}
	stats.RecentRuns = all
	return stats, nil
}

var _ RunRepo = (*MemoryRunRepo)(nil)

// MemoryResultRepo stores per-company results in memory.
type MemoryResultRepo struct {
	mu    sync.RWMutex
	byKey map[string]AnalysisResult // runID + "\x00" + companyID
}

// NewMemoryResultRepo constructs a MemoryResultRepo.
func NewMemoryResultRepo() *MemoryResultRepo {
	return &MemoryResultRepo{byKey: make(map[string]AnalysisResult)}
}

// Create inserts the processing marker row. An existing row for the pair is
// kept, matching the database unique constraint.
func (r *MemoryResultRepo) Create(ctx context.Context, result AnalysisResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := result.RunID + "\x00" + result.CompanyID
	if _, ok := r.byKey[key]; ok {
		return nil
	}
	r.byKey[key] = result
	return nil
}

// Finalize writes the terminal fields for (run, company).
func (r *MemoryResultRepo) Finalize(ctx context.Context, result AnalysisResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := result.RunID + "\x00" + result.CompanyID
	existing, ok := r.byKey[key]
	if ok && (existing.Status == ResultCompleted || existing.Status == ResultFailed) {
		return nil
	}
	result.UpdatedAt = time.Now().UTC()
	r.byKey[key] = result
	return nil
}

// ListByRun returns results for a run.
func (r *MemoryResultRepo) ListByRun(ctx context.Context, runID string) ([]AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]AnalysisResult, 0)
	for _, result := range r.byKey {
		if result.RunID == runID {
			out = append(out, result)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompanyID < out[j].CompanyID
	})
	return out, nil
}

var _ ResultRepo = (*MemoryResultRepo)(nil)
