package runs

import (
	"context"
	"time"
)

// RunRepo defines persistence operations for analysis runs.
type RunRepo interface {
	Create(ctx context.Context, run AnalysisRun) error
	GetByID(ctx context.Context, runID string) (AnalysisRun, error)
	List(ctx context.Context, limit, offset int) ([]AnalysisRun, error)
	// MarkRunning transitions pending -> running and records the worklist
	// size. Any other current status returns ErrAlreadyStarted.
	MarkRunning(ctx context.Context, runID string, startedAt time.Time, totalCompanies int) error
	// AddProgress atomically folds a company task's counters into the run.
	AddProgress(ctx context.Context, runID string, delta Progress) error
	// Finish moves a pending or running run to a terminal status. Terminal
	// runs are left untouched and report ErrNotCancellable, so a cancel and
	// a natural completion can race safely.
	Finish(ctx context.Context, runID, status string, completedAt time.Time, errorMessage *string) error
	// DeleteOlderThan removes terminal runs (and their results) created
	// before the cutoff. Returns how many runs were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Stats(ctx context.Context, recent int) (Stats, error)
}

// ResultRepo defines persistence operations for per-company results.
type ResultRepo interface {
	// Create inserts the processing marker row for (run, company).
	Create(ctx context.Context, result AnalysisResult) error
	// Finalize writes the terminal fields for (run, company) exactly once.
	Finalize(ctx context.Context, result AnalysisResult) error
	ListByRun(ctx context.Context, runID string) ([]AnalysisResult, error)
}
