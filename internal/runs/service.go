package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"insights-backend/internal/companies"
	"insights-backend/internal/shared/metrics"
	"insights-backend/internal/shared/telemetry"
)

// Enqueuer hands run execution to the task queue. Nil falls back to an
// in-process goroutine.
type Enqueuer interface {
	EnqueueRun(ctx context.Context, runID string) error
}

// Service owns the analysis run lifecycle.
type Service struct {
	Runs     RunRepo
	Results  ResultRepo
	Selector *companies.Selector
	Executor *Executor
	Queue    Enqueuer
	Now      func() time.Time
}

// Start creates a pending run and schedules its execution.
func (s *Service) Start(ctx context.Context, runType string, cfg Config, triggeredBy string) (AnalysisRun, error) {
	switch runType {
	case TypeScheduled, TypeManual, TypeTriggered:
	case "":
		runType = TypeManual
	default:
		return AnalysisRun{}, fmt.Errorf("unknown run type %q", runType)
	}

	// Explicit company IDs are validated before the run exists so a bad
	// request fails synchronously instead of creating a run doomed to fail.
	if len(cfg.CompanyIDs) > 0 {
		if _, err := s.Selector.Select(ctx, companies.Selection{
			IDs:        cfg.CompanyIDs,
			ForceRerun: cfg.ForceRerun,
		}); err != nil {
			return AnalysisRun{}, err
		}
	}

	run := AnalysisRun{
		ID:          uuid.NewString(),
		RunType:     runType,
		Status:      StatusPending,
		Config:      cfg,
		TriggeredBy: triggeredBy,
		CreatedAt:   s.now(),
	}
	if err := s.Runs.Create(ctx, run); err != nil {
		return AnalysisRun{}, err
	}
	telemetry.Info("run.created", map[string]any{
		"run_id":       run.ID,
		"run_type":     runType,
		"triggered_by": triggeredBy,
		"company_ids":  len(cfg.CompanyIDs),
		"force_rerun":  cfg.ForceRerun,
	})

	if s.Queue != nil {
		if err := s.Queue.EnqueueRun(ctx, run.ID); err != nil {
			return AnalysisRun{}, err
		}
	} else {
		go func() {
			if err := s.Execute(context.Background(), run.ID); err != nil {
				telemetry.Error("run.execute", map[string]any{
					"run_id": run.ID,
					"error":  sanitizeError(err),
				})
			}
		}()
	}
	return run, nil
}

// Execute drives a pending run to a terminal status. Redelivered executions
// of already-started runs are no-ops, which keeps at-least-once task
// delivery safe.
func (s *Service) Execute(ctx context.Context, runID string) error {
	run, err := s.Runs.GetByID(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != StatusPending {
		telemetry.Info("run.execute_skipped", map[string]any{
			"run_id": runID,
			"status": run.Status,
		})
		return nil
	}

	worklist, err := s.Selector.Select(ctx, companies.Selection{
		IDs:        run.Config.CompanyIDs,
		ForceRerun: run.Config.ForceRerun,
	})
	if err != nil {
		var unknown *companies.UnknownIDsError
		if errors.As(err, &unknown) {
			return s.fail(ctx, runID, err)
		}
		return s.fail(ctx, runID, fmt.Errorf("company selection: %w", err))
	}

	startedAt := s.now()
	if err := s.Runs.MarkRunning(ctx, runID, startedAt, len(worklist)); err != nil {
		if errors.Is(err, ErrAlreadyStarted) {
			return nil
		}
		return err
	}
	metrics.IncRunStarted()
	telemetry.Info("run.started", map[string]any{
		"run_id":          runID,
		"total_companies": len(worklist),
	})

	executor := *s.Executor
	if run.Config.BatchSize > 0 {
		executor.BatchSize = run.Config.BatchSize
	}
	cancelled, execErr := executor.Execute(ctx, runID, worklist)
	completedAt := s.now()

	if cancelled {
		// Cancel already wrote the terminal status; nothing left to do.
		metrics.IncRunCancelled()
		s.observeDuration(startedAt, completedAt)
		return nil
	}
	if execErr != nil {
		if ctx.Err() != nil {
			// The worker context died (soft time limit, shutdown). Write the
			// terminal status on a detached context so the run does not stay
			// in running forever; a redelivered execution would no-op.
			return s.fail(context.WithoutCancel(ctx), runID, fmt.Errorf("execution interrupted: %w", execErr))
		}
		return s.fail(ctx, runID, execErr)
	}

	// Per-company failures never fail the run.
	if err := s.Runs.Finish(ctx, runID, StatusCompleted, completedAt, nil); err != nil {
		if errors.Is(err, ErrNotCancellable) {
			// Lost the race against a cancel; the cancel wins.
			metrics.IncRunCancelled()
			return nil
		}
		return err
	}
	metrics.IncRunCompleted()
	s.observeDuration(startedAt, completedAt)

	final, err := s.Runs.GetByID(ctx, runID)
	if err == nil {
		telemetry.Info("run.completed", map[string]any{
			"run_id":    runID,
			"total":     final.TotalCompanies,
			"processed": final.ProcessedCompanies,
			"failed":    final.FailedCompanies,
			"insights":  final.InsightsGenerated,
		})
	}
	return nil
}

// Cancel stops a pending or running run. The executor observes the status at
// the next batch boundary; in-flight company tasks finish.
func (s *Service) Cancel(ctx context.Context, runID string) (AnalysisRun, error) {
	msg := CancelledByUser
	if err := s.Runs.Finish(ctx, runID, StatusCancelled, s.now(), &msg); err != nil {
		return AnalysisRun{}, err
	}
	telemetry.Info("run.cancel_requested", map[string]any{"run_id": runID})
	return s.Runs.GetByID(ctx, runID)
}

// Get returns a run by ID.
func (s *Service) Get(ctx context.Context, runID string) (AnalysisRun, error) {
	if runID == "" {
		return AnalysisRun{}, errors.New("runID is required")
	}
	return s.Runs.GetByID(ctx, runID)
}

// List returns runs newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]AnalysisRun, error) {
	return s.Runs.List(ctx, limit, offset)
}

// Results returns the per-company results for a run.
func (s *Service) ResultsForRun(ctx context.Context, runID string) ([]AnalysisResult, error) {
	if _, err := s.Runs.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	return s.Results.ListByRun(ctx, runID)
}

// Stats aggregates run history.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.Runs.Stats(ctx, 10)
}

// Cleanup removes terminal runs older than the retention window.
func (s *Service) Cleanup(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().Add(-retention)
	removed, err := s.Runs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	telemetry.Info("run.cleanup", map[string]any{
		"cutoff":  cutoff,
		"removed": removed,
	})
	return removed, nil
}

func (s *Service) fail(ctx context.Context, runID string, cause error) error {
	msg := sanitizeError(cause)
	if err := s.Runs.Finish(ctx, runID, StatusFailed, s.now(), &msg); err != nil {
		if errors.Is(err, ErrNotCancellable) {
			return nil
		}
		return err
	}
	metrics.IncRunFailed()
	telemetry.Error("run.failed", map[string]any{
		"run_id": runID,
		"error":  msg,
	})
	return nil
}

func (s *Service) observeDuration(startedAt, completedAt time.Time) {
	metrics.ObserveRunDurationMs(float64(completedAt.Sub(startedAt).Milliseconds()))
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
