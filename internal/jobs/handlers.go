package jobs

import (
	"context"
	"fmt"
	"time"

	"insights-backend/internal/notify"
	"insights-backend/internal/runs"
	"insights-backend/internal/scheduling"
	"insights-backend/internal/shared/telemetry"
	"insights-backend/internal/taskqueue"
)

// Handlers binds task names to the services that do the work.
type Handlers struct {
	Runs         *runs.Service
	Notifier     *notify.Dispatcher
	DeadLetters  *taskqueue.DeadLetterQueue
	RunRetention time.Duration
}

// Register wires every known task name into the pool.
func (h *Handlers) Register(pool *taskqueue.Pool) {
	pool.Register(TaskExecuteRun, h.executeRun)
	pool.Register(scheduling.TaskDailyAnalysis, h.dailyAnalysis)
	pool.Register(scheduling.TaskQuickScan, h.quickScan)
	pool.Register(scheduling.TaskWeeklyReport, h.weeklyReport)
	pool.Register(scheduling.TaskCleanup, h.cleanup)
}

func (h *Handlers) executeRun(ctx context.Context, task taskqueue.Task) error {
	payload, err := ParseRunPayload(task.Payload)
	if err != nil {
		return err
	}
	if err := h.Runs.Execute(ctx, payload.RunID); err != nil {
		return fmt.Errorf("execute run %s: %w", payload.RunID, err)
	}
	h.notifyRunFinished(ctx, payload.RunID)
	return nil
}

// dailyAnalysis re-analyzes the full monitored roster regardless of how
// recently each company was last processed.
func (h *Handlers) dailyAnalysis(ctx context.Context, task taskqueue.Task) error {
	_, err := h.Runs.Start(ctx, runs.TypeScheduled, runs.Config{ForceRerun: true}, task.ID)
	return err
}

// quickScan starts a run that honors the freshness window, so only companies
// without a recent analysis are picked up.
func (h *Handlers) quickScan(ctx context.Context, task taskqueue.Task) error {
	_, err := h.Runs.Start(ctx, runs.TypeScheduled, runs.Config{}, task.ID)
	return err
}

func (h *Handlers) weeklyReport(ctx context.Context, task taskqueue.Task) error {
	stats, err := h.Runs.Stats(ctx)
	if err != nil {
		return fmt.Errorf("aggregate stats: %w", err)
	}
	if h.Notifier == nil {
		return nil
	}
	return h.Notifier.Publish(ctx, notify.Event{
		Kind:  notify.KindWeeklyReport,
		Title: "Weekly analysis report",
		Body: fmt.Sprintf("runs=%d completed=%d failed=%d cancelled=%d insights=%d avg_duration=%.1fs",
			stats.TotalRuns, stats.CompletedRuns, stats.FailedRuns, stats.CancelledRuns,
			stats.InsightsTotal, stats.AvgDurationSecs),
	})
}

func (h *Handlers) cleanup(ctx context.Context, task taskqueue.Task) error {
	removed, err := h.Runs.Cleanup(ctx, h.RunRetention)
	if err != nil {
		return err
	}
	purged := 0
	if h.DeadLetters != nil {
		purged = h.DeadLetters.PurgeExpired()
	}
	telemetry.Info("jobs.cleanup", map[string]any{
		"runs_removed":        removed,
		"dead_letters_purged": purged,
	})
	return nil
}

// notifyRunFinished publishes a terminal-run event. Best effort: a
// notification failure never fails the task that produced it.
func (h *Handlers) notifyRunFinished(ctx context.Context, runID string) {
	if h.Notifier == nil {
		return
	}
	run, err := h.Runs.Get(ctx, runID)
	if err != nil || !run.Terminal() {
		return
	}
	ev := notify.Event{
		Kind:  notify.KindRunFinished,
		RunID: run.ID,
		Title: fmt.Sprintf("Analysis run %s", run.Status),
		Body: fmt.Sprintf("companies=%d processed=%d failed=%d insights=%d high_priority=%d",
			run.TotalCompanies, run.ProcessedCompanies, run.FailedCompanies,
			run.InsightsGenerated, run.HighPriorityInsights),
	}
	if err := h.Notifier.Publish(ctx, ev); err != nil {
		telemetry.Warn("jobs.notify_run_finished", map[string]any{
			"run_id": runID,
			"error":  err.Error(),
		})
	}
}
