package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"insights-backend/internal/notify"
	"insights-backend/internal/runs"
	"insights-backend/internal/taskqueue"
)

type captureSink struct {
	events []notify.Event
}

func (s *captureSink) Publish(_ context.Context, ev notify.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func terminalRun(id, status string, createdAt time.Time) runs.AnalysisRun {
	completed := createdAt.Add(time.Minute)
	return runs.AnalysisRun{
		ID:          id,
		RunType:     runs.TypeManual,
		Status:      status,
		CompletedAt: &completed,
		CreatedAt:   createdAt,
	}
}

func TestParseRunPayload(t *testing.T) {
	if _, err := ParseRunPayload(nil); !errors.As(err, &ErrEmptyPayload{}) {
		t.Fatalf("nil payload: %v", err)
	}
	if _, err := ParseRunPayload([]byte("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := ParseRunPayload([]byte(`{"requestId":"req-1"}`)); err == nil {
		t.Fatal("expected missing run id error")
	}
	p, err := ParseRunPayload([]byte(`{"runId":"r1","requestId":"req-1"}`))
	if err != nil {
		t.Fatalf("ParseRunPayload: %v", err)
	}
	if p.RunID != "r1" || p.RequestID != "req-1" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestRunEnqueuerReplacesPendingExecution(t *testing.T) {
	q := taskqueue.NewQueue()
	enq := &RunEnqueuer{Queue: q}

	if err := enq.EnqueueRun(context.Background(), "r1"); err != nil {
		t.Fatalf("EnqueueRun: %v", err)
	}
	if err := enq.EnqueueRun(context.Background(), "r1"); err != nil {
		t.Fatalf("EnqueueRun again: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	task, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if task.ID != "run:r1" || task.Name != TaskExecuteRun {
		t.Fatalf("unexpected task: %+v", task)
	}
	if q.Len() != 0 {
		t.Fatalf("queue len = %d, duplicate trigger must replace not append", q.Len())
	}
}

func TestExecuteRunNotifiesOnTerminalRun(t *testing.T) {
	repo := runs.NewMemoryRunRepo()
	run := terminalRun("r1", runs.StatusCompleted, time.Now().UTC())
	run.TotalCompanies = 3
	run.ProcessedCompanies = 3
	run.InsightsGenerated = 5
	if err := repo.Create(context.Background(), run); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	sink := &captureSink{}
	h := &Handlers{
		Runs:     &runs.Service{Runs: repo, Results: runs.NewMemoryResultRepo()},
		Notifier: notify.NewDispatcher(sink, nil),
	}

	payload, _ := EncodeRunPayload(RunPayload{RunID: "r1"})
	err := h.executeRun(context.Background(), taskqueue.Task{Name: TaskExecuteRun, Payload: payload})
	if err != nil {
		t.Fatalf("executeRun: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Kind != notify.KindRunFinished || ev.RunID != "r1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if !strings.Contains(ev.Body, "insights=5") {
		t.Fatalf("body missing counters: %q", ev.Body)
	}
}

func TestExecuteRunRejectsBadPayload(t *testing.T) {
	h := &Handlers{Runs: &runs.Service{Runs: runs.NewMemoryRunRepo(), Results: runs.NewMemoryResultRepo()}}
	err := h.executeRun(context.Background(), taskqueue.Task{Name: TaskExecuteRun, Payload: []byte(`{}`)})
	if err == nil {
		t.Fatal("expected payload validation error")
	}
}

func TestWeeklyReportPublishesStats(t *testing.T) {
	repo := runs.NewMemoryRunRepo()
	now := time.Now().UTC()
	_ = repo.Create(context.Background(), terminalRun("r1", runs.StatusCompleted, now.Add(-time.Hour)))
	_ = repo.Create(context.Background(), terminalRun("r2", runs.StatusFailed, now.Add(-2*time.Hour)))

	sink := &captureSink{}
	h := &Handlers{
		Runs:     &runs.Service{Runs: repo, Results: runs.NewMemoryResultRepo()},
		Notifier: notify.NewDispatcher(sink, nil),
	}

	if err := h.weeklyReport(context.Background(), taskqueue.Task{ID: "weekly-report"}); err != nil {
		t.Fatalf("weeklyReport: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	if sink.events[0].Kind != notify.KindWeeklyReport {
		t.Fatalf("kind = %q", sink.events[0].Kind)
	}
	if !strings.Contains(sink.events[0].Body, "completed=1") || !strings.Contains(sink.events[0].Body, "failed=1") {
		t.Fatalf("body missing stats: %q", sink.events[0].Body)
	}
}

func TestCleanupRemovesOldRunsAndDeadLetters(t *testing.T) {
	repo := runs.NewMemoryRunRepo()
	now := time.Now().UTC()
	_ = repo.Create(context.Background(), terminalRun("old", runs.StatusCompleted, now.Add(-100*24*time.Hour)))
	_ = repo.Create(context.Background(), terminalRun("fresh", runs.StatusCompleted, now.Add(-time.Hour)))

	dlq := taskqueue.NewDeadLetterQueue(time.Nanosecond)
	dlq.Add(taskqueue.Task{ID: "stale", Name: "doomed"}, "boom")
	time.Sleep(time.Millisecond)

	h := &Handlers{
		Runs:         &runs.Service{Runs: repo, Results: runs.NewMemoryResultRepo()},
		DeadLetters:  dlq,
		RunRetention: 90 * 24 * time.Hour,
	}

	if err := h.cleanup(context.Background(), taskqueue.Task{ID: "nightly-cleanup"}); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), "old"); !errors.Is(err, runs.ErrNotFound) {
		t.Fatal("old run should be removed")
	}
	if _, err := repo.GetByID(context.Background(), "fresh"); err != nil {
		t.Fatal("fresh run should survive")
	}
	if dlq.Len() != 0 {
		t.Fatal("expired dead letters should be purged")
	}
}
