package scheduling

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"insights-backend/internal/shared/telemetry"
	"insights-backend/internal/taskqueue"
)

// Scheduler turns schedule definitions into queued tasks. It owns no
// business logic: each tick only submits a task with the definition's stable
// job id, so a tick that fires while the previous task is still pending
// replaces it instead of piling up.
type Scheduler struct {
	Queue *taskqueue.Queue

	cron *cron.Cron
}

// NewScheduler constructs a Scheduler.
func NewScheduler(queue *taskqueue.Queue) *Scheduler {
	return &Scheduler{
		Queue: queue,
		cron:  cron.New(),
	}
}

// Register adds definitions to the cron runner.
func (s *Scheduler) Register(defs []Definition) error {
	if err := Validate(defs); err != nil {
		return err
	}
	for _, def := range defs {
		def := def
		_, err := s.cron.AddFunc(def.Spec, func() {
			task := taskqueue.Task{
				ID:       def.JobID,
				Name:     def.Task,
				Lane:     def.Lane,
				Priority: def.Priority,
			}
			if err := s.Queue.Enqueue(task); err != nil {
				telemetry.Error("schedule.enqueue", map[string]any{
					"job_id": def.JobID,
					"error":  err.Error(),
				})
				return
			}
			telemetry.Info("schedule.triggered", map[string]any{
				"job_id": def.JobID,
				"task":   def.Task,
				"lane":   def.Lane,
			})
		})
		if err != nil {
			return fmt.Errorf("register schedule %q: %w", def.JobID, err)
		}
	}
	return nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron runner, waiting for in-flight trigger functions.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
