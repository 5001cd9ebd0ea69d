package jobs

import (
	"context"
	"fmt"

	"insights-backend/internal/taskqueue"
)

// TaskExecuteRun drives one pending analysis run to completion.
const TaskExecuteRun = "analysis.run"

// RunEnqueuer submits run executions to the task queue.
type RunEnqueuer struct {
	Queue    *taskqueue.Queue
	Lane     string
	Priority int
}

// EnqueueRun queues one execution for the run. The run id doubles as the job
// id, so a redundant trigger for the same run replaces the pending task
// instead of duplicating it.
func (e *RunEnqueuer) EnqueueRun(_ context.Context, runID string) error {
	payload, err := EncodeRunPayload(RunPayload{RunID: runID})
	if err != nil {
		return fmt.Errorf("encode run payload: %w", err)
	}
	lane := e.Lane
	if lane == "" {
		lane = taskqueue.LaneHigh
	}
	priority := e.Priority
	if priority == 0 {
		priority = 7
	}
	return e.Queue.Enqueue(taskqueue.Task{
		ID:       "run:" + runID,
		Name:     TaskExecuteRun,
		Lane:     lane,
		Priority: priority,
		Payload:  payload,
	})
}
