package taskqueue

import (
	"encoding/json"
	"time"
)

// Queue lanes. Workers drain High before Default before Low.
const (
	LaneHigh    = "high"
	LaneDefault = "default"
	LaneLow     = "low"
)

// Priority bounds for intra-lane ordering.
const (
	MinPriority = 0
	MaxPriority = 10
)

// Task is one unit of queued work.
type Task struct {
	// ID is the stable job id. Periodic triggers reuse the same id so a
	// re-scheduled trigger replaces its pending predecessor instead of
	// duplicating it. Empty means no replacement semantics.
	ID       string
	Name     string
	Lane     string
	Priority int
	Payload  json.RawMessage

	// Attempts counts executions so far.
	Attempts    int
	MaxAttempts int

	// SoftTimeLimit cancels the task's context for graceful cleanup;
	// HardTimeLimit abandons the task outright. Zeros use the pool
	// defaults.
	SoftTimeLimit time.Duration
	HardTimeLimit time.Duration

	EnqueuedAt time.Time
}

func normalizeLane(lane string) string {
	switch lane {
	case LaneHigh, LaneDefault, LaneLow:
		return lane
	}
	return LaneDefault
}

func clampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}
