package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"insights-backend/internal/shared/metrics"
	"insights-backend/internal/shared/telemetry"
)

// HandlerFunc executes one task. A returned error triggers the
// retry/dead-letter machinery; it must respect ctx cancellation for soft time
// limits.
type HandlerFunc func(ctx context.Context, task Task) error

// Pool defaults.
const (
	DefaultConcurrency   = 4
	DefaultMaxAttempts   = 3
	DefaultSoftTimeLimit = 55 * time.Minute
	DefaultHardTimeLimit = 60 * time.Minute
	defaultRetryBase     = 2 * time.Second
	defaultRetryCap      = 5 * time.Minute
)

// Pool executes queued tasks with bounded concurrency. Task failures retry
// with exponential backoff up to the task's attempt budget, then dead-letter.
type Pool struct {
	Queue       *Queue
	DeadLetters *DeadLetterQueue

	Concurrency   int
	MaxAttempts   int
	SoftTimeLimit time.Duration
	HardTimeLimit time.Duration
	RetryBase     time.Duration
	RetryCap      time.Duration

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// Register binds a handler to a task name. Registering an existing name
// replaces the handler.
func (p *Pool) Register(name string, handler HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handlers == nil {
		p.handlers = make(map[string]HandlerFunc)
	}
	p.handlers[name] = handler
}

// Run consumes tasks until the context ends or the queue closes.
func (p *Pool) Run(ctx context.Context) {
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				task, err := p.Queue.Dequeue(ctx)
				if err != nil {
					return
				}
				p.execute(ctx, worker, task)
			}
		}(i)
	}
	wg.Wait()
}

// Replay re-enqueues a dead-lettered task with a fresh attempt budget.
func (p *Pool) Replay(key string) (Task, error) {
	entry, err := p.DeadLetters.Take(key)
	if err != nil {
		return Task{}, err
	}
	task := entry.Task
	task.Attempts = 0
	if err := p.Queue.Enqueue(task); err != nil {
		return Task{}, err
	}
	telemetry.Info("task.replayed", map[string]any{
		"task": task.Name,
		"id":   task.ID,
	})
	return task, nil
}

func (p *Pool) execute(ctx context.Context, worker int, task Task) {
	p.mu.RLock()
	handler, ok := p.handlers[task.Name]
	p.mu.RUnlock()
	if !ok {
		p.deadLetter(task, fmt.Errorf("no handler registered for %q", task.Name))
		return
	}

	task.Attempts++
	metrics.IncTaskExecuted()

	soft := task.SoftTimeLimit
	if soft <= 0 {
		soft = p.SoftTimeLimit
	}
	if soft <= 0 {
		soft = DefaultSoftTimeLimit
	}
	hard := task.HardTimeLimit
	if hard <= 0 {
		hard = p.HardTimeLimit
	}
	if hard <= 0 {
		hard = DefaultHardTimeLimit
	}
	if hard < soft {
		hard = soft
	}

	// The soft ceiling cancels the task context so the handler can wind
	// down; the hard ceiling abandons the handler outright.
	taskCtx, cancel := context.WithTimeout(ctx, soft)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("task panic: %v", r)
			}
		}()
		done <- handler(taskCtx, task)
	}()

	hardTimer := time.NewTimer(hard)
	defer hardTimer.Stop()

	var err error
	select {
	case err = <-done:
	case <-hardTimer.C:
		err = fmt.Errorf("task exceeded hard time limit %s", hard)
		telemetry.Error("task.abandoned", map[string]any{
			"task":   task.Name,
			"id":     task.ID,
			"worker": worker,
			"limit":  hard.String(),
		})
	}
	if err == nil {
		telemetry.Info("task.completed", map[string]any{
			"task":     task.Name,
			"id":       task.ID,
			"worker":   worker,
			"attempts": task.Attempts,
			"lane":     task.Lane,
		})
		return
	}

	metrics.IncTaskFailed()
	maxAttempts := task.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = p.MaxAttempts
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if task.Attempts >= maxAttempts {
		p.deadLetter(task, err)
		return
	}

	delay := p.retryDelay(task.Attempts)
	if enqueueErr := p.Queue.EnqueueAfter(task, delay); enqueueErr != nil {
		if errors.Is(enqueueErr, ErrClosed) {
			p.deadLetter(task, err)
			return
		}
		telemetry.Error("task.requeue", map[string]any{
			"task":  task.Name,
			"id":    task.ID,
			"error": enqueueErr.Error(),
		})
		return
	}
	metrics.IncTaskRetried()
	telemetry.Warn("task.retrying", map[string]any{
		"task":     task.Name,
		"id":       task.ID,
		"attempts": task.Attempts,
		"delay":    delay.String(),
		"error":    err.Error(),
	})
}

func (p *Pool) retryDelay(attempt int) time.Duration {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.RetryBase
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = defaultRetryBase
	}
	policy.MaxInterval = p.RetryCap
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = defaultRetryCap
	}
	policy.MaxElapsedTime = 0
	policy.Reset()
	delay := policy.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = policy.NextBackOff()
	}
	return delay
}

func (p *Pool) deadLetter(task Task, cause error) {
	p.DeadLetters.Add(task, cause.Error())
	metrics.IncTaskDeadLettered()
	telemetry.Error("task.dead_lettered", map[string]any{
		"task":     task.Name,
		"id":       task.ID,
		"attempts": task.Attempts,
		"error":    cause.Error(),
	})
}
