package taskqueue

import (
	"context"
	"testing"
	"time"
)

func mustDequeue(t *testing.T, q *Queue) Task {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	task, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	return task
}

func TestQueueLaneOrdering(t *testing.T) {
	q := NewQueue()
	_ = q.Enqueue(Task{Name: "low", Lane: LaneLow})
	_ = q.Enqueue(Task{Name: "default", Lane: LaneDefault})
	_ = q.Enqueue(Task{Name: "high", Lane: LaneHigh})

	for _, want := range []string{"high", "default", "low"} {
		if got := mustDequeue(t, q).Name; got != want {
			t.Fatalf("got %s, want %s", got, want)
		}
	}
}

func TestQueuePriorityWithinLane(t *testing.T) {
	q := NewQueue()
	_ = q.Enqueue(Task{Name: "p3", Lane: LaneDefault, Priority: 3})
	_ = q.Enqueue(Task{Name: "p9", Lane: LaneDefault, Priority: 9})
	_ = q.Enqueue(Task{Name: "p9-later", Lane: LaneDefault, Priority: 9})
	_ = q.Enqueue(Task{Name: "p0", Lane: LaneDefault, Priority: 0})

	for _, want := range []string{"p9", "p9-later", "p3", "p0"} {
		if got := mustDequeue(t, q).Name; got != want {
			t.Fatalf("got %s, want %s", got, want)
		}
	}
}

func TestQueueStableJobIDReplaces(t *testing.T) {
	q := NewQueue()
	_ = q.Enqueue(Task{ID: "daily-analysis", Name: "first", Lane: LaneDefault})
	_ = q.Enqueue(Task{ID: "daily-analysis", Name: "second", Lane: LaneDefault})

	if !q.Pending("daily-analysis") {
		t.Fatal("job should be pending")
	}
	got := mustDequeue(t, q)
	if got.Name != "second" {
		t.Fatalf("got %s, want the replacing task", got.Name)
	}
	if q.Pending("daily-analysis") {
		t.Fatal("superseded task must not remain pending")
	}

	// The superseded task never surfaces.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if task, err := q.Dequeue(ctx); err == nil {
		t.Fatalf("unexpected task %s from empty queue", task.Name)
	}
}

func TestQueueDelayedTaskBecomesReady(t *testing.T) {
	q := NewQueue()
	_ = q.EnqueueAfter(Task{Name: "later", Lane: LaneDefault}, 30*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatal("task surfaced before its delay elapsed")
	}
	cancel()

	if got := mustDequeue(t, q).Name; got != "later" {
		t.Fatalf("got %s, want later", got)
	}
}

func TestQueueCloseUnblocksDequeue(t *testing.T) {
	q := NewQueue()
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		if err != ErrClosed {
			t.Fatalf("got %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock on Close")
	}
}

func TestQueueUnknownLaneFallsBackToDefault(t *testing.T) {
	q := NewQueue()
	_ = q.Enqueue(Task{Name: "task", Lane: "mystery"})
	if got := mustDequeue(t, q); got.Lane != LaneDefault {
		t.Fatalf("lane = %s, want default", got.Lane)
	}
}
