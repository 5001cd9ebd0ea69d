package taskqueue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Dequeue after Close.
var ErrClosed = errors.New("task queue closed")

// Queue is an in-process priority queue with three lanes. Within a lane,
// tasks order by priority descending then enqueue order. Tasks with a stable
// job id replace a pending task with the same id.
type Queue struct {
	mu      sync.Mutex
	lanes   map[string]*laneHeap
	delayed []*queueItem
	byJobID map[string]*queueItem
	seq     uint64
	closed  bool
	wake    chan struct{}
	now     func() time.Time
}

type queueItem struct {
	task       Task
	readyAt    time.Time
	seq        uint64
	superseded bool
	index      int
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	return &Queue{
		lanes: map[string]*laneHeap{
			LaneHigh:    {},
			LaneDefault: {},
			LaneLow:     {},
		},
		byJobID: make(map[string]*queueItem),
		wake:    make(chan struct{}, 1),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue adds a task, replacing a pending task with the same job id.
func (q *Queue) Enqueue(task Task) error {
	return q.enqueueAfter(task, 0)
}

// EnqueueAfter adds a task that becomes ready after the delay.
func (q *Queue) EnqueueAfter(task Task, delay time.Duration) error {
	return q.enqueueAfter(task, delay)
}

func (q *Queue) enqueueAfter(task Task, delay time.Duration) error {
	task.Lane = normalizeLane(task.Lane)
	task.Priority = clampPriority(task.Priority)
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = q.nowFunc()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}

	if task.ID != "" {
		if prev, ok := q.byJobID[task.ID]; ok {
			// Last write wins: the old pending task never runs.
			prev.superseded = true
			delete(q.byJobID, task.ID)
		}
	}

	q.seq++
	item := &queueItem{task: task, seq: q.seq}
	if task.ID != "" {
		q.byJobID[task.ID] = item
	}
	if delay > 0 {
		item.readyAt = q.nowFunc().Add(delay)
		q.delayed = append(q.delayed, item)
	} else {
		heap.Push(q.lanes[task.Lane], item)
	}
	q.signal()
	return nil
}

// Dequeue blocks until a task is ready, the context ends, or the queue
// closes. Lanes drain high before default before low.
func (q *Queue) Dequeue(ctx context.Context) (Task, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Task{}, ErrClosed
		}
		q.promoteDue()
		if item, ok := q.pop(); ok {
			task := item.task
			q.mu.Unlock()
			return task, nil
		}
		wait := q.nextDelay()
		q.mu.Unlock()

		var timer *time.Timer
		var due <-chan time.Time
		if wait > 0 {
			timer = time.NewTimer(wait)
			due = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return Task{}, ctx.Err()
		case <-q.wake:
			if timer != nil {
				timer.Stop()
			}
		case <-due:
		}
	}
}

// Pending reports whether a task with the job id is waiting to run.
func (q *Queue) Pending(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byJobID[jobID]
	return ok
}

// Len returns the number of pending tasks across all lanes.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.delayed)
	for _, lane := range q.lanes {
		for _, item := range *lane {
			if !item.superseded {
				n++
			}
		}
	}
	for _, item := range q.delayed {
		if item.superseded {
			n--
		}
	}
	return n
}

// Close stops the queue; blocked Dequeue calls return ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	close(q.wake)
}

func (q *Queue) promoteDue() {
	if len(q.delayed) == 0 {
		return
	}
	now := q.nowFunc()
	remaining := q.delayed[:0]
	for _, item := range q.delayed {
		if item.superseded {
			continue
		}
		if !item.readyAt.After(now) {
			heap.Push(q.lanes[item.task.Lane], item)
		} else {
			remaining = append(remaining, item)
		}
	}
	q.delayed = remaining
}

func (q *Queue) pop() (*queueItem, bool) {
	for _, lane := range []string{LaneHigh, LaneDefault, LaneLow} {
		h := q.lanes[lane]
		for h.Len() > 0 {
			item := heap.Pop(h).(*queueItem)
			if item.superseded {
				continue
			}
			if item.task.ID != "" && q.byJobID[item.task.ID] == item {
				delete(q.byJobID, item.task.ID)
			}
			return item, true
		}
	}
	return nil, false
}

func (q *Queue) nextDelay() time.Duration {
	var next time.Time
	for _, item := range q.delayed {
		if item.superseded {
			continue
		}
		if next.IsZero() || item.readyAt.Before(next) {
			next = item.readyAt
		}
	}
	if next.IsZero() {
		return 0
	}
	wait := next.Sub(q.nowFunc())
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) nowFunc() time.Time {
	if q.now != nil {
		return q.now()
	}
	return time.Now().UTC()
}

// laneHeap orders items by priority descending, then enqueue order.
type laneHeap []*queueItem

func (h laneHeap) Len() int { return len(h) }

func (h laneHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority > h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h laneHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *laneHeap) Push(x any) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *laneHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
