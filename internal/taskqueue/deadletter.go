package taskqueue

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrDeadLetterNotFound indicates the dead-letter entry does not exist.
var ErrDeadLetterNotFound = errors.New("dead-letter entry not found")

// DefaultDeadLetterTTL bounds how long exhausted tasks stay inspectable.
const DefaultDeadLetterTTL = 7 * 24 * time.Hour

// DeadLetter is an exhausted task held for operator inspection.
type DeadLetter struct {
	Task      Task
	LastError string
	DeadAt    time.Time
	ExpiresAt time.Time
}

// DeadLetterQueue holds exhausted tasks until their TTL lapses or an
// operator replays them. Tasks are never silently dropped before expiry.
type DeadLetterQueue struct {
	mu      sync.Mutex
	entries map[string]DeadLetter
	ttl     time.Duration
	now     func() time.Time
}

// NewDeadLetterQueue constructs a DeadLetterQueue. Zero ttl uses the default.
func NewDeadLetterQueue(ttl time.Duration) *DeadLetterQueue {
	if ttl <= 0 {
		ttl = DefaultDeadLetterTTL
	}
	return &DeadLetterQueue{
		entries: make(map[string]DeadLetter),
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Add records an exhausted task. The entry key is the task's job id, or its
// name plus dead time when the task has no stable id.
func (d *DeadLetterQueue) Add(task Task, lastError string) {
	now := d.now()
	key := task.ID
	if key == "" {
		key = task.Name + "@" + now.Format(time.RFC3339Nano)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[key] = DeadLetter{
		Task:      task,
		LastError: lastError,
		DeadAt:    now,
		ExpiresAt: now.Add(d.ttl),
	}
}

// List returns unexpired entries, oldest first.
func (d *DeadLetterQueue) List() []DeadLetter {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DeadLetter, 0, len(d.entries))
	for _, entry := range d.entries {
		if entry.ExpiresAt.After(now) {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DeadAt.Before(out[j].DeadAt)
	})
	return out
}

// Take removes and returns the entry for replay.
func (d *DeadLetterQueue) Take(key string) (DeadLetter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entry, ok := d.entries[key]
	if !ok || !entry.ExpiresAt.After(d.now()) {
		return DeadLetter{}, ErrDeadLetterNotFound
	}
	delete(d.entries, key)
	return entry, nil
}

// PurgeExpired drops entries past their TTL and returns how many were
// removed.
func (d *DeadLetterQueue) PurgeExpired() int {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	removed := 0
	for key, entry := range d.entries {
		if !entry.ExpiresAt.After(now) {
			delete(d.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of unexpired entries.
func (d *DeadLetterQueue) Len() int {
	return len(d.List())
}
