package taskqueue

import (
	"testing"
	"time"
)

func TestDeadLetterTTLExpiry(t *testing.T) {
	dlq := NewDeadLetterQueue(time.Hour)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	dlq.now = func() time.Time { return now }

	dlq.Add(Task{ID: "t1", Name: "cleanup"}, "boom")
	if dlq.Len() != 1 {
		t.Fatalf("len = %d, want 1", dlq.Len())
	}

	now = now.Add(2 * time.Hour)
	if dlq.Len() != 0 {
		t.Fatal("expired entry still listed")
	}
	if removed := dlq.PurgeExpired(); removed != 1 {
		t.Fatalf("purged = %d, want 1", removed)
	}
	if _, err := dlq.Take("t1"); err != ErrDeadLetterNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeadLetterTakeRemovesEntry(t *testing.T) {
	dlq := NewDeadLetterQueue(time.Hour)
	dlq.Add(Task{ID: "t1", Name: "analysis"}, "failed")

	entry, err := dlq.Take("t1")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if entry.Task.Name != "analysis" || entry.LastError != "failed" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if _, err := dlq.Take("t1"); err != ErrDeadLetterNotFound {
		t.Fatalf("second take should fail, got %v", err)
	}
}
