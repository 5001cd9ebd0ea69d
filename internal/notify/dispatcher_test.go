package notify

import (
	"context"
	"errors"
	"testing"
	"time"
)

type captureSink struct {
	events []Event
	err    error
}

func (s *captureSink) Publish(_ context.Context, ev Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

type erroringLimiter struct{}

func (erroringLimiter) Allow(string) (bool, error) {
	return false, errors.New("limiter backend down")
}

func TestDispatcherStampsAndSends(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, nil)
	d.Now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }

	err := d.Publish(context.Background(), Event{Kind: KindRunFinished, RunID: "r1"})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.OccurredAt != "2026-08-01T12:00:00Z" {
		t.Fatalf("occurredAt = %q", ev.OccurredAt)
	}
	if ev.Version != 1 {
		t.Fatalf("version = %d, want 1", ev.Version)
	}
}

func TestDispatcherDropsWhenRateLimited(t *testing.T) {
	sink := &captureSink{}
	tb := NewTokenBucket(60, 1)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tb.now = func() time.Time { return now }
	d := NewDispatcher(sink, tb)

	for i := 0; i < 3; i++ {
		if err := d.Publish(context.Background(), Event{Kind: KindHighPriorityInsight}); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1 (rest dropped, not errored)", len(sink.events))
	}
}

func TestDispatcherFailsOpenOnLimiterError(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, erroringLimiter{})

	if err := d.Publish(context.Background(), Event{Kind: KindRunFinished}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatal("event must go out when the limiter errors")
	}
}

func TestDispatcherReturnsSinkError(t *testing.T) {
	sink := &captureSink{err: errors.New("queue unavailable")}
	d := NewDispatcher(sink, nil)

	if err := d.Publish(context.Background(), Event{Kind: KindWeeklyReport}); err == nil {
		t.Fatal("expected sink error")
	}
}

func TestEventRoundTrip(t *testing.T) {
	in := Event{Kind: KindRunFinished, RunID: "r1", Title: "done", OccurredAt: "2026-08-01T12:00:00Z", Version: 1}
	payload, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("EncodeEvent: %v", err)
	}
	out, err := DecodeEvent(payload)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
