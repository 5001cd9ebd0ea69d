package notify

import (
	"testing"
	"time"
)

func TestTokenBucketBurstThenRefill(t *testing.T) {
	tb := NewTokenBucket(60, 3) // 1 token/sec, burst 3
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tb.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if ok, _ := tb.Allow("run.finished"); !ok {
			t.Fatalf("call %d within burst should be allowed", i+1)
		}
	}
	if ok, _ := tb.Allow("run.finished"); ok {
		t.Fatal("fourth call should be rate limited")
	}

	now = now.Add(2 * time.Second)
	if ok, _ := tb.Allow("run.finished"); !ok {
		t.Fatal("refill after 2s should allow again")
	}
}

func TestTokenBucketKeysAreIndependent(t *testing.T) {
	tb := NewTokenBucket(60, 1)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tb.now = func() time.Time { return now }

	if ok, _ := tb.Allow("a"); !ok {
		t.Fatal("first call for key a should pass")
	}
	if ok, _ := tb.Allow("a"); ok {
		t.Fatal("key a should be exhausted")
	}
	if ok, _ := tb.Allow("b"); !ok {
		t.Fatal("key b has its own bucket")
	}
}

func TestTokenBucketDisabledWhenUnconfigured(t *testing.T) {
	tb := NewTokenBucket(0, 0)
	for i := 0; i < 100; i++ {
		if ok, _ := tb.Allow("x"); !ok {
			t.Fatal("disabled limiter must always allow")
		}
	}
}

func TestTokenBucketNeverExceedsBurst(t *testing.T) {
	tb := NewTokenBucket(60, 2)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tb.now = func() time.Time { return now }

	if ok, _ := tb.Allow("k"); !ok {
		t.Fatal("initial token expected")
	}
	// A long idle period must not accumulate more than burst tokens.
	now = now.Add(time.Hour)
	allowed := 0
	for i := 0; i < 5; i++ {
		if ok, _ := tb.Allow("k"); ok {
			allowed++
		}
	}
	if allowed != 2 {
		t.Fatalf("allowed = %d after idle, want burst of 2", allowed)
	}
}
