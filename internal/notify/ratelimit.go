package notify

import (
	"math"
	"sync"
	"time"
)

// Limiter decides whether a notification for a destination key may go out.
type Limiter interface {
	Allow(key string) (bool, error)
}

// TokenBucket is an in-memory per-key token bucket. Each key holds up to
// burst tokens and refills at ratePerMinute/60 tokens per second.
type TokenBucket struct {
	mu      sync.Mutex
	buckets map[string]*tokenState
	rate    float64 // tokens per second
	burst   float64
	now     func() time.Time
}

type tokenState struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket constructs a limiter. Non-positive rate or burst disables
// limiting: every call is allowed.
func NewTokenBucket(ratePerMinute, burst int) *TokenBucket {
	return &TokenBucket{
		buckets: make(map[string]*tokenState),
		rate:    float64(ratePerMinute) / 60.0,
		burst:   float64(burst),
		now:     time.Now,
	}
}

// Allow consumes one token for key if available. The check and the
// decrement happen under a single lock so concurrent callers cannot both
// spend the last token.
func (l *TokenBucket) Allow(key string) (bool, error) {
	if l == nil || l.rate <= 0 || l.burst <= 0 {
		return true, nil
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.buckets[key]
	if !ok {
		state = &tokenState{tokens: l.burst, last: now}
		l.buckets[key] = state
	}
	elapsed := now.Sub(state.last).Seconds()
	if elapsed > 0 {
		state.tokens = math.Min(l.burst, state.tokens+elapsed*l.rate)
		state.last = now
	}
	if state.tokens >= 1 {
		state.tokens--
		return true, nil
	}
	return false, nil
}

var _ Limiter = (*TokenBucket)(nil)
