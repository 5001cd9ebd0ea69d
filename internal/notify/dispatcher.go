package notify

import (
	"context"
	"time"

	"insights-backend/internal/shared/metrics"
	"insights-backend/internal/shared/telemetry"
)

// Dispatcher rate-limits events per kind before handing them to the sink.
type Dispatcher struct {
	Sink    Sink
	Limiter Limiter
	Now     func() time.Time
}

// NewDispatcher constructs a dispatcher around a sink.
func NewDispatcher(sink Sink, limiter Limiter) *Dispatcher {
	return &Dispatcher{
		Sink:    sink,
		Limiter: limiter,
		Now:     time.Now,
	}
}

// Publish sends an event through the rate limiter to the sink. Rate-limited
// events are dropped without error: notifications are best-effort and must
// never fail the work that produced them. If the limiter itself errors the
// event still goes out (fail open).
func (d *Dispatcher) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt == "" {
		ev.OccurredAt = d.now().UTC().Format(time.RFC3339)
	}
	if ev.Version == 0 {
		ev.Version = 1
	}

	if d.Limiter != nil {
		allowed, err := d.Limiter.Allow(ev.Kind)
		if err != nil {
			telemetry.Warn("notify.limiter_error", map[string]any{
				"kind":  ev.Kind,
				"error": err.Error(),
			})
		} else if !allowed {
			metrics.IncNotificationDropped()
			telemetry.Warn("notify.dropped", map[string]any{
				"kind":   ev.Kind,
				"run_id": ev.RunID,
			})
			return nil
		}
	}

	if err := d.Sink.Publish(ctx, ev); err != nil {
		telemetry.Error("notify.publish", map[string]any{
			"kind":  ev.Kind,
			"error": err.Error(),
		})
		return err
	}
	metrics.IncNotificationSent()
	return nil
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
