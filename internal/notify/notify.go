package notify

import (
	"context"
	"encoding/json"

	"insights-backend/internal/shared/telemetry"
)

// Event kinds published to downstream consumers.
const (
	KindRunFinished         = "run.finished"
	KindHighPriorityInsight = "insight.high_priority"
	KindWeeklyReport        = "report.weekly"
)

// Event is the payload sent to downstream notification consumers.
type Event struct {
	Kind       string `json:"kind"`
	RunID      string `json:"runId,omitempty"`
	CompanyID  string `json:"companyId,omitempty"`
	Title      string `json:"title,omitempty"`
	Body       string `json:"body,omitempty"`
	OccurredAt string `json:"occurredAt"`
	Version    int    `json:"version"`
}

// EncodeEvent returns the JSON representation of an event.
func EncodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeEvent parses a JSON payload into an Event.
func DecodeEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Sink delivers events to a notification backend.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// LogSink writes events to the application log. It stands in for a real
// backend when no notification queue is configured.
type LogSink struct{}

// Publish logs the event.
func (LogSink) Publish(_ context.Context, ev Event) error {
	telemetry.Info("notify.event", map[string]any{
		"kind":   ev.Kind,
		"run_id": ev.RunID,
		"title":  ev.Title,
	})
	return nil
}

var _ Sink = LogSink{}
