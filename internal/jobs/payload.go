package jobs

import (
	"encoding/json"
	"strings"
)

// RunPayload is the task payload for run execution.
type RunPayload struct {
	RunID     string `json:"runId"`
	RequestID string `json:"requestId,omitempty"`
}

// ErrEmptyPayload indicates an empty task payload.
type ErrEmptyPayload struct{}

func (ErrEmptyPayload) Error() string { return "empty task payload" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Err error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode task payload"
	}
	return "decode task payload: " + e.Err.Error()
}

// ErrMissingRunID indicates a payload without the run id.
type ErrMissingRunID struct {
	RequestID string
}

func (ErrMissingRunID) Error() string { return "missing run id" }

// ParseRunPayload validates and decodes a run-execution payload.
func ParseRunPayload(payload []byte) (RunPayload, error) {
	if len(payload) == 0 || strings.TrimSpace(string(payload)) == "" {
		return RunPayload{}, ErrEmptyPayload{}
	}
	var p RunPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return RunPayload{}, ErrDecode{Err: err}
	}
	if strings.TrimSpace(p.RunID) == "" {
		return p, ErrMissingRunID{RequestID: p.RequestID}
	}
	return p, nil
}

// EncodeRunPayload returns the JSON representation of a run payload.
func EncodeRunPayload(p RunPayload) ([]byte, error) {
	return json.Marshal(p)
}
