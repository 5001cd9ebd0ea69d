package runs

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates the run does not exist.
	ErrNotFound = errors.New("run not found")
	// ErrNotCancellable indicates the run already reached a terminal status.
	ErrNotCancellable = errors.New("run is not cancellable")
	// ErrAlreadyStarted indicates the run left the pending status.
	ErrAlreadyStarted = errors.New("run already started")
)

// Error types recorded on failed per-company results.
const (
	ErrorTypeValidation = "VALIDATION_ERROR"
	ErrorTypeProvider   = "PROVIDER_ERROR"
	ErrorTypeTimeout    = "LLM_TIMEOUT"
	ErrorTypePanic      = "PANIC"
	ErrorTypeStorage    = "STORAGE_ERROR"
	ErrorTypeInternal   = "INTERNAL_ERROR"
)

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
