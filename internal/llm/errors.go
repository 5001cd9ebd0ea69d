package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Error codes persisted on failed analysis results.
const (
	ErrorCodeValidation  = "VALIDATION_ERROR"
	ErrorCodeProvider    = "PROVIDER_ERROR"
	ErrorCodeTimeout     = "LLM_TIMEOUT"
	ErrorCodeRateLimited = "LLM_RATE_LIMITED"
)

// ProviderError is a failure reported by or while reaching the provider.
type ProviderError struct {
	Code       string
	StatusCode int
	Retryable  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider error %s (status %d): %v", e.Code, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider error %s: %v", e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ValidationError is a structurally invalid provider response. It is never
// retried: the same prompt produced the output, so a retry burns tokens for
// the same failure.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Reason
}

// IsTransient reports whether the error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return false
	}
	var provider *ProviderError
	if errors.As(err, &provider) {
		return provider.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "client.timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}
	return false
}

// ErrorCode maps an error to the code persisted on the result row.
func ErrorCode(err error) string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return ErrorCodeValidation
	}
	var provider *ProviderError
	if errors.As(err, &provider) {
		return provider.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeTimeout
	}
	return ErrorCodeProvider
}
