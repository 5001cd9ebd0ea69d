package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"insights-backend/internal/shared/metrics"
	"insights-backend/internal/shared/telemetry"
)

const (
	defaultRetryBase   = 4 * time.Second
	defaultRetryCap    = 60 * time.Second
	defaultMaxAttempts = 3
	retryRandomization = 0.5
	retryBackoffGrowth = 2.0
)

// RetryingClient wraps a provider client with bounded retries for transient
// failures. Validation errors pass through untouched.
type RetryingClient struct {
	Base Client
	// MaxAttempts is the total attempt budget, first try included. Zero
	// falls back to 3.
	MaxAttempts int
	// BaseDelay and MaxDelay bound the exponential backoff. Zeros fall back
	// to 4s and 60s.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// AnalyzeCompany calls the base client, retrying transient failures with
// exponential backoff and jitter. The returned Result carries how many
// retries were spent.
func (c *RetryingClient) AnalyzeCompany(ctx context.Context, input AnalyzeInput) (Result, error) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.BaseDelay
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = defaultRetryBase
	}
	policy.MaxInterval = c.MaxDelay
	if policy.MaxInterval <= 0 {
		policy.MaxInterval = defaultRetryCap
	}
	policy.RandomizationFactor = retryRandomization
	policy.Multiplier = retryBackoffGrowth
	policy.MaxElapsedTime = 0
	policy.Reset()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			metrics.IncLLMRetry()
			telemetry.Warn("llm retry", map[string]any{
				"company": input.CompanyName,
				"attempt": attempt + 1,
				"error":   lastErr.Error(),
			})
			select {
			case <-time.After(policy.NextBackOff()):
			case <-ctx.Done():
				return Result{}, ctx.Err()
			}
		}

		result, err := c.Base.AnalyzeCompany(ctx, input)
		if err == nil {
			result.RetryCount = attempt
			return result, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return Result{RetryCount: attempt}, err
		}
		if ctx.Err() != nil {
			return Result{RetryCount: attempt}, ctx.Err()
		}
	}
	return Result{RetryCount: attempts - 1}, lastErr
}

var _ Client = (*RetryingClient)(nil)
