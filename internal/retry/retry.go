// Package retry implements the exponential backoff policy used by the
// transaction executor. The policy is a pure value parameterizing a
// single-attempt function, so it can be exercised with a fake sleeper.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/stomatrade/chain-sync/internal/logging"
)

// Sleeper abstracts the backoff wait so tests can run without real delays
type Sleeper func(ctx context.Context, d time.Duration) error

// DefaultSleeper waits for the duration or until the context is cancelled
func DefaultSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Policy configures retry behavior.
// Pattern with defaults: 1s, 2s, 4s.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Sleep        Sleeper
}

// DefaultPolicy returns the executor's default retry policy
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
		Sleep:        DefaultSleeper,
	}
}

// Result contains information about a retried operation
type Result struct {
	Attempts      int
	Success       bool
	TotalDuration time.Duration
	LastError     error
}

// AttemptFunc is a single attempt of a retryable operation
type AttemptFunc func(ctx context.Context, attempt int) error

// RetryableFunc decides whether an attempt's failure warrants another attempt
type RetryableFunc func(err error) bool

// Run executes fn under the policy. Every failed attempt sleeps
// InitialDelay * Multiplier^(attempt-1), capped at MaxDelay. A non-retryable
// error or context cancellation stops the loop early.
func (p Policy) Run(ctx context.Context, retryable RetryableFunc, fn AttemptFunc) *Result {
	logger := logging.FromContext(ctx)
	startTime := time.Now()

	sleep := p.Sleep
	if sleep == nil {
		sleep = DefaultSleeper
	}

	result := &Result{}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		result.Attempts = attempt

		err := fn(ctx, attempt)
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(startTime)

			if attempt > 1 {
				logger.WithFields(map[string]interface{}{
					"attempts":      attempt,
					"totalDuration": result.TotalDuration,
				}).Info("Operation succeeded after retry")
			}

			return result
		}

		result.LastError = err

		if attempt >= p.MaxAttempts {
			logger.WithFields(map[string]interface{}{
				"attempts": attempt,
				"error":    err.Error(),
			}).Error("Operation failed after max retry attempts")
			break
		}

		if retryable != nil && !retryable(err) {
			logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			}).Warn("Operation failed with non-retryable error")
			break
		}

		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			break
		}

		delay := p.Delay(attempt)

		logger.WithFields(map[string]interface{}{
			"attempt":     attempt,
			"maxAttempts": p.MaxAttempts,
			"delay":       delay.String(),
			"error":       err.Error(),
		}).Warn("Operation failed, retrying with exponential backoff")

		if err := sleep(ctx, delay); err != nil {
			result.LastError = err
			result.TotalDuration = time.Since(startTime)
			return result
		}
	}

	result.TotalDuration = time.Since(startTime)
	return result
}

// Delay returns the backoff delay following the given attempt number
func (p Policy) Delay(attempt int) time.Duration {
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))

	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	return time.Duration(delay)
}
