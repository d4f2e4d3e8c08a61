// Package resilience provides the bounded-attempts retry policy and the
// transient-error taxonomy shared by the external-service clients. Every
// client absorbs its own transient failures; only definitive outcomes
// cross package boundaries.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Policy controls retry behavior for a single logical operation.
type Policy struct {
	// MaxAttempts is the total number of attempts including the first.
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// Delay is the fixed wait between attempts. Default: 1s.
	Delay time.Duration

	// ShouldRetry overrides the default transient-error check. If nil,
	// IsTransient is used.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with the attempt number
	// (1-based) and the error that triggered it.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy returns the retry policy used for geocoding calls:
// three attempts with a fixed one-second delay.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Delay: time.Second}
}

// DoVal executes fn under the policy, returning the value of the first
// successful attempt. Only transient errors are retried; a definitive
// error ends the loop immediately. Context cancellation stops retries,
// so the total wall clock is bounded by the caller's context even though
// the policy itself has no deadline.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, lastErr
		}
		if !shouldRetry(lastErr) {
			return zero, lastErr
		}
		if attempt >= p.MaxAttempts-1 {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, lastErr)
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
