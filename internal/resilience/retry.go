// Package resilience retries collaborator calls that fail for transient reasons.
package resilience

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy is an exponential backoff schedule with jitter.
type Policy struct {
	MaxAttempts    int           // total attempts, including the first
	InitialBackoff time.Duration // delay before the first retry
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.25 means ±25%

	// Retryable overrides IsTransient.
	Retryable func(error) bool
	// OnRetry runs before each sleep.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy suits a database bulk load: few attempts, seconds apart.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Second,
		MaxBackoff:     15 * time.Second,
		JitterFraction: 0.25,
	}
}

// NewPolicy builds a Policy from configuration values; non-positive values
// keep the defaults.
func NewPolicy(maxAttempts, initialBackoffMs, maxBackoffMs int) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if initialBackoffMs > 0 {
		p.InitialBackoff = time.Duration(initialBackoffMs) * time.Millisecond
	}
	if maxBackoffMs > 0 {
		p.MaxBackoff = time.Duration(maxBackoffMs) * time.Millisecond
	}
	return p
}

// Do runs fn until it succeeds, fails with a non-retryable error, the
// attempts are used up or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var (
		val T
		err error
	)
	for attempt := 1; ; attempt++ {
		val, err = fn(ctx)
		if err == nil || attempt >= p.MaxAttempts || ctx.Err() != nil || !retryable(err) {
			return val, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		t := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return val, err
		case <-t.C:
		}
	}
}

// backoff returns the delay after the given 1-based attempt.
func (p Policy) backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < attempt && (p.MaxBackoff <= 0 || d < p.MaxBackoff); i++ {
		d *= 2
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if p.JitterFraction > 0 {
		d += time.Duration((rand.Float64()*2 - 1) * p.JitterFraction * float64(d))
	}
	return max(d, 0)
}

// LogRetry returns an OnRetry callback that logs each retry.
func LogRetry(operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
