package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes bounded retry with exponential backoff. The delay doubles
// per attempt, is capped at MaxDelay, and gets up to JitterFraction of itself
// added as random jitter so synchronized callers spread out.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	JitterFraction float64
}

// DefaultPolicy matches the upstream API's observed throttle behavior.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.2,
	}
}

// Do runs fn until it succeeds, the attempts are exhausted, the error is not
// retryable, or the context ends. The last error is returned.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if waitErr := sleep(ctx, p.delay(attempt)); waitErr != nil {
				return waitErr
			}
		}
		if err = fn(ctx); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}
	return err
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.JitterFraction > 0 {
		d += time.Duration(rand.Float64() * p.JitterFraction * float64(d))
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
