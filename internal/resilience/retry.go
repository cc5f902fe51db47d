package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retries with exponential backoff.
type Policy struct {
	// Attempts is the total number of tries, the first included.
	Attempts   int
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Jitter randomizes each delay by up to this fraction in either direction.
	Jitter float64
	// Timeout bounds each attempt. Zero leaves attempts bounded only by ctx.
	Timeout time.Duration
	// Retryable overrides IsTransient.
	Retryable func(error) bool
}

// DefaultPolicy retries twice with a short backoff.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Backoff:    250 * time.Millisecond,
		MaxBackoff: 5 * time.Second,
		Jitter:     0.2,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Backoff <= 0 {
		p.Backoff = d.Backoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// Retry calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx ends. op names the call in logs.
func Retry[T any](ctx context.Context, op string, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var (
		zero T
		err  error
	)
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		var v T
		v, err = callOnce(ctx, p.Timeout, fn)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !p.Retryable(err) || attempt == p.Attempts {
			return zero, err
		}

		delay := backoff(p, attempt)
		zap.L().Debug("resilience: retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
	return zero, err
}

// Do is Retry for calls without a result.
func Do(ctx context.Context, op string, p Policy, fn func(ctx context.Context) error) error {
	_, err := Retry(ctx, op, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func callOnce[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

// backoff returns the delay after the given 1-based attempt.
func backoff(p Policy, attempt int) time.Duration {
	delay := float64(p.Backoff) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.MaxBackoff) {
		delay = float64(p.MaxBackoff)
	}
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.Jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}
