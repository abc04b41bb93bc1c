// Package retry runs an operation under exponential backoff with a fixed
// attempt ceiling. The ceiling counts the first call.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const defaultMaxAttempts = 3

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64

	// IsFatal stops the loop on the first error it reports. Nil retries
	// everything.
	IsFatal func(error) bool
}

// OnRetry runs after a failed attempt that will be followed by another one.
type OnRetry func(attempt int, err error, nextDelay time.Duration)

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return p.MaxAttempts
}

func (p Policy) multiplier() float64 {
	if p.Multiplier <= 0 {
		return backoff.DefaultMultiplier
	}
	return p.Multiplier
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.multiplier()
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	return backoff.WithMaxRetries(backoff.WithContext(exp, ctx), uint64(p.attempts()-1))
}

// Delay is the wait after the given failed attempt (1-based), capped at
// MaxInterval.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialInterval) * math.Pow(p.multiplier(), float64(attempt-1))
	if p.MaxInterval > 0 && d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	return time.Duration(d)
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

// RetryWithCallback calls fn until it succeeds, fails fatally, ctx is done
// or the ceiling is reached. The last error is returned unchanged.
func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry OnRetry) error {
	ceiling := policy.attempts()

	attempt := 0
	operation := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if policy.IsFatal != nil && policy.IsFatal(err) {
			return backoff.Permanent(err)
		}
		if onRetry != nil && attempt < ceiling && ctx.Err() == nil {
			onRetry(attempt, err, policy.Delay(attempt))
		}
		return err
	}

	return backoff.Retry(operation, policy.backOff(ctx))
}
