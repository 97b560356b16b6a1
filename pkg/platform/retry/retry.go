// Package retry runs an operation under a bounded backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds how an operation is retried. A Multiplier of 1 gives a fixed delay
// between attempts; Jitter randomizes each delay by +/- that fraction.
type Policy struct {
	Attempts   int
	BaseDelay  time.Duration
	Multiplier float64
	Jitter     float64
	MaxDelay   time.Duration
}

// DefaultPolicy is three attempts one second apart, without jitter.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		BaseDelay:  time.Second,
		Multiplier: 1,
	}
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	if p.MaxDelay <= 0 || p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
		for i := 1; i < p.Attempts-1; i++ {
			p.MaxDelay = time.Duration(float64(p.MaxDelay) * p.Multiplier)
		}
	}
	return p
}

// Budget is the longest the policy can spend waiting between attempts.
// Bound adds it to the per-attempt timeouts.
func (p Policy) Budget() time.Duration {
	p = p.normalized()
	var total time.Duration
	delay := p.BaseDelay
	for i := 1; i < p.Attempts; i++ {
		d := min(delay, p.MaxDelay)
		total += d + time.Duration(float64(d)*p.Jitter)
		delay = time.Duration(float64(delay) * p.Multiplier)
	}
	return total
}

// Bound is the longest a whole Do call can take when each attempt is capped at
// perAttempt.
func (p Policy) Bound(perAttempt time.Duration) time.Duration {
	n := p.normalized().Attempts
	return time.Duration(n)*perAttempt + p.Budget()
}

func (p Policy) backOff() backoff.BackOff {
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: p.Jitter,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	eb.Reset()
	return backoff.WithMaxRetries(eb, uint64(p.Attempts-1))
}

// Option adjusts a single Do call.
type Option func(*options)

type options struct {
	onRetry func(attempt int, err error, next time.Duration)
}

// OnRetry is called after every failed attempt that will be retried.
func OnRetry(fn func(attempt int, err error, next time.Duration)) Option {
	return func(o *options) {
		o.onRetry = fn
	}
}

// Permanent marks err as not worth retrying; Do returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the policy is
// exhausted, or ctx is done. On exhaustion the last attempt's error is returned.
// When ctx ends first the context error is returned wrapping the last failure.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error, opts ...Option) error {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	policy = policy.normalized()

	var (
		attempt int
		lastErr error
	)
	operation := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		lastErr = op(ctx)
		return lastErr
	}
	notify := func(err error, next time.Duration) {
		if o.onRetry != nil {
			o.onRetry(attempt, err, next)
		}
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(policy.backOff(), ctx), notify)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) && lastErr != nil && !errors.Is(lastErr, ctxErr) {
		return fmt.Errorf("%w after %d attempt(s): %w", ctxErr, attempt, lastErr)
	}
	return err
}
