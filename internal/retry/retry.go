// Package retry runs network operations under a bounded exponential backoff
// policy. Operations signal a non-retryable failure by wrapping it with
// Permanent; anything else is retried until the policy's budget is spent.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultRetries is the number of retries after the first attempt
	DefaultRetries = 3
	// DefaultInitialBackoff is the delay before the first retry
	DefaultInitialBackoff = 1 * time.Second
	// DefaultMaxBackoff caps the delay between attempts
	DefaultMaxBackoff = 30 * time.Second
	// DefaultMultiplier grows the delay after each retry
	DefaultMultiplier = 2.0
	// DefaultAttemptTimeout bounds a single attempt
	DefaultAttemptTimeout = 60 * time.Second
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	// Retries is the number of retries after the first attempt (0 = no retries)
	Retries int
	// InitialBackoff is the delay before the first retry
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts
	MaxBackoff time.Duration
	// Multiplier grows the delay after each retry (must be >= 1)
	Multiplier float64
	// AttemptTimeout bounds each attempt (0 = bounded only by the parent context)
	AttemptTimeout time.Duration
}

// DefaultPolicy returns the policy used for metadata queries.
func DefaultPolicy() Policy {
	return Policy{
		Retries:        DefaultRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		Multiplier:     DefaultMultiplier,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// Validate checks that the policy can produce a bounded, non-decreasing
// sequence of delays.
func (p Policy) Validate() error {
	if p.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", p.Retries)
	}
	if p.InitialBackoff < 0 {
		return fmt.Errorf("initial backoff must be >= 0, got %s", p.InitialBackoff)
	}
	if p.MaxBackoff < p.InitialBackoff {
		return fmt.Errorf("max backoff %s is smaller than initial backoff %s", p.MaxBackoff, p.InitialBackoff)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1, got %g", p.Multiplier)
	}
	if p.AttemptTimeout < 0 {
		return fmt.Errorf("attempt timeout must be >= 0, got %s", p.AttemptTimeout)
	}
	return nil
}

// WithAttemptTimeout returns a copy of the policy with a different per-attempt timeout.
func (p Policy) WithAttemptTimeout(d time.Duration) Policy {
	p.AttemptTimeout = d
	return p
}

// backOff builds the exponential schedule. Randomization is disabled so the
// delays never shrink between attempts.
func (p Policy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// budget is the longest a full run of the policy can take. Zero when
// attempts are unbounded.
func (p Policy) budget() time.Duration {
	if p.AttemptTimeout <= 0 {
		return 0
	}
	attempts := time.Duration(p.Retries + 1)
	return attempts*p.AttemptTimeout + attempts*p.MaxBackoff
}

// NotifyFunc is called before sleeping ahead of a retry. attempt is the
// 1-based number of the attempt that just failed.
type NotifyFunc func(attempt int, err error, delay time.Duration)

// Permanent marks err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Op is a single attempt. The context passed in carries the attempt timeout.
type Op func(ctx context.Context) error

// Do runs op under the policy and returns the number of attempts made along
// with the last error. Cancellation of ctx stops retrying immediately.
func Do(ctx context.Context, p Policy, op Op, notify NotifyFunc) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("invalid retry policy: %w", err)
	}

	attempts := 0
	operation := func() (struct{}, error) {
		if err := ctx.Err(); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}

		attempts++
		attemptCtx := ctx
		if p.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
			defer cancel()
		}

		err := op(attemptCtx)
		if err != nil && ctx.Err() != nil {
			// The caller gave up; the attempt's failure is a symptom of that.
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(p.Retries + 1)),
	}
	if budget := p.budget(); budget > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(budget))
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(func(err error, d time.Duration) {
			notify(attempts, err, d)
		}))
	}

	_, err := backoff.Retry(ctx, operation, opts...)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return attempts, err
}
