// Package retry expresses exponential-backoff retries as a Policy value so the
// download and upstream-call stages share one independently testable rule.
package retry

import (
	"context"
	"fmt"
	"time"

	"slackscribe/internal/services"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 4 * time.Second
)

// Policy describes how a failing operation is retried.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable decides whether an error deserves another attempt. Nil means
	// services.IsRetryable.
	Retryable func(error) bool
	// OnRetry, when set, observes each scheduled retry.
	OnRetry func(attempt int, delay time.Duration, err error)

	sleep func(context.Context, time.Duration) error
}

// Default returns the policy used for transport calls: three attempts with
// doubling delays from 500ms, capped at 4s, retrying transport errors only.
func Default() Policy {
	return Policy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
		Retryable:   services.IsRetryable,
	}
}

// WithSleeper returns a copy of p that waits through fn. Tests use it to
// record delays without sleeping.
func (p Policy) WithSleeper(fn func(context.Context, time.Duration) error) Policy {
	p.sleep = fn
	return p
}

// Do runs op until it succeeds, returns a non-retryable error, the attempts
// are exhausted, or ctx is done. The last error is returned unchanged when
// retries are exhausted so its markers stay visible.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt == attempts || !p.retryable(err) || ctx.Err() != nil {
			break
		}
		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if sleepErr := p.wait(ctx, delay); sleepErr != nil {
			return fmt.Errorf("retry wait: %w (last error: %w)", sleepErr, err)
		}
	}
	return err
}

// Delay returns the wait before the attempt following attempt (1-based):
// base, base*2, base*4, ... capped at MaxDelay.
func (p Policy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		return 0
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > maxDelay/2 {
			return maxDelay
		}
		delay *= 2
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return services.IsRetryable(err)
	}
	return p.Retryable(err)
}

func (p Policy) wait(ctx context.Context, delay time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, delay)
	}
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
