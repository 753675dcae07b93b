package helpdesk

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy re-runs an operation a fixed number of times with a fixed
// delay between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Logger      Logger
}

// DefaultRetryPolicy returns the policy used for dashboard reads: three
// attempts, one second apart.
func DefaultRetryPolicy(logger Logger) RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: time.Second, Logger: logger}
}

// Do calls op until it succeeds, the attempts run out, or ctx is done.
// The last error is returned wrapped with the attempt count.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return op(ctx)
	}, b, func(err error, wait time.Duration) {
		if p.Logger != nil {
			p.Logger.Warn("operation failed, retrying", "attempt", attempt, "max", attempts, "wait", wait, "error", err)
		}
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("retry aborted after %d attempt(s): %w", attempt, ctx.Err())
	}
	return fmt.Errorf("failed after %d attempt(s): %w", attempt, err)
}
