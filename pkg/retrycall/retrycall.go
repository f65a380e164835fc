// Package retrycall keeps long-lived remote conversations alive across
// transient failures by retrying with capped exponential backoff.
package retrycall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// ErrExhausted terminates a bounded call loop once the configured number
// of retries has been spent. It is not retryable.
var ErrExhausted = errors.New("maximum number of retries attempted")

// Func is one attempt of the remote operation. Returned errors are treated
// as transient and retried, unless wrapped with backoff.Permanent.
type Func[T any] func(ctx context.Context) (T, error)

// Caller repeatedly invokes a remote operation, waiting in between
// attempts. The wait starts at Start and doubles after every attempt, up
// to MaxWait. With MaxRetries set to 0 the caller retries forever.
//
// A Caller is a blocking, synchronous retry loop. Each Run invocation
// keeps its own backoff state; to retry from several goroutines, give
// each its own Run call.
type Caller[T any] struct {
	Start      time.Duration // initial wait
	MaxWait    time.Duration // wait cap
	MaxRetries int           // retries beyond the first attempt, 0 to retry forever
	Log        *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error // test seam
}

// Run invokes fn until it succeeds, the retry budget is spent, or the
// context is canceled during a wait. The wait runs after every attempt,
// the final successful one included, keeping the call rate bounded even
// when every attempt succeeds.
func (c *Caller[T]) Run(ctx context.Context, fn Func[T]) (T, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.Start
	bo.MaxInterval = c.MaxWait
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()
	sleep := c.sleep
	if sleep == nil {
		sleep = sleepTimer
	}
	var zero T
	var retries int
	for {
		result, err := fn(ctx)
		if err != nil {
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				return zero, err
			}
			if c.MaxRetries > 0 {
				retries++
				if retries > c.MaxRetries {
					return zero, fmt.Errorf("%w (%d): %v", ErrExhausted, c.MaxRetries, err)
				}
			}
			wait := bo.NextBackOff()
			c.Log.Error("Transient failure calling remote, retrying",
				zap.Duration("wait", wait), zap.Error(err))
			if serr := sleep(ctx, wait); serr != nil {
				return zero, serr
			}
			continue
		}
		// Terminating the wait early on ctx would drop a result we
		// already hold, so the sleep outcome is ignored here.
		_ = sleep(ctx, bo.NextBackOff())
		return result, nil
	}
}

func sleepTimer(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
