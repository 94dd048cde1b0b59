// Package retry runs blocking calls under a per-attempt timeout with bounded
// exponential backoff between attempts, scheduled by cenkalti/backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTimeout indicates a single attempt exceeded the policy's CallTimeout.
var ErrTimeout = errors.New("call timed out")

// Policy controls how Do retries a call.
// A zero CallTimeout disables the per-attempt deadline.
// A nil Retryable retries only ErrTimeout.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	CallTimeout    time.Duration
	Retryable      func(error) bool
}

// BackOff returns the exponential schedule between attempts, without jitter,
// stopping once the attempt budget is spent.
func (p Policy) BackOff() backoff.BackOff {
	attempts := max(p.MaxAttempts, 1)
	if attempts == 1 {
		return &backoff.StopBackOff{}
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = max(p.InitialBackoff, 0)
	eb.RandomizationFactor = 0
	eb.Multiplier = 2
	eb.MaxInterval = time.Duration(math.MaxInt64)
	if p.MaxBackoff > 0 {
		eb.MaxInterval = p.MaxBackoff
	}
	eb.MaxElapsedTime = 0
	eb.Reset()

	return backoff.WithMaxRetries(eb, uint64(attempts-1))
}

func (p Policy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return errors.Is(err, ErrTimeout)
}

type outcome[T any] struct {
	value T
	err   error
}

// Do invokes fn until it succeeds, returns a non-retryable error, or the
// attempt budget is exhausted. The last error is returned on failure.
// Cancellation of ctx stops retrying immediately and returns ctx.Err().
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	operation := func() (T, error) {
		if err := ctx.Err(); err != nil {
			return zero, backoff.Permanent(err)
		}

		value, err := call(ctx, p.CallTimeout, fn)
		if err == nil {
			return value, nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return zero, backoff.Permanent(cerr)
		}
		if !p.retryable(err) {
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}

	return backoff.RetryWithData(operation, backoff.WithContext(p.BackOff(), ctx))
}

// call runs fn on its own goroutine so a deadline is honored even when fn
// ignores its context. The goroutine is abandoned after a timeout.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if timeout <= 0 {
		return fn(ctx)
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		v, err := fn(cctx)
		done <- outcome[T]{value: v, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, o.err)
		}
		return o.value, o.err
	case <-cctx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
