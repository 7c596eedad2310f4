package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/conductor/pkg/domain"
)

// invoke runs fn as a suspension point of the driving loop.
// It returns as soon as the run is cancelled or the timeout expires, whether or not fn honours ctx.
// Callers hand fn a Context snapshot, so an abandoned call cannot touch the run.
func invoke[T any](ctx context.Context, name string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		if err := ctx.Err(); err != nil {
			// A result racing the cancellation is dropped; the run keeps its last merged state.
			return zero, err
		}
		if r.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return zero, &domain.StepTimeoutError{Name: name, Timeout: timeout}
		}
		return r.val, r.err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &domain.StepTimeoutError{Name: name, Timeout: timeout}
	}
}
