// Package timeout bounds asynchronous operations with a deadline.
//
// Run stops waiting when the deadline passes but never cancels the operation
// itself; a timed-out operation may still settle later and its outcome must
// be treated as unknown.
package timeout

import (
	"context"
	"time"

	verrors "github.com/jmgilman/go/dweb/errors"
)

// DefaultTimeout applies when a caller does not set a duration.
const DefaultTimeout = 5 * time.Second

type result[T any] struct {
	value T
	err   error
}

// Run executes fn in its own goroutine and returns its outcome if it settles
// within d. Otherwise it returns a CodeTimeout error. A d of zero or less
// means DefaultTimeout. Cancelling ctx also stops the wait; fn receives ctx
// unchanged.
func Run[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		d = DefaultTimeout
	}

	// Buffered so the goroutine can always deliver and exit after we stop
	// listening.
	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{value: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-timer.C:
		return zero, verrors.WithContext(
			verrors.Newf(verrors.CodeTimeout, "timed out after %s", d),
			"timeout", d.String(),
		)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Do is Run for operations without a result value.
func Do(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	_, err := Run(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
