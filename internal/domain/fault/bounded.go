package fault

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Bounded runs fn under a deadline of d. A call that runs out of time is
// reported as Unavailable. A non-positive d disables the deadline.
func Bounded[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if d <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	v, err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return v, Unavailablef(err, "%s", ErrUnavailable.Message)
	}
	return v, err
}
