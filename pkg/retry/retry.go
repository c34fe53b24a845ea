// Package retry runs an operation again once after a short pause when it fails transiently.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Once calls op, and if it fails with an error that transient accepts, calls it one more
// time after pause. Non-transient errors are returned immediately.
func Once[T any](ctx context.Context, pause time.Duration, transient func(error) bool, op func(context.Context) (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op(ctx)
		if err != nil && !transient(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(backoff.NewConstantBackOff(pause)), backoff.WithMaxTries(2))
}
