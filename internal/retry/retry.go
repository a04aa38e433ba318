// Package retry runs an operation a bounded number of times with a fixed
// pause between attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds how an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first. Values
	// below 1 mean a single try.
	Attempts int
	// Delay is the fixed pause between tries.
	Delay time.Duration
}

// Default is the query embedding policy: three tries, one second apart.
var Default = Policy{Attempts: 3, Delay: time.Second}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a Permanent error, ctx is done or
// the attempts run out. The last failure is returned unchanged. onRetry, if
// set, is called after every failed try that will be retried.
func Do[T any](
	ctx context.Context, p Policy,
	op func(context.Context) (T, error),
	onRetry func(attempt int, err error),
) (T, error) {
	attempts := max(p.Attempts, 1)
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	notify := func(err error, _ time.Duration) {
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}

	return backoff.RetryNotifyWithData(func() (T, error) { //nolint:wrapcheck // last failure surfaces unchanged
		attempt++
		return op(ctx)
	}, b, notify)
}
