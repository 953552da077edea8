package rate_limiter

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// errLimited tells the retry loop that the attempt was denied, not broken.
var errLimited = errors.New("rate limited")

// blockUntilAllowed runs attempt until it is allowed, retrying a denied
// decision after a fixed interval, indefinitely. Only denials are retried:
// a store or script error is permanent and surfaces immediately, and a
// canceled context stops the loop with ctx.Err(). The wait is a plain timer
// sleep; no connection or lock is held across it.
func blockUntilAllowed(ctx context.Context, interval time.Duration, attempt func(context.Context) (bool, error)) (bool, error) {
	policy := backoff.WithContext(backoff.NewConstantBackOff(interval), ctx)

	err := backoff.Retry(func() error {
		allowed, err := attempt(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !allowed {
			return errLimited
		}
		return nil
	}, policy)
	if err != nil {
		return false, err
	}
	return true, nil
}
