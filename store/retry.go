package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// errContended marks an optimistic write that lost to a concurrent writer.
var errContended = errors.New("write contended")

// ContentionBudget bounds how long an optimistic write keeps retrying when
// the caller's context carries no earlier deadline.
const ContentionBudget = 10 * time.Second

// retryContended runs op until it succeeds, fails with a non-contention
// error, or the budget expires. A lost race never drops the write while time
// remains.
func retryContended(ctx context.Context, budget time.Duration, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 25 * time.Millisecond
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = budget

	err := backoff.Retry(func() error {
		err := op()
		if err == nil || errors.Is(err, errContended) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(b, ctx))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, errContended):
		return fmt.Errorf("%w: write contention", ErrUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return unavailable(err)
	default:
		return err
	}
}
