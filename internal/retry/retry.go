// Package retry provides a bounded retry combinator for operations that fail on
// recoverable races, such as an optimistic insert losing to a concurrent writer.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// ErrExhausted is wrapped (together with the last failure) when every attempt failed
// with a retryable error.
var ErrExhausted = errors.New("retry budget exhausted")

// Pause between attempts. Contention is expected to be rare, so a short constant
// wait is enough to let the competing writer commit.
var Pause = 2 * time.Millisecond

// Do runs op up to maxAttempts times. Only errors for which isRetryable returns true
// trigger another attempt; anything else, and nil, is returned as is.
func Do(ctx context.Context, maxAttempts int, isRetryable func(error) bool, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := goretry.WithMaxRetries(uint64(maxAttempts-1), goretry.NewConstant(Pause))

	exhausted := false
	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if err != nil && isRetryable(err) {
			exhausted = true
			return goretry.RetryableError(err)
		}
		exhausted = false
		return err
	})
	if err != nil && exhausted && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, err)
	}
	return err
}
