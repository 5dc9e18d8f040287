package paystack

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
)

const defaultMaxAttempts = 2

// RetryPolicy bounds how many times a gateway call is attempted.
// Errors for which Retryable returns false end the loop immediately.
type RetryPolicy struct {
	MaxAttempts int
	Retryable   func(error) bool
}

// DefaultRetryPolicy retries transient transport failures once.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: defaultMaxAttempts, Retryable: IsRetryable}
}

// Do runs op until it succeeds, fails permanently, or the attempts are spent.
// The last error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	attempt := 0
	policy := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(attempts-1))

	return backoff.Retry(func() error {
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// transportError marks a failure where the gateway never gave a usable answer.
type transportError struct {
	op     string
	status int
	err    error
}

func (e *transportError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("%s: gateway returned %d %s", e.op, e.status, http.StatusText(e.status))
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *transportError) Unwrap() error {
	return e.err
}

// IsRetryable reports whether err is a transient transport failure.
func IsRetryable(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}
