package paystack

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyDo(t *testing.T) {
	transient := &transportError{op: "verify", err: errors.New("connection reset")}
	permanent := errors.New("bad request")

	tests := []struct {
		name         string
		maxAttempts  int
		errs         []error
		wantAttempts int
		wantErr      error
	}{
		{"succeeds first try", 2, []error{nil}, 1, nil},
		{"retries transient once", 2, []error{transient, nil}, 2, nil},
		{"gives up after max attempts", 2, []error{transient, transient, nil}, 2, transient},
		{"does not retry permanent", 3, []error{permanent, nil}, 1, permanent},
		{"zero attempts runs once", 0, []error{transient, nil}, 1, transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := RetryPolicy{MaxAttempts: tt.maxAttempts, Retryable: IsRetryable}
			attempts := 0

			err := policy.Do(context.Background(), func(_ context.Context, attempt int) error {
				attempts++
				assert.Equal(t, attempts, attempt)
				return tt.errs[attempt-1]
			})

			assert.Equal(t, tt.wantAttempts, attempts)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&transportError{op: "initialize", status: 503}))
	assert.False(t, IsRetryable(errors.New("plain")))
}
