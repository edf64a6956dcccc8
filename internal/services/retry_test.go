package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"attempt timeout", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"bad gateway", &HTTPStatusError{Service: "x", StatusCode: http.StatusBadGateway}, true},
		{"rate limited", &HTTPStatusError{Service: "x", StatusCode: http.StatusTooManyRequests}, true},
		{"not found", &HTTPStatusError{Service: "x", StatusCode: http.StatusNotFound}, false},
		{"transport", &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connection refused")}, true},
		{"plain", errors.New("bad json"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsRetryable(tc.err))
		})
	}
}

func TestRetryPolicy_Do(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, Delay: time.Millisecond, MaxDelay: time.Millisecond}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &HTTPStatusError{Service: "GitHub", StatusCode: http.StatusServiceUnavailable}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &HTTPStatusError{Service: "GitHub", StatusCode: http.StatusUnprocessableEntity, Body: "sha mismatch"}
	})
	assert.EqualError(t, err, "GitHub returned HTTP 422: sha mismatch")
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_AttemptDeadline(t *testing.T) {
	policy := RetryPolicy{Attempts: 1, Timeout: 10 * time.Millisecond}
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
