package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/openai/openai-go/v3"

	"brightsteps-backend-go/internal/config"
)

// RetryPolicy bounds one outbound call site: how many attempts, the backoff
// between them and the deadline of each attempt.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	MaxDelay time.Duration
	Timeout  time.Duration
}

func LLMPolicy(cfg config.LLMConfig) RetryPolicy {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return RetryPolicy{Attempts: cfg.MaxAttempts, Delay: 2 * time.Second, MaxDelay: 10 * time.Second, Timeout: timeout}
}

func ImagePolicy(cfg config.ImageGenConfig) RetryPolicy {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return RetryPolicy{Attempts: cfg.MaxAttempts, Delay: 2 * time.Second, MaxDelay: 10 * time.Second, Timeout: timeout}
}

var (
	HealthCheckPolicy = RetryPolicy{Attempts: 1, Timeout: 5 * time.Second}
	GitHubPolicy      = RetryPolicy{Attempts: 3, Delay: 500 * time.Millisecond, MaxDelay: 4 * time.Second, Timeout: 20 * time.Second}
)

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. Each attempt gets its own deadline derived from ctx.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.Do(
		func() error {
			attemptCtx, cancel := ctx, context.CancelFunc(func() {})
			if p.Timeout > 0 {
				attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			}
			defer cancel()
			return fn(attemptCtx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
	)
}

// HTTPStatusError is a non-2xx response from an outbound service.
type HTTPStatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s returned HTTP %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Service, e.StatusCode, truncateRunes(body, 500))
}

// IsRetryable reports whether err is worth another attempt: transport
// failures, attempt timeouts, 429 and 5xx. Everything else is final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

const maxResponseBytes = 32 << 20

// readResponse drains resp and turns non-2xx statuses into HTTPStatusError.
func readResponse(service string, resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
