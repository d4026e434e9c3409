// Package httputil provides shared HTTP plumbing for remote license sources:
// a retry helper for transient failures and response status classification.
package httputil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	lberrors "github.com/licensebundle/licensebundle/pkg/errors"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, 5xx responses) with this type
// so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry executes fn up to attempts times with exponential backoff.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. The delay doubles after each failed attempt.
// Returns the last error if all attempts fail, or ctx.Err() if cancelled.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !isRetryable(err) {
			return err
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

// RetryWithBackoff is a convenience wrapper around [Retry] with sensible
// defaults: 3 attempts with 1 second initial delay (doubling each retry).
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, 3, time.Second, fn)
}

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// WrapTransportError classifies a transport-level failure from an HTTP
// round trip. Timeouts map to TIMEOUT and are returned as-is so the
// caller falls through instead of retrying against the same deadline;
// other transport failures are retryable network errors.
func WrapTransportError(err error, format string, args ...any) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return lberrors.Wrap(lberrors.ErrCodeTimeout, err, format, args...)
	}
	return &RetryableError{Err: lberrors.Wrap(lberrors.ErrCodeNetwork, err, format, args...)}
}

// NewClient creates an HTTP client with the given request timeout.
// A zero timeout falls back to 30 seconds.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// CheckStatus maps an HTTP response to the pipeline's error taxonomy.
// 200 is success; 404 is NOT_FOUND; 401/403 are UNAUTHORIZED; 429 is
// RATE_LIMITED (honoring Retry-After when present); 5xx is a retryable
// network error; anything else is a plain network error.
func CheckStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return lberrors.New(lberrors.ErrCodeNotFound, "status 404")
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return lberrors.New(lberrors.ErrCodeUnauthorized, "status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return &lberrors.RateLimitedError{RetryAfter: retryAfter}
	case resp.StatusCode >= 500:
		return &RetryableError{Err: lberrors.New(lberrors.ErrCodeNetwork, "status %d", resp.StatusCode)}
	default:
		return lberrors.New(lberrors.ErrCodeNetwork, "status %d", resp.StatusCode)
	}
}
