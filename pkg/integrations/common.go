package integrations

import (
	"errors"
	"net/http"
	"strconv"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when the upstream resource doesn't exist.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrTooLarge is returned when a response body exceeds the read limit.
	ErrTooLarge = errors.New("response too large")
)

// NewHTTPClient creates an HTTP client with the given timeout.
// A non-positive timeout selects the 30 second default.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

// rateLimitRemaining parses X-RateLimit-Remaining. ok is false when the
// header is absent or malformed.
func rateLimitRemaining(h http.Header) (int, bool) {
	v := h.Get("X-RateLimit-Remaining")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// retryAfter returns the seconds until the rate-limit window resets, taken
// from Retry-After or X-RateLimit-Reset.
func retryAfter(h http.Header, now time.Time) int {
	if v, err := strconv.Atoi(h.Get("Retry-After")); err == nil && v > 0 {
		return v
	}
	if v, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		if d := time.Unix(v, 0).Sub(now); d > 0 {
			return int(d.Seconds())
		}
	}
	return 0
}
