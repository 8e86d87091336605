package client

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrRateLimited matches any *RateLimitedError via errors.Is.
var ErrRateLimited = errors.New("API rate limit exceeded")

// ErrPageLimit is returned by FetchAll when the configured page cap is hit
// before the server signals the last page.
var ErrPageLimit = errors.New("page limit reached")

// ErrUnknownCustomer is returned when the customers listing does not contain
// the requested tenant.
var ErrUnknownCustomer = errors.New("customer not found")

// bodyPrefixLen is the number of response bytes kept on an APIError.
const bodyPrefixLen = 200

// NetworkError is a transport-level failure: DNS, connection refused, TLS,
// timeout or a body that could not be read.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RateLimitedError is returned for HTTP 429. RetryAfter is zero when the
// server did not send a usable Retry-After header.
type RateLimitedError struct {
	Path       string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: %v (retry after %s)", e.Path, ErrRateLimited, e.RetryAfter)
	}
	return fmt.Sprintf("%s: %v", e.Path, ErrRateLimited)
}

// Is makes errors.Is(err, ErrRateLimited) true.
func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// APIError is any non-2xx response other than 429.
type APIError struct {
	Path       string
	Status     int
	BodyPrefix string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d on %s: %s", e.Status, e.Path, e.BodyPrefix)
}

// ParseError is returned when a response body does not have the expected
// JSON shape.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsNoAccess reports whether err is a 401 or 403 from the API. Callers of
// optional endpoints treat this as "feature not entitled".
func IsNoAccess(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

// IsRateLimited reports whether err is, or wraps, a 429.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// RetryAfter extracts the server-suggested delay from a rate-limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if !errors.As(err, &rl) || rl.RetryAfter <= 0 {
		return 0, false
	}
	return rl.RetryAfter, true
}

// parseRetryAfter accepts both forms allowed by RFC 9110: delay-seconds and
// an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

func bodyPrefix(body []byte) string {
	if len(body) > bodyPrefixLen {
		body = body[:bodyPrefixLen]
	}
	return strings.TrimSpace(string(body))
}
