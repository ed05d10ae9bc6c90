package api

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when the backend rejects the session
// token. The client invalidates its credentials before returning it, so
// callers only need to surface a re-login message.
var ErrUnauthorized = errors.New("authentication failed")

// APIError is a non-2xx response from the backend, carrying the
// server-provided message when the error body was parseable JSON.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api request failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api request failed (status %d)", e.StatusCode)
}

// IsAuthError reports whether err is (or wraps) an authentication
// failure.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
