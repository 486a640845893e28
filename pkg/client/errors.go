package client

import (
	"errors"
	"fmt"
)

// ErrCircuitOpen is returned when the circuit breaker is rejecting
// requests after repeated failures.
var ErrCircuitOpen = errors.New("circuit breaker open")

// ErrNotConnected is returned by Send while the event stream has no
// live connection.
var ErrNotConnected = errors.New("event stream not connected")

// AuthError reports a rejected credential (HTTP 401). It is never
// retried.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Msg)
}

// RetryExhaustedError reports that every attempt failed on a transient
// error. The last underlying error is wrapped.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// APIError reports a non-retryable HTTP failure that is neither an
// authentication problem nor a transient server error.
type APIError struct {
	StatusCode int
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Msg)
}
