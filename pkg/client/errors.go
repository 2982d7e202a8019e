package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	// It wraps the last underlying error for diagnostics.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrInvalidRetryConfig is returned before the operation runs when the
	// retry configuration carries negative values.
	ErrInvalidRetryConfig = errors.New("invalid retry configuration")

	// ErrContextCancelled is returned when the context is cancelled during
	// a retry delay.
	ErrContextCancelled = errors.New("context cancelled")
)

// TransientError is the single retriable error kind: a connection failure
// or a response body that did not parse as JSON. Callers cannot distinguish
// the two beyond the message text, matching the upstream contract.
type TransientError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient API error: %s: %v", e.Message, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transient API error: %s", e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is (or wraps) a TransientError. Only
// transient errors are retried; everything else propagates immediately.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
