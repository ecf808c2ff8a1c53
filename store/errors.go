package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by [Store.Get] when no record exists.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a version token check or a must-not-exist
	// condition fails.
	ErrConflict = errors.New("write conflict")

	// ErrUnavailable marks transient failures (throttling, timeouts). Callers
	// may retry.
	ErrUnavailable = errors.New("store unavailable")
)

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
