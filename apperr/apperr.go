// Package apperr holds the caller-facing error taxonomy shared by the
// project and resource services.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested project or resource does not
// exist. Check for it with [errors.Is].
var ErrNotFound = errors.New("not found")

// ValidationError reports caller input that was rejected before anything was
// written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}

	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// Invalid returns a *ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// LockConflictError is returned when a resource is locked by someone other
// than the requesting user.
type LockConflictError struct {
	ProjectID  string
	Path       string
	LockHolder string
	Requester  string
}

func (e *LockConflictError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "resource %s in project %s is locked by %s", e.Path, e.ProjectID, e.LockHolder)

	if e.Requester != "" {
		fmt.Fprintf(&b, " (requested by %s)", e.Requester)
	}

	return b.String()
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsLockConflict reports whether err is or wraps a *LockConflictError.
func IsLockConflict(err error) bool {
	var l *LockConflictError
	return errors.As(err, &l)
}
