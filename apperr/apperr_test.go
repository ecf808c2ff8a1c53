package apperr_test

import (
	"fmt"
	"testing"

	"github.com/slackmgr/projectindex/apperr"
	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("create project: %w", apperr.Invalid("name", "cannot be empty"))

	assert.True(t, apperr.IsValidation(err))
	assert.False(t, apperr.IsLockConflict(err))
	assert.EqualError(t, err, "create project: validation failed: name cannot be empty")

	assert.EqualError(t, &apperr.ValidationError{Reason: "bad"}, "validation failed: bad")
}

func TestLockConflictError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("store version: %w", &apperr.LockConflictError{
		ProjectID:  "p1",
		Path:       "docs/readme.txt",
		LockHolder: "alice",
		Requester:  "bob",
	})

	assert.True(t, apperr.IsLockConflict(err))
	assert.False(t, apperr.IsValidation(err))
	assert.Contains(t, err.Error(), "locked by alice")
	assert.Contains(t, err.Error(), "requested by bob")
}
