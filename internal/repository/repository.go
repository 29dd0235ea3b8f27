package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPolicyDenied is returned when a row-level access rule rejects a write
	ErrPolicyDenied = errors.New("access policy denied the operation")
	// ErrDuplicatePending is returned when an equivalent pending invitation exists
	ErrDuplicatePending = errors.New("a pending invitation already exists")
	// ErrNotFound is returned by multi-step writes whose target row is missing
	ErrNotFound = errors.New("record not found")
	// ErrNotPending is returned when an invitation has already been settled
	ErrNotPending = errors.New("invitation is not pending")
)

func newID() string {
	return uuid.NewString()
}

// now returns the storage timestamp: UTC, truncated to the precision every
// supported database keeps.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return now()
	}
	return t.UTC().Truncate(time.Microsecond)
}
