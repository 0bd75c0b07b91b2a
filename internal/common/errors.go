// Package common defines sentinel errors shared by the scheduler, the
// repositories and the request handlers. Callers should match them with
// errors.Is.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// ErrRepositoryUnavailable means the backing store could not be reached.
	// The current operation is abandoned without partial writes.
	ErrRepositoryUnavailable = errors.New("repository unavailable")

	// ErrInvariantViolation marks a record that loaded with inconsistent data
	// (e.g. building acres not summing to land). The record is still usable.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrLockConflict is returned when an entity lock could not be obtained
	// within the allowed wait. It is retryable.
	ErrLockConflict = errors.New("lock conflict")

	// ErrStaleSchedule means another trigger already ran the due cycle.
	// Treat it as a successful no-op.
	ErrStaleSchedule = errors.New("stale schedule state")

	// Service-level errors.
	ErrorUnauthorized = errors.New("unauthorized")

	// Session token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// IsRetryable reports whether err is worth retrying on a later pass.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockConflict) || errors.Is(err, ErrRepositoryUnavailable)
}
