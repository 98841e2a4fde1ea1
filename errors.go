package entitled

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("entitled: not found")
	ErrInvalidInput = errors.New("entitled: invalid input")

	// Profile errors
	ErrProfileNotFound = errors.New("entitled: profile not found")
	ErrProfileExists   = errors.New("entitled: profile already exists")

	// Usage errors
	ErrUsageLogNotFound = errors.New("entitled: usage log entry not found")

	// Add-on errors
	ErrAddonNotPermitted = errors.New("entitled: add-on not permitted on this tier")

	// Concurrency errors
	ErrVersionConflict = errors.New("entitled: concurrent update conflict")
	ErrRetriesExceeded = errors.New("entitled: conflict retries exceeded")

	// Store errors
	ErrStoreUnavailable = errors.New("entitled: store unavailable")
	ErrStoreClosed      = errors.New("entitled: store is closed")
	ErrMigrationFailed  = errors.New("entitled: migration failed")

	// Cache errors
	ErrCacheMiss = errors.New("entitled: cache miss")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("entitled: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error indicates a missing record.
// Recoverable at the profile level by creating the record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrProfileNotFound) ||
		errors.Is(err, ErrUsageLogNotFound)
}

// IsConflict returns true if the error is an optimistic-concurrency collision.
// The losing writer re-reads and retries.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrProfileExists)
}

// IsTransient returns true if the error is temporary and the operation can be
// retried with backoff. Transient failures must never be interpreted as a
// quota denial.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrRetriesExceeded) ||
		errors.Is(err, ErrStoreClosed)
}
