package core

import "errors"

// Evaluation error taxonomy. Storage adapters wrap their native failures
// into these sentinels so callers can branch with errors.Is.
var (
	// ErrUserNotFound: the referenced user does not exist. Fatal for the
	// call; no state was changed.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidEvent: the event type is outside the recognized
	// enumeration. Rejected before any state mutation.
	ErrInvalidEvent = errors.New("invalid event type")

	// ErrConflict: a concurrent update to the same user was detected at
	// the storage layer. The whole evaluation is retried a bounded number
	// of times before this surfaces.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrStorageUnavailable: the persistence layer could not be reached.
	// Fatal for the call; the transaction rolls back in its entirety.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
