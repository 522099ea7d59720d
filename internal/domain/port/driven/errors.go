package driven

import "errors"

// Sentinel errors shared by the driven adapters and the import engine.
var (
	// ErrFetch indicates the remote tracker was unreachable, timed out, or
	// returned a malformed snapshot.
	ErrFetch = errors.New("remote fetch failed")

	// ErrNotify indicates the chat notification could not be delivered.
	ErrNotify = errors.New("notification failed")

	// ErrDuplicateKey indicates a write would violate a uniqueness constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrProjectNotFound indicates the requested project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrIterationNotFound indicates the requested iteration does not exist.
	ErrIterationNotFound = errors.New("iteration not found")

	// ErrEncryptionKeyNotSet is returned when a sealed secret is read but
	// FOCAL_SECRET_KEY has not been configured.
	ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set FOCAL_SECRET_KEY")
)
