package adapter

import "errors"

// Error taxonomy sentinels. Callers inspect them with errors.Is; the sync
// engine's retry policy only re-attempts transient and timeout failures.
var (
	// ErrTransient is a retryable network-level failure.
	ErrTransient = errors.New("transient network error")

	// ErrTimeout is a retryable failure classified distinctly from generic
	// network errors: the request exceeded its deadline and was aborted.
	ErrTimeout = errors.New("request timeout")

	// ErrConflict marks a semantic failure: the remote side holds a
	// conflicting version of the entity. Never retried blindly.
	ErrConflict = errors.New("remote version conflict")

	// ErrValidation marks a rejected payload. Never retried.
	ErrValidation = errors.New("payload rejected")

	// ErrUnauthorized means the bearer token is missing, expired, or wrong.
	ErrUnauthorized = errors.New("client unauthorized")

	// ErrNotFound means the target entity does not exist remotely.
	ErrNotFound = errors.New("remote entity not found")
)

// Retryable reports whether the retry policy may re-attempt after err.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}
