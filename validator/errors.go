package validator

import (
	"errors"
	"fmt"
)

/* Validation failures are non-retryable: they surface synchronously to the
 * caller and never enter the retry path. Callers branch with errors.Is/As.
 */

var (
	// ErrUnknownSource means no source configuration matches the name
	ErrUnknownSource = errors.New("unknown source")

	// ErrSourceDisabled means the source exists but is switched off
	ErrSourceDisabled = errors.New("source disabled")

	// ErrRateLimitExceeded means the per-minute cap for the source was hit
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrMalformedPayload means the payload could not be parsed as JSON
	ErrMalformedPayload = errors.New("malformed payload")
)

// SignatureError means the payload signature was missing or did not verify
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature verification failed: %s", e.Reason)
}

// ValidationError means schema or domain validation failed for a field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Reason)
}
