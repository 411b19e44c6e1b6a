package deadletter

import "fmt"

// Reason records why an event was moved out of the retry path
type Reason int

const (
	MaxRetriesExceeded Reason = iota + 1
	CircuitOpen
	InvalidPayload
	SignatureFailed
	DisabledSource
	RateLimited
	NoHandler
	PermanentFailure
	Manual
)

// String returns the string representation of the reason
func (r Reason) String() string {
	switch r {
	case MaxRetriesExceeded:
		return "max-retries-exceeded"
	case CircuitOpen:
		return "circuit-open"
	case InvalidPayload:
		return "invalid-payload"
	case SignatureFailed:
		return "signature-failed"
	case DisabledSource:
		return "disabled-source"
	case RateLimited:
		return "rate-limited"
	case NoHandler:
		return "no-handler"
	case PermanentFailure:
		return "permanent-failure"
	case Manual:
		return "manual"
	default:
		return "unknown"
	}
}

// NewReason creates a Reason from a string
func NewReason(s string) Reason {
	switch s {
	case "max-retries-exceeded":
		return MaxRetriesExceeded
	case "circuit-open":
		return CircuitOpen
	case "invalid-payload":
		return InvalidPayload
	case "signature-failed":
		return SignatureFailed
	case "disabled-source":
		return DisabledSource
	case "rate-limited":
		return RateLimited
	case "no-handler":
		return NoHandler
	case "permanent-failure":
		return PermanentFailure
	case "manual":
		return Manual
	default:
		return 0
	}
}

// Validate checks if the reason is valid
func (r Reason) Validate() error {
	if r < MaxRetriesExceeded || r > Manual {
		return fmt.Errorf("invalid reason: %d", r)
	}
	return nil
}
