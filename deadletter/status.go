package deadletter

import "fmt"

/* Status tracks triage of a quarantined event
 * Follows the lifecycle: Active -> Investigating -> Resolved -> Archived
 * Reprocessing is a transient state while an event re-enters the pipeline
 */
type Status int

const (
	Active Status = iota + 1
	Investigating
	Resolved
	Archived
	Reprocessing
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Investigating:
		return "investigating"
	case Resolved:
		return "resolved"
	case Archived:
		return "archived"
	case Reprocessing:
		return "reprocessing"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(s string) Status {
	switch s {
	case "active":
		return Active
	case "investigating":
		return Investigating
	case "resolved":
		return Resolved
	case "archived":
		return Archived
	case "reprocessing":
		return Reprocessing
	default:
		return 0
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Active || s > Reprocessing {
		return fmt.Errorf("invalid dead-letter status: %d", s)
	}
	return nil
}
