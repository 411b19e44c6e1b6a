package event

import "fmt"

/* Priority orders retry attempts: critical beats high beats normal beats low.
 * The zero value is "unset" so callers can ask the scheduler to infer one.
 */
type Priority int

const (
	Low Priority = iota + 1
	Normal
	High
	Critical
)

// String returns the string representation of the priority
func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// NewPriority creates a Priority from a string
func NewPriority(s string) Priority {
	switch s {
	case "low":
		return Low
	case "normal":
		return Normal
	case "high":
		return High
	case "critical":
		return Critical
	default:
		return Normal
	}
}

// Validate checks if the priority is valid
func (p Priority) Validate() error {
	if p < Low || p > Critical {
		return fmt.Errorf("invalid priority: %d", p)
	}
	return nil
}
