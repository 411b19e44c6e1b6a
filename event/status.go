package event

import "fmt"

/* Status represents the current state of a webhook event
 *
 * State machine:
 *
 *	[pending] ---(dispatch)---> [processing]
 *	[processing] ---(success)---> [completed]
 *	[processing] ---(failure, attempts left)---> [retrying]
 *	[retrying] ---(next_eligible_time reached)---> [processing]
 *	[processing] ---(failure, no attempts left)---> [dead_letter]
 *	[processing] ---(failure)---> [failed]
 *	validation failure ---> [rejected]
 */
type Status int

const (
	Pending Status = iota + 1
	Processing
	Completed
	Failed
	Retrying
	DeadLetter
	Rejected
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Retrying:
		return "retrying"
	case DeadLetter:
		return "dead_letter"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(str string) Status {
	switch str {
	case "pending":
		return Pending
	case "processing":
		return Processing
	case "completed":
		return Completed
	case "failed":
		return Failed
	case "retrying":
		return Retrying
	case "dead_letter":
		return DeadLetter
	case "rejected":
		return Rejected
	default:
		return Pending
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Pending || s > Rejected {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if the status is a terminal state
func (s Status) IsFinal() bool {
	return s == Completed || s == DeadLetter || s == Rejected
}
