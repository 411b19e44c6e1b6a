package deadletter

import (
	"context"
	"time"

	"github.com/marcelsud/webhook-pipeline/event"
)

/* Event is a permanently-failed (or manually quarantined) webhook event
 * awaiting triage. Category is derived once at creation and never changes.
 *
 * RetryAttempts is seeded from the pipeline retry count at quarantine time
 * and thereafter counts failed reprocess attempts; the pipeline's own
 * RetryCount restarts at zero whenever the event is reinjected.
 */
type Event struct {
	ID                     string
	OriginalEventID        string
	SourceName             string
	EventType              event.Type
	Payload                map[string]any
	RawPayload             []byte
	Headers                map[string]string
	ReceivedAt             time.Time
	QuarantinedAt          time.Time
	Reason                 Reason
	Status                 Status
	Category               Category
	RetryAttempts          int
	LastError              string
	Tags                   []string
	AssignedTo             string
	Notes                  string
	InvestigationStartedAt time.Time
}

// Filter narrows dead-letter listings; zero values match everything
type Filter struct {
	Status     Status
	Category   Category
	SourceName string
	Reason     Reason
	AssignedTo string
	Limit      int
	Offset     int
}

// Matches reports whether the event satisfies every set filter field
func (f Filter) Matches(ev Event) bool {
	if f.Status != 0 && ev.Status != f.Status {
		return false
	}
	if f.Category != 0 && ev.Category != f.Category {
		return false
	}
	if f.SourceName != "" && ev.SourceName != f.SourceName {
		return false
	}
	if f.Reason != 0 && ev.Reason != f.Reason {
		return false
	}
	if f.AssignedTo != "" && ev.AssignedTo != f.AssignedTo {
		return false
	}
	return true
}

// Reader provides read operations for quarantined events
type Reader interface {
	Get(ctx context.Context, id string) (Event, error)
	List(ctx context.Context, filter Filter) ([]Event, error)
	// CountActive returns the number of events in Active status for a category
	CountActive(ctx context.Context, category Category) (int, error)
}

// Writer provides write operations for quarantined events
type Writer interface {
	Store(ctx context.Context, ev Event) error
	Update(ctx context.Context, ev Event) error
	// Delete physically removes a record; used only by retention cleanup
	Delete(ctx context.Context, id string) error
}

type Repository interface {
	Reader
	Writer
}
