package retry

import (
	"time"

	"github.com/marcelsud/webhook-pipeline/event"
)

/* Item is one scheduled retry attempt, owned exclusively by the Scheduler.
 * Created on scheduling, destroyed on success or promotion to dead-letter.
 */
type Item struct {
	EventID     string         `json:"event_id"`
	SourceName  string         `json:"source_name"`
	Attempt     int            `json:"attempt"`
	NextAttempt time.Time      `json:"next_attempt"`
	Priority    event.Priority `json:"priority"`
	LastError   string         `json:"last_error,omitempty"`

	index int // heap bookkeeping
}
