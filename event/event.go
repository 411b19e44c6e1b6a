package event

import "time"

/* Event represents a received webhook notification in the system
 * Uses value semantics as it represents data, not behavior
 */
type Event struct {
	ID                string
	SourceName        string
	Type              Type
	Payload           map[string]any
	RawPayload        []byte
	Headers           map[string]string
	ReceivedAt        time.Time
	SourceIP          string
	Status            Status
	RetryCount        int
	MaxRetries        int
	LastError         string
	ProcessedAt       time.Time
	SignatureVerified bool
}

// CanRetry reports whether the event has retry attempts remaining
func (e Event) CanRetry() bool {
	return !e.Status.IsFinal() && e.RetryCount < e.MaxRetries
}
