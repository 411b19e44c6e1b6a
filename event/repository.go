package event

import (
	"context"
	"time"
)

/* Small, focused interfaces following "The Go Way"
 * Interfaces abstract behavior, not things
 * Written for users of the API, not just for testing
 */

// Reader provides read operations for events
type Reader interface {
	Get(ctx context.Context, id string) (Event, error)
	/* ListBySource returns events for a source received at or after since
	 * The health monitor uses this to sample a trailing window
	 */
	ListBySource(ctx context.Context, sourceName string, since time.Time) ([]Event, error)
}

// Writer provides write operations for events
type Writer interface {
	Store(ctx context.Context, ev Event) error
	Update(ctx context.Context, ev Event) error
	/* SetTTL sets an expiration time on an event record
	 * Used to automatically clean up completed and rejected events
	 */
	SetTTL(ctx context.Context, id string, ttl time.Duration) error
}

/* Interface composition - combining small interfaces into larger ones
 * This is preferred over large monolithic interfaces
 */
type Repository interface {
	Reader
	Writer
}
