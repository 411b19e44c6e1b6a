package retry

import "context"

/* Store persists queue items for crash recovery.
 * The in-memory heap is the working structure; the store is the system of
 * record, reloaded on startup and whenever the heap drains.
 */
type Store interface {
	StoreItem(ctx context.Context, item Item) error
	RemoveItem(ctx context.Context, eventID string) error
	PendingItems(ctx context.Context) ([]Item, error)
}
