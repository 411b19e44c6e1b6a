package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

/* Redis implementation of the pipeline's persistence collaborator:
 * event records, retry queue items, dead-letter quarantine and health
 * metric samples. Uses Redis Hashes for records, Sorted Sets for
 * time-ordered indexes and a Hash for the pending retry items.
 *
 * One connection, four focused views: each domain package depends on its
 * own small repository interface, so the views implement them separately.
 */

const (
	eventPrefix       = "event"            // Hash naming: event:{event_id}
	sourceIndexPrefix = "events:source"    // ZSet naming: events:source:{source_name}
	retryItemsKey     = "retry:items"      // Hash: field event_id -> item JSON
	deadLetterPrefix  = "deadletter"       // Key naming: deadletter:{id}
	deadLetterIndex   = "deadletter:index" // ZSet: id scored by quarantined_at
	healthPrefix      = "health"           // ZSet naming: health:{source}:{metric}

	// sourceIndexRetention bounds the per-source event index so health
	// sampling windows stay cheap to query
	sourceIndexRetention = 7 * 24 * time.Hour

	// healthRetention bounds stored metric history
	healthRetention = 7 * 24 * time.Hour
)

type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Redis repository
func NewRepository(addr, password string, db int) (*Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Repository{
		client: client,
	}, nil
}

// Events returns the event.Repository view
func (r *Repository) Events() *EventStore {
	return &EventStore{client: r.client}
}

// RetryItems returns the retry.Store view
func (r *Repository) RetryItems() *RetryStore {
	return &RetryStore{client: r.client}
}

// DeadLetters returns the deadletter.Repository view
func (r *Repository) DeadLetters() *DeadLetterStore {
	return &DeadLetterStore{client: r.client}
}

// Health returns the health.Repository view
func (r *Repository) Health() *HealthStore {
	return &HealthStore{client: r.client}
}

// Close closes the Redis connection
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

// GetClient returns the underlying Redis client for advanced operations
func (r *Repository) GetClient() *redis.Client {
	return r.client
}

// Helper functions

func parseInt64(s string) int64 {
	var result int64
	fmt.Sscanf(s, "%d", &result)
	return result
}

func unixOrZero(s string) time.Time {
	secs := parseInt64(s)
	if secs == 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}
