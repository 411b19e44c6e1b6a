package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/marcelsud/webhook-pipeline/retry"
	"github.com/redis/go-redis/v9"
)

// RetryStore implements retry.Store over a Redis hash
type RetryStore struct {
	client *redis.Client
}

// StoreItem persists a retry queue item keyed by its event ID
func (s *RetryStore) StoreItem(ctx context.Context, item retry.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshaling retry item: %w", err)
	}

	err = s.client.HSet(ctx, retryItemsKey, item.EventID, data).Err()
	if err != nil {
		return fmt.Errorf("storing retry item: %w", err)
	}

	return nil
}

// RemoveItem deletes the persisted retry item for an event
func (s *RetryStore) RemoveItem(ctx context.Context, eventID string) error {
	err := s.client.HDel(ctx, retryItemsKey, eventID).Err()
	if err != nil {
		return fmt.Errorf("removing retry item: %w", err)
	}
	return nil
}

// PendingItems returns every persisted retry item for crash recovery
func (s *RetryStore) PendingItems(ctx context.Context) ([]retry.Item, error) {
	data, err := s.client.HGetAll(ctx, retryItemsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("loading retry items: %w", err)
	}

	items := make([]retry.Item, 0, len(data))
	for eventID, raw := range data {
		var item retry.Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			// Drop unreadable items rather than wedging recovery
			s.client.HDel(ctx, retryItemsKey, eventID)
			continue
		}
		items = append(items, item)
	}

	return items, nil
}
