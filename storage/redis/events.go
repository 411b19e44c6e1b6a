package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-pipeline/event"
	"github.com/redis/go-redis/v9"
)

// EventStore implements event.Repository over Redis hashes
type EventStore struct {
	client *redis.Client
}

// Store persists an event record and indexes it by source
func (s *EventStore) Store(ctx context.Context, ev event.Event) error {
	if err := s.writeEvent(ctx, ev); err != nil {
		return err
	}

	indexKey := fmt.Sprintf("%s:%s", sourceIndexPrefix, ev.SourceName)
	err := s.client.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(ev.ReceivedAt.Unix()),
		Member: ev.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("indexing event by source: %w", err)
	}

	// Keep the index bounded; stale members are also skipped on read
	cutoff := time.Now().Add(-sourceIndexRetention).Unix()
	s.client.ZRemRangeByScore(ctx, indexKey, "0", fmt.Sprintf("%d", cutoff))

	return nil
}

// Update rewrites an event record in place
func (s *EventStore) Update(ctx context.Context, ev event.Event) error {
	return s.writeEvent(ctx, ev)
}

// Get retrieves an event by ID from its Redis hash
func (s *EventStore) Get(ctx context.Context, id string) (event.Event, error) {
	hashKey := fmt.Sprintf("%s:%s", eventPrefix, id)

	data, err := s.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return event.Event{}, fmt.Errorf("getting event: %w", err)
	}
	if len(data) == 0 {
		return event.Event{}, fmt.Errorf("event not found: %s", id)
	}

	return eventFromHash(data)
}

// ListBySource retrieves events received at or after since for one source
func (s *EventStore) ListBySource(ctx context.Context, sourceName string, since time.Time) ([]event.Event, error) {
	indexKey := fmt.Sprintf("%s:%s", sourceIndexPrefix, sourceName)

	ids, err := s.client.ZRangeByScore(ctx, indexKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.Unix()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("querying source index: %w", err)
	}

	events := make([]event.Event, 0, len(ids))
	for _, id := range ids {
		ev, err := s.Get(ctx, id)
		if err != nil {
			// Record expired via TTL; drop the dangling index member
			s.client.ZRem(ctx, indexKey, id)
			continue
		}
		events = append(events, ev)
	}

	return events, nil
}

// SetTTL sets an expiration time on an event record
func (s *EventStore) SetTTL(ctx context.Context, id string, ttl time.Duration) error {
	hashKey := fmt.Sprintf("%s:%s", eventPrefix, id)

	err := s.client.Expire(ctx, hashKey, ttl).Err()
	if err != nil {
		return fmt.Errorf("setting TTL on event: %w", err)
	}

	return nil
}

func (s *EventStore) writeEvent(ctx context.Context, ev event.Event) error {
	hashKey := fmt.Sprintf("%s:%s", eventPrefix, ev.ID)

	payloadJSON, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	headersJSON, err := json.Marshal(ev.Headers)
	if err != nil {
		return fmt.Errorf("marshaling headers: %w", err)
	}

	var processedAt int64
	if !ev.ProcessedAt.IsZero() {
		processedAt = ev.ProcessedAt.Unix()
	}

	err = s.client.HSet(ctx, hashKey, map[string]interface{}{
		"id":                 ev.ID,
		"source_name":        ev.SourceName,
		"type":               ev.Type.String(),
		"payload":            string(payloadJSON),
		"raw_payload":        ev.RawPayload,
		"headers":            string(headersJSON),
		"received_at":        ev.ReceivedAt.Unix(),
		"source_ip":          ev.SourceIP,
		"status":             ev.Status.String(),
		"retry_count":        ev.RetryCount,
		"max_retries":        ev.MaxRetries,
		"last_error":         ev.LastError,
		"processed_at":       processedAt,
		"signature_verified": ev.SignatureVerified,
	}).Err()
	if err != nil {
		return fmt.Errorf("storing event record: %w", err)
	}

	return nil
}

func eventFromHash(data map[string]string) (event.Event, error) {
	payload := make(map[string]any)
	if raw, ok := data["payload"]; ok && raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return event.Event{}, fmt.Errorf("unmarshaling payload: %w", err)
		}
	}

	headers := make(map[string]string)
	if raw, ok := data["headers"]; ok && raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &headers); err != nil {
			return event.Event{}, fmt.Errorf("unmarshaling headers: %w", err)
		}
	}

	return event.Event{
		ID:                data["id"],
		SourceName:        data["source_name"],
		Type:              event.NewType(data["type"]),
		Payload:           payload,
		RawPayload:        []byte(data["raw_payload"]),
		Headers:           headers,
		ReceivedAt:        unixOrZero(data["received_at"]),
		SourceIP:          data["source_ip"],
		Status:            event.NewStatus(data["status"]),
		RetryCount:        int(parseInt64(data["retry_count"])),
		MaxRetries:        int(parseInt64(data["max_retries"])),
		LastError:         data["last_error"],
		ProcessedAt:       unixOrZero(data["processed_at"]),
		SignatureVerified: data["signature_verified"] == "1" || data["signature_verified"] == "true",
	}, nil
}
