package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-pipeline/deadletter"
	"github.com/marcelsud/webhook-pipeline/event"
	"github.com/redis/go-redis/v9"
)

// DeadLetterStore implements deadletter.Repository over Redis
type DeadLetterStore struct {
	client *redis.Client
}

/* deadLetterRecord is the stored shape of a quarantined event.
 * Enums are stored as strings so the records stay readable in redis-cli.
 */
type deadLetterRecord struct {
	ID                     string            `json:"id"`
	OriginalEventID        string            `json:"original_event_id"`
	SourceName             string            `json:"source_name"`
	EventType              string            `json:"event_type"`
	Payload                map[string]any    `json:"payload,omitempty"`
	RawPayload             []byte            `json:"raw_payload,omitempty"`
	Headers                map[string]string `json:"headers,omitempty"`
	ReceivedAt             time.Time         `json:"received_at"`
	QuarantinedAt          time.Time         `json:"quarantined_at"`
	Reason                 string            `json:"reason"`
	Status                 string            `json:"status"`
	Category               string            `json:"category"`
	RetryAttempts          int               `json:"retry_attempts"`
	LastError              string            `json:"last_error,omitempty"`
	Tags                   []string          `json:"tags,omitempty"`
	AssignedTo             string            `json:"assigned_to,omitempty"`
	Notes                  string            `json:"notes,omitempty"`
	InvestigationStartedAt time.Time         `json:"investigation_started_at"`
}

// Store persists a quarantined event and indexes it by quarantine time
func (s *DeadLetterStore) Store(ctx context.Context, dl deadletter.Event) error {
	data, err := json.Marshal(toRecord(dl))
	if err != nil {
		return fmt.Errorf("marshaling dead-letter event: %w", err)
	}

	key := fmt.Sprintf("%s:%s", deadLetterPrefix, dl.ID)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("storing dead-letter event: %w", err)
	}

	err = s.client.ZAdd(ctx, deadLetterIndex, redis.Z{
		Score:  float64(dl.QuarantinedAt.Unix()),
		Member: dl.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("indexing dead-letter event: %w", err)
	}

	return nil
}

// Update rewrites a quarantined event record
func (s *DeadLetterStore) Update(ctx context.Context, dl deadletter.Event) error {
	data, err := json.Marshal(toRecord(dl))
	if err != nil {
		return fmt.Errorf("marshaling dead-letter event: %w", err)
	}

	key := fmt.Sprintf("%s:%s", deadLetterPrefix, dl.ID)
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("updating dead-letter event: %w", err)
	}
	return nil
}

// Get retrieves a quarantined event by ID
func (s *DeadLetterStore) Get(ctx context.Context, id string) (deadletter.Event, error) {
	key := fmt.Sprintf("%s:%s", deadLetterPrefix, id)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return deadletter.Event{}, fmt.Errorf("dead-letter event not found: %s", id)
	}
	if err != nil {
		return deadletter.Event{}, fmt.Errorf("getting dead-letter event: %w", err)
	}

	var record deadLetterRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return deadletter.Event{}, fmt.Errorf("unmarshaling dead-letter event: %w", err)
	}

	return fromRecord(record), nil
}

/* List returns quarantined events matching the filter, newest first.
 * Filtering happens client-side over the time index; limit and offset
 * apply after filtering.
 */
func (s *DeadLetterStore) List(ctx context.Context, filter deadletter.Filter) ([]deadletter.Event, error) {
	ids, err := s.client.ZRevRange(ctx, deadLetterIndex, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("querying dead-letter index: %w", err)
	}

	var matched []deadletter.Event
	for _, id := range ids {
		dl, err := s.Get(ctx, id)
		if err != nil {
			// Record deleted; drop the dangling index member
			s.client.ZRem(ctx, deadLetterIndex, id)
			continue
		}
		if filter.Matches(dl) {
			matched = append(matched, dl)
		}
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

// Delete physically removes a quarantined event
func (s *DeadLetterStore) Delete(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s:%s", deadLetterPrefix, id)

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("deleting dead-letter event: %w", err)
	}
	if err := s.client.ZRem(ctx, deadLetterIndex, id).Err(); err != nil {
		return fmt.Errorf("deindexing dead-letter event: %w", err)
	}
	return nil
}

// CountActive counts events in Active status for one category
func (s *DeadLetterStore) CountActive(ctx context.Context, category deadletter.Category) (int, error) {
	events, err := s.List(ctx, deadletter.Filter{Status: deadletter.Active, Category: category})
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

func toRecord(dl deadletter.Event) deadLetterRecord {
	return deadLetterRecord{
		ID:                     dl.ID,
		OriginalEventID:        dl.OriginalEventID,
		SourceName:             dl.SourceName,
		EventType:              dl.EventType.String(),
		Payload:                dl.Payload,
		RawPayload:             dl.RawPayload,
		Headers:                dl.Headers,
		ReceivedAt:             dl.ReceivedAt,
		QuarantinedAt:          dl.QuarantinedAt,
		Reason:                 dl.Reason.String(),
		Status:                 dl.Status.String(),
		Category:               dl.Category.String(),
		RetryAttempts:          dl.RetryAttempts,
		LastError:              dl.LastError,
		Tags:                   dl.Tags,
		AssignedTo:             dl.AssignedTo,
		Notes:                  dl.Notes,
		InvestigationStartedAt: dl.InvestigationStartedAt,
	}
}

func fromRecord(record deadLetterRecord) deadletter.Event {
	return deadletter.Event{
		ID:                     record.ID,
		OriginalEventID:        record.OriginalEventID,
		SourceName:             record.SourceName,
		EventType:              event.NewType(record.EventType),
		Payload:                record.Payload,
		RawPayload:             record.RawPayload,
		Headers:                record.Headers,
		ReceivedAt:             record.ReceivedAt,
		QuarantinedAt:          record.QuarantinedAt,
		Reason:                 deadletter.NewReason(record.Reason),
		Status:                 deadletter.NewStatus(record.Status),
		Category:               deadletter.NewCategory(record.Category),
		RetryAttempts:          record.RetryAttempts,
		LastError:              record.LastError,
		Tags:                   record.Tags,
		AssignedTo:             record.AssignedTo,
		Notes:                  record.Notes,
		InvestigationStartedAt: record.InvestigationStartedAt,
	}
}
