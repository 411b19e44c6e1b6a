package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-pipeline/health"
	"github.com/redis/go-redis/v9"
)

// HealthStore implements health.Repository over Redis sorted sets
type HealthStore struct {
	client *redis.Client
}

// StoreSample appends a metric sample to its per-source time series
func (s *HealthStore) StoreSample(ctx context.Context, sample health.Sample) error {
	data, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("marshaling health sample: %w", err)
	}

	key := healthKey(sample.SourceName, sample.Type)
	err = s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(sample.RecordedAt.Unix()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("storing health sample: %w", err)
	}

	// Trim history beyond the retention window
	cutoff := time.Now().Add(-healthRetention).Unix()
	s.client.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", cutoff))

	return nil
}

// Samples returns stored samples for one metric recorded at or after since
func (s *HealthStore) Samples(ctx context.Context, sourceName string, t health.MetricType, since time.Time) ([]health.Sample, error) {
	key := healthKey(sourceName, t)

	members, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.Unix()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("querying health samples: %w", err)
	}

	samples := make([]health.Sample, 0, len(members))
	for _, member := range members {
		var sample health.Sample
		if err := json.Unmarshal([]byte(member), &sample); err != nil {
			continue
		}
		samples = append(samples, sample)
	}

	return samples, nil
}

func healthKey(sourceName string, t health.MetricType) string {
	return fmt.Sprintf("%s:%s:%s", healthPrefix, sourceName, t.String())
}
