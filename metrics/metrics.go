package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of the webhook pipeline.
type Metrics struct {
	// RetryQueueDepth is the number of scheduled retry attempts waiting
	RetryQueueDepth int64 `json:"retry_queue_depth"`

	// RetryStats are the scheduler's aggregate counters
	RetryStats RetryStats `json:"retry_stats"`

	// DeadLetterCounts maps triage category to active dead-letter events
	DeadLetterCounts map[string]int64 `json:"dead_letter_counts"`

	// BreakerStates maps source name to circuit breaker state
	BreakerStates map[string]string `json:"breaker_states"`

	// HealthStatuses maps source name to derived health status
	HealthStatuses map[string]string `json:"health_statuses"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// RetryStats mirrors the scheduler's aggregate counters.
type RetryStats struct {
	// TotalRetries is the number of retry attempts ever scheduled
	TotalRetries int64 `json:"total_retries"`

	// Successes is the number of retries that completed their event
	Successes int64 `json:"successes"`

	// Failures is the number of retries that failed again
	Failures int64 `json:"failures"`

	// CircuitBreakerTrips is the number of schedules refused by open breakers
	CircuitBreakerTrips int64 `json:"circuit_breaker_trips"`
}

// Collector defines the interface for collecting metrics from the pipeline.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetRetryQueueDepth returns the number of queued retry items
	GetRetryQueueDepth(ctx context.Context) (int64, error)

	// GetRetryStats returns the scheduler counters
	GetRetryStats(ctx context.Context) (RetryStats, error)

	// GetDeadLetterCounts returns active dead-letter events per category
	GetDeadLetterCounts(ctx context.Context) (map[string]int64, error)

	// GetBreakerStates returns circuit breaker state per source
	GetBreakerStates(ctx context.Context) (map[string]string, error)

	// GetHealthStatuses returns derived health status per source
	GetHealthStatuses(ctx context.Context) (map[string]string, error)
}
