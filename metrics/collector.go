package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-pipeline/breaker"
	"github.com/marcelsud/webhook-pipeline/deadletter"
	"github.com/marcelsud/webhook-pipeline/health"
	"github.com/marcelsud/webhook-pipeline/retry"
)

// PipelineCollector implements the Collector interface over the live services
type PipelineCollector struct {
	scheduler *retry.Scheduler
	breakers  *breaker.Registry
	dead      *deadletter.Store
	monitor   *health.Monitor
}

// NewPipelineCollector creates a collector over the pipeline services
func NewPipelineCollector(scheduler *retry.Scheduler, breakers *breaker.Registry, dead *deadletter.Store, monitor *health.Monitor) *PipelineCollector {
	return &PipelineCollector{
		scheduler: scheduler,
		breakers:  breakers,
		dead:      dead,
		monitor:   monitor,
	}
}

// Collect gathers all metrics from the pipeline
func (c *PipelineCollector) Collect(ctx context.Context) (Metrics, error) {
	depth, err := c.GetRetryQueueDepth(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting retry queue depth: %w", err)
	}

	stats, err := c.GetRetryStats(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting retry stats: %w", err)
	}

	deadCounts, err := c.GetDeadLetterCounts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting dead-letter counts: %w", err)
	}

	breakers, err := c.GetBreakerStates(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting breaker states: %w", err)
	}

	statuses, err := c.GetHealthStatuses(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting health statuses: %w", err)
	}

	return Metrics{
		RetryQueueDepth:  depth,
		RetryStats:       stats,
		DeadLetterCounts: deadCounts,
		BreakerStates:    breakers,
		HealthStatuses:   statuses,
		Timestamp:        time.Now(),
	}, nil
}

// GetRetryQueueDepth returns the number of queued retry items
func (c *PipelineCollector) GetRetryQueueDepth(ctx context.Context) (int64, error) {
	return int64(c.scheduler.Depth()), nil
}

// GetRetryStats returns the scheduler counters
func (c *PipelineCollector) GetRetryStats(ctx context.Context) (RetryStats, error) {
	stats := c.scheduler.Stats()
	return RetryStats{
		TotalRetries:        stats.TotalRetries,
		Successes:           stats.Successes,
		Failures:            stats.Failures,
		CircuitBreakerTrips: stats.CircuitBreakerTrips,
	}, nil
}

// GetDeadLetterCounts returns active dead-letter events per category
func (c *PipelineCollector) GetDeadLetterCounts(ctx context.Context) (map[string]int64, error) {
	stats, err := c.dead.Statistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading dead-letter statistics: %w", err)
	}

	counts := make(map[string]int64, len(stats.ByCategory))
	for category, count := range stats.ByCategory {
		counts[category] = int64(count)
	}
	return counts, nil
}

// GetBreakerStates returns circuit breaker state per source
func (c *PipelineCollector) GetBreakerStates(ctx context.Context) (map[string]string, error) {
	states := make(map[string]string)
	for name, stats := range c.breakers.Stats() {
		states[name] = stats.State.String()
	}
	return states, nil
}

// GetHealthStatuses returns derived health status per source
func (c *PipelineCollector) GetHealthStatuses(ctx context.Context) (map[string]string, error) {
	overall := c.monitor.GetOverallHealth()
	statuses := make(map[string]string, len(overall.Sources))
	for name, status := range overall.Sources {
		statuses[name] = status.String()
	}
	return statuses, nil
}
