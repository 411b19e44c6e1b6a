package health

import (
	"context"
	"fmt"
	"time"
)

// MetricType identifies one sampled reliability metric
type MetricType int

const (
	SuccessRate MetricType = iota + 1
	ErrorRate
	RetryRate
	DeadLetterRate
	Throughput
	ResponseTime
)

// String returns the string representation of the metric type
func (t MetricType) String() string {
	switch t {
	case SuccessRate:
		return "success_rate"
	case ErrorRate:
		return "error_rate"
	case RetryRate:
		return "retry_rate"
	case DeadLetterRate:
		return "dead_letter_rate"
	case Throughput:
		return "throughput"
	case ResponseTime:
		return "response_time"
	default:
		return "unknown"
	}
}

// NewMetricType creates a MetricType from a string
func NewMetricType(s string) MetricType {
	switch s {
	case "success_rate":
		return SuccessRate
	case "error_rate":
		return ErrorRate
	case "retry_rate":
		return RetryRate
	case "dead_letter_rate":
		return DeadLetterRate
	case "throughput":
		return Throughput
	case "response_time":
		return ResponseTime
	default:
		return 0
	}
}

/* Status classifies a source's recent reliability
 * Ordered from best to worst so the overall status is a simple max
 */
type Status int

const (
	Healthy Status = iota + 1
	Warning
	Critical
	Down
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Healthy:
		return "healthy"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Healthy || s > Down {
		return fmt.Errorf("invalid health status: %d", s)
	}
	return nil
}

// Sample is one stored metric observation
type Sample struct {
	SourceName string     `json:"source_name"`
	Type       MetricType `json:"type"`
	Value      float64    `json:"value"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// Report is the latest evaluated health of one source
type Report struct {
	SourceName          string                 `json:"source_name"`
	Status              Status                 `json:"status"`
	Metrics             map[MetricType]float64 `json:"metrics"`
	ConsecutiveFailures int                    `json:"consecutive_failures"`
	CheckedAt           time.Time              `json:"checked_at"`
}

// Overall summarizes health across every monitored source
type Overall struct {
	Status  Status            `json:"status"`
	Counts  map[string]int    `json:"counts"`
	Sources map[string]Status `json:"sources"`
}

// Repository persists metric samples for history queries
type Repository interface {
	StoreSample(ctx context.Context, sample Sample) error
	Samples(ctx context.Context, sourceName string, t MetricType, since time.Time) ([]Sample, error)
}
