package source

import (
	"fmt"
	"time"

	"github.com/marcelsud/webhook-pipeline/event"
)

/* Source represents an external webhook producer configuration
 * Maps source name to its validation, retry and monitoring settings
 */
type Source struct {
	Name               string
	Enabled            bool
	Secret             string // empty means signature verification is skipped
	SignatureHeader    string // header carrying the HMAC signature
	RateLimitPerMinute int
	MaxRetries         int
	EventTypes         []event.Type          // first entry is the classification fallback
	TypeMappings       map[string]event.Type // payload "event" value -> domain type
	Backoff            BackoffConfig
	Breaker            BreakerConfig
	Health             HealthConfig
}

// BackoffStrategy selects how retry delays grow with the attempt number
type BackoffStrategy int

const (
	Exponential BackoffStrategy = iota + 1
	Linear
)

// String returns the string representation of the strategy
func (s BackoffStrategy) String() string {
	switch s {
	case Exponential:
		return "exponential"
	case Linear:
		return "linear"
	default:
		return "unknown"
	}
}

// NewBackoffStrategy creates a BackoffStrategy from a string
func NewBackoffStrategy(s string) BackoffStrategy {
	switch s {
	case "linear":
		return Linear
	default:
		return Exponential
	}
}

// BackoffConfig controls retry delay computation for a source
type BackoffConfig struct {
	Strategy        BackoffStrategy
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
}

// BreakerConfig controls the per-source circuit breaker
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
}

/* HealthConfig controls periodic health sampling for a source.
 * Thresholds are warning levels; twice the threshold is critical.
 * All rate thresholds are fractions of total events in the window.
 */
type HealthConfig struct {
	CheckInterval           time.Duration
	Window                  time.Duration
	AlertEvery              int // re-alert when consecutive failures hit a multiple of this
	ErrorRateThreshold      float64
	RetryRateThreshold      float64
	DeadLetterRateThreshold float64
	ResponseTimeThreshold   time.Duration
}

// Validate checks if the source configuration is valid
func (s *Source) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if s.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate_limit_per_minute cannot be negative for source %s", s.Name)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative for source %s", s.Name)
	}
	if len(s.EventTypes) == 0 {
		return fmt.Errorf("source %s must declare at least one event type", s.Name)
	}
	for _, t := range s.EventTypes {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("invalid event type for source %s: %w", s.Name, err)
		}
	}
	for key, t := range s.TypeMappings {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("invalid mapping %q for source %s: %w", key, s.Name, err)
		}
	}
	if s.Secret != "" && s.SignatureHeader == "" {
		return fmt.Errorf("source %s has a secret but no signature_header", s.Name)
	}
	if s.Backoff.BaseDelay <= 0 {
		return fmt.Errorf("base_delay must be positive for source %s", s.Name)
	}
	if s.Backoff.MaxDelay < s.Backoff.BaseDelay {
		return fmt.Errorf("max_delay must be >= base_delay for source %s", s.Name)
	}
	if s.Backoff.Strategy == Exponential && s.Backoff.ExponentialBase <= 1 {
		return fmt.Errorf("exponential_base must be > 1 for source %s", s.Name)
	}
	if s.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1 for source %s", s.Name)
	}
	if s.Breaker.SuccessThreshold < 1 {
		return fmt.Errorf("success_threshold must be at least 1 for source %s", s.Name)
	}
	if s.Breaker.RecoveryTimeout <= 0 {
		return fmt.Errorf("recovery_timeout must be positive for source %s", s.Name)
	}
	if s.Health.AlertEvery < 1 {
		return fmt.Errorf("alert_every must be at least 1 for source %s", s.Name)
	}
	return nil
}

// DefaultType returns the fallback event type for unrecognized payloads
func (s *Source) DefaultType() event.Type {
	return s.EventTypes[0]
}

// ResolveType maps a payload event string onto a domain event type
func (s *Source) ResolveType(raw string) event.Type {
	if t, ok := s.TypeMappings[raw]; ok {
		return t
	}
	if t := event.NewType(raw); t != 0 {
		for _, configured := range s.EventTypes {
			if configured == t {
				return t
			}
		}
	}
	return s.DefaultType()
}
