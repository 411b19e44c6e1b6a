package source

import (
	"fmt"
	"os"
	"time"

	"github.com/marcelsud/webhook-pipeline/event"
	"gopkg.in/yaml.v3"
)

/* Loader manages source configuration from sources.yaml
 * Provides in-memory lookup for fast access
 */

// Config represents the structure of sources.yaml
type Config struct {
	Sources []SourceConfig `yaml:"sources"`
}

// SourceConfig represents a single source in the YAML file
type SourceConfig struct {
	Name               string            `yaml:"name"`
	Enabled            *bool             `yaml:"enabled"` // default: true
	Secret             string            `yaml:"secret"`
	SignatureHeader    string            `yaml:"signature_header"`
	RateLimitPerMinute int               `yaml:"rate_limit_per_minute"` // default: 60
	MaxRetries         int               `yaml:"max_retries"`           // default: 3
	EventTypes         []string          `yaml:"event_types"`
	TypeMappings       map[string]string `yaml:"type_mappings"`

	BackoffStrategy  string  `yaml:"backoff_strategy"`   // default: exponential
	BaseDelaySeconds float64 `yaml:"base_delay_seconds"` // default: 1
	MaxDelaySeconds  float64 `yaml:"max_delay_seconds"`  // default: 300
	ExponentialBase  float64 `yaml:"exponential_base"`   // default: 2

	FailureThreshold       int `yaml:"failure_threshold"`        // default: 5
	SuccessThreshold       int `yaml:"success_threshold"`        // default: 2
	RecoveryTimeoutSeconds int `yaml:"recovery_timeout_seconds"` // default: 60

	CheckIntervalMinutes      int     `yaml:"check_interval_minutes"`       // default: 5
	WindowMinutes             int     `yaml:"window_minutes"`               // default: 60
	AlertEvery                int     `yaml:"alert_every"`                  // default: 3
	ErrorRateThreshold        float64 `yaml:"error_rate_threshold"`         // default: 0.1
	RetryRateThreshold        float64 `yaml:"retry_rate_threshold"`         // default: 0.2
	DeadLetterRateThreshold   float64 `yaml:"dead_letter_rate_threshold"`   // default: 0.05
	ResponseTimeThresholdSecs float64 `yaml:"response_time_threshold_secs"` // default: 30
}

// Loader holds the loaded sources
type Loader struct {
	sources map[string]*Source
}

// NewLoader creates a new source loader
func NewLoader() *Loader {
	return &Loader{
		sources: make(map[string]*Source),
	}
}

// Load reads and parses the sources.yaml file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading sources file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing sources YAML: %w", err)
	}

	for _, sc := range config.Sources {
		src, err := sc.toSource()
		if err != nil {
			return err
		}
		if err := src.Validate(); err != nil {
			return fmt.Errorf("validating source: %w", err)
		}
		l.sources[src.Name] = src
	}

	return nil
}

// Add registers a source directly, validating it first
func (l *Loader) Add(src *Source) error {
	if err := src.Validate(); err != nil {
		return fmt.Errorf("validating source: %w", err)
	}
	l.sources[src.Name] = src
	return nil
}

// Get retrieves a source by its name
func (l *Loader) Get(name string) (*Source, error) {
	src, exists := l.sources[name]
	if !exists {
		return nil, fmt.Errorf("source not found: %s", name)
	}
	return src, nil
}

// List returns all loaded sources
func (l *Loader) List() []*Source {
	sources := make([]*Source, 0, len(l.sources))
	for _, src := range l.sources {
		sources = append(sources, src)
	}
	return sources
}

// Exists checks if a source name is configured
func (l *Loader) Exists(name string) bool {
	_, exists := l.sources[name]
	return exists
}

// toSource converts a YAML record into a Source, applying defaults
func (sc SourceConfig) toSource() (*Source, error) {
	enabled := true
	if sc.Enabled != nil {
		enabled = *sc.Enabled
	}

	rateLimit := sc.RateLimitPerMinute
	if rateLimit == 0 {
		rateLimit = 60
	}
	maxRetries := sc.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	types := make([]event.Type, 0, len(sc.EventTypes))
	for _, raw := range sc.EventTypes {
		t := event.NewType(raw)
		if t == 0 {
			return nil, fmt.Errorf("unknown event type %q for source %s", raw, sc.Name)
		}
		types = append(types, t)
	}

	var mappings map[string]event.Type
	if len(sc.TypeMappings) > 0 {
		mappings = make(map[string]event.Type, len(sc.TypeMappings))
		for key, raw := range sc.TypeMappings {
			t := event.NewType(raw)
			if t == 0 {
				return nil, fmt.Errorf("unknown event type %q in mapping for source %s", raw, sc.Name)
			}
			mappings[key] = t
		}
	}

	backoff := BackoffConfig{
		Strategy:        NewBackoffStrategy(sc.BackoffStrategy),
		BaseDelay:       secondsOrDefault(sc.BaseDelaySeconds, time.Second),
		MaxDelay:        secondsOrDefault(sc.MaxDelaySeconds, 5*time.Minute),
		ExponentialBase: sc.ExponentialBase,
	}
	if backoff.ExponentialBase == 0 {
		backoff.ExponentialBase = 2
	}

	breaker := BreakerConfig{
		FailureThreshold: defaultInt(sc.FailureThreshold, 5),
		SuccessThreshold: defaultInt(sc.SuccessThreshold, 2),
		RecoveryTimeout:  time.Duration(defaultInt(sc.RecoveryTimeoutSeconds, 60)) * time.Second,
	}

	health := HealthConfig{
		CheckInterval:           time.Duration(defaultInt(sc.CheckIntervalMinutes, 5)) * time.Minute,
		Window:                  time.Duration(defaultInt(sc.WindowMinutes, 60)) * time.Minute,
		AlertEvery:              defaultInt(sc.AlertEvery, 3),
		ErrorRateThreshold:      defaultFloat(sc.ErrorRateThreshold, 0.1),
		RetryRateThreshold:      defaultFloat(sc.RetryRateThreshold, 0.2),
		DeadLetterRateThreshold: defaultFloat(sc.DeadLetterRateThreshold, 0.05),
		ResponseTimeThreshold:   secondsOrDefault(sc.ResponseTimeThresholdSecs, 30*time.Second),
	}

	return &Source{
		Name:               sc.Name,
		Enabled:            enabled,
		Secret:             sc.Secret,
		SignatureHeader:    sc.SignatureHeader,
		RateLimitPerMinute: rateLimit,
		MaxRetries:         maxRetries,
		EventTypes:         types,
		TypeMappings:       mappings,
		Backoff:            backoff,
		Breaker:            breaker,
		Health:             health,
	}, nil
}

func secondsOrDefault(secs float64, def time.Duration) time.Duration {
	if secs <= 0 {
		return def
	}
	return time.Duration(secs * float64(time.Second))
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func defaultFloat(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
