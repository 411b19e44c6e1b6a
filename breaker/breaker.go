package breaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/marcelsud/webhook-pipeline/source"
)

/* State represents the circuit breaker condition
 *
 * Transitions:
 *
 *	[closed] ---(failures >= failure_threshold)---> [open]
 *	[open] ---(recovery_timeout since last failure)---> [half_open]
 *	[half_open] ---(successes >= success_threshold)---> [closed]
 *	[half_open] ---(any failure)---> [open]
 */
type State int

const (
	Closed State = iota + 1
	Open
	HalfOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time snapshot of a breaker
type Stats struct {
	State        State
	FailureCount int
	SuccessCount int
}

/* Breaker gates retry traffic toward one downstream source.
 * Shared across all retry attempts for the source; safe for concurrent use.
 */
type Breaker struct {
	mu           sync.Mutex
	cfg          source.BreakerConfig
	state        State
	failureCount int
	successCount int
	lastFailure  time.Time

	now func() time.Time // injectable clock for tests
}

// New creates a closed breaker with the given thresholds
func New(cfg source.BreakerConfig) *Breaker {
	return &Breaker{
		cfg:   cfg,
		state: Closed,
		now:   time.Now,
	}
}

/* CanExecute reports whether an attempt may be tried.
 * An open breaker flips to half_open once the recovery timeout has elapsed
 * since the last failure, allowing a probe through.
 */
func (b *Breaker) CanExecute() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed, HalfOpen:
		return true
	case Open:
		if b.now().Sub(b.lastFailure) >= b.cfg.RecoveryTimeout {
			b.state = HalfOpen
			b.successCount = 0
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess notes a successful execution outcome
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = Closed
			b.failureCount = 0
			b.successCount = 0
		}
	case Closed:
		b.failureCount = 0
	}
}

// RecordFailure notes a failed execution outcome
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()

	switch b.state {
	case HalfOpen:
		// Any failure while probing trips the breaker again
		b.state = Open
		b.failureCount++
		b.successCount = 0
	case Closed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = Open
		}
	case Open:
		b.failureCount++
	}
}

// GetStats returns a snapshot of the breaker counters and state
func (b *Breaker) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:        b.state,
		FailureCount: b.failureCount,
		SuccessCount: b.successCount,
	}
}

/* Registry holds one breaker per source.
 * Breakers are created lazily with the source's configured thresholds.
 */
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	sources  *source.Loader
}

// NewRegistry creates a registry backed by the source configuration
func NewRegistry(sources *source.Loader) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		sources:  sources,
	}
}

// Get returns the breaker for a source, creating it if necessary
func (r *Registry) Get(sourceName string) (*Breaker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[sourceName]; ok {
		return b, nil
	}

	src, err := r.sources.Get(sourceName)
	if err != nil {
		return nil, fmt.Errorf("resolving breaker config: %w", err)
	}

	b := New(src.Breaker)
	r.breakers[sourceName] = b
	return b, nil
}

// Stats returns a snapshot of every known breaker keyed by source name
func (r *Registry) Stats() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		stats[name] = b.GetStats()
	}
	return stats
}
