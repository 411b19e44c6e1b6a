package retry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcelsud/webhook-pipeline/breaker"
	"github.com/marcelsud/webhook-pipeline/deadletter"
	"github.com/marcelsud/webhook-pipeline/event"
	"github.com/marcelsud/webhook-pipeline/source"
)

// ProcessFunc executes one retry attempt, typically the handler dispatch
type ProcessFunc func(ctx context.Context, ev event.Event) error

// Stats are the scheduler's aggregate counters
type Stats struct {
	TotalRetries        int64 `json:"total_retries"`
	Successes           int64 `json:"successes"`
	Failures            int64 `json:"failures"`
	CircuitBreakerTrips int64 `json:"circuit_breaker_trips"`
}

// Config controls the scheduler processing loop
type Config struct {
	Interval    time.Duration // how often the loop drains ready items
	BatchSize   int           // max items popped per tick
	Concurrency int           // max simultaneous in-flight retries
}

/* Scheduler owns the retry priority queue and the processing loop.
 * All queue and breaker bookkeeping happens on the loop goroutine; only the
 * retry executions themselves run concurrently, bounded by a semaphore.
 */
type Scheduler struct {
	cfg      Config
	events   event.Repository
	store    Store
	breakers *breaker.Registry
	sources  *source.Loader
	dead     *deadletter.Store
	log      *slog.Logger

	processor ProcessFunc

	mu    sync.Mutex
	queue *queue
	stats Stats

	paused  atomic.Bool
	stopped chan struct{}
	done    chan struct{}

	now func() time.Time // injectable clock for tests
}

// NewScheduler creates a retry scheduler with dependency injection
func NewScheduler(cfg Config, events event.Repository, store Store, breakers *breaker.Registry, sources *source.Loader, dead *deadletter.Store, log *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	return &Scheduler{
		cfg:      cfg,
		events:   events,
		store:    store,
		breakers: breakers,
		sources:  sources,
		dead:     dead,
		log:      log,
		queue:    newQueue(),
		stopped:  make(chan struct{}),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// SetProcessor binds the retry execution function
func (s *Scheduler) SetProcessor(fn ProcessFunc) {
	s.processor = fn
}

/* ScheduleRetry decides the fate of a failed event.
 * Returns false without enqueueing when the attempt number reached the
 * source's cap (the event is promoted to dead-letter) or when the source's
 * circuit breaker rejects execution (counted as a breaker trip; the event
 * stays failed for the next organic check).
 */
func (s *Scheduler) ScheduleRetry(ctx context.Context, ev event.Event, attempt int, lastError string, priority event.Priority) (bool, error) {
	src, err := s.sources.Get(ev.SourceName)
	if err != nil {
		return false, fmt.Errorf("resolving source: %w", err)
	}

	if attempt >= src.MaxRetries {
		if err := s.promoteToDeadLetter(ctx, ev, attempt, lastError); err != nil {
			return false, err
		}
		return false, nil
	}

	b, err := s.breakers.Get(ev.SourceName)
	if err != nil {
		return false, fmt.Errorf("resolving breaker: %w", err)
	}
	if !b.CanExecute() {
		s.mu.Lock()
		s.stats.CircuitBreakerTrips++
		s.mu.Unlock()

		ev.Status = event.Failed
		ev.LastError = lastError
		if err := s.events.Update(ctx, ev); err != nil {
			return false, fmt.Errorf("updating event after breaker trip: %w", err)
		}
		return false, nil
	}

	if priority == 0 {
		priority = inferPriority(src, attempt, lastError)
	}

	delay := Jitter(Delay(src.Backoff, attempt))
	item := Item{
		EventID:     ev.ID,
		SourceName:  ev.SourceName,
		Attempt:     attempt,
		NextAttempt: s.now().Add(delay),
		Priority:    priority,
		LastError:   lastError,
	}

	if err := s.store.StoreItem(ctx, item); err != nil {
		return false, fmt.Errorf("persisting retry item: %w", err)
	}

	s.mu.Lock()
	s.queue.push(&item)
	s.stats.TotalRetries++
	s.mu.Unlock()

	ev.Status = event.Retrying
	ev.RetryCount = attempt
	ev.LastError = lastError
	if err := s.events.Update(ctx, ev); err != nil {
		return false, fmt.Errorf("updating event for retry: %w", err)
	}

	s.log.Debug("retry scheduled",
		"event_id", ev.ID, "source", ev.SourceName,
		"attempt", attempt, "priority", priority.String(), "delay", delay)
	return true, nil
}

/* Start runs the processing loop until the context is cancelled or Stop is
 * called. Pending items are reloaded from the store first, so scheduled
 * retries survive restarts.
 */
func (s *Scheduler) Start(ctx context.Context) {
	s.reload(ctx)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopped:
				return
			case <-ticker.C:
				if s.paused.Load() {
					continue
				}
				s.tick(ctx)
			}
		}
	}()
}

// Pause suspends batch processing; scheduled items stay queued
func (s *Scheduler) Pause() { s.paused.Store(true) }

// Resume restarts batch processing
func (s *Scheduler) Resume() { s.paused.Store(false) }

// Paused reports whether the loop is currently suspended
func (s *Scheduler) Paused() bool { return s.paused.Load() }

// Stop terminates the loop; in-flight retries finish on their own
func (s *Scheduler) Stop() {
	select {
	case <-s.stopped:
	default:
		close(s.stopped)
	}
	<-s.done
}

// Stats returns a snapshot of the aggregate counters
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Depth returns the number of queued retry items
func (s *Scheduler) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

/* tick drains ready items and processes them with bounded concurrency.
 * Outcome bookkeeping (breaker counters, stats, requeueing) is applied
 * serially on this goroutine as results come back. Loop-level failures are
 * logged and absorbed; the loop always survives to its next interval.
 */
func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	if s.queue.Len() == 0 {
		s.mu.Unlock()
		s.reload(ctx)
		s.mu.Lock()
	}
	ready := s.queue.popReady(s.now(), s.cfg.BatchSize)
	s.mu.Unlock()

	if len(ready) == 0 {
		return
	}

	type outcome struct {
		item *Item
		ev   event.Event
		err  error
	}

	sem := make(chan struct{}, s.cfg.Concurrency)
	results := make(chan outcome, len(ready))

	for _, item := range ready {
		ev, err := s.events.Get(ctx, item.EventID)
		if err != nil {
			s.log.Warn("retry item without event, dropping", "event_id", item.EventID, "error", err)
			if err := s.store.RemoveItem(ctx, item.EventID); err != nil {
				s.log.Warn("removing orphaned retry item", "event_id", item.EventID, "error", err)
			}
			results <- outcome{item: item, err: errOrphan}
			continue
		}

		ev.Status = event.Processing
		if err := s.events.Update(ctx, ev); err != nil {
			s.log.Warn("marking event processing", "event_id", ev.ID, "error", err)
		}

		go func(item *Item, ev event.Event) {
			sem <- struct{}{}
			defer func() { <-sem }()

			defer func() {
				// A panicking handler is a retryable failure, never a crash
				if r := recover(); r != nil {
					results <- outcome{item: item, ev: ev, err: fmt.Errorf("handler panic: %v", r)}
				}
			}()

			results <- outcome{item: item, ev: ev, err: s.processor(ctx, ev)}
		}(item, ev)
	}

	for range ready {
		res := <-results
		if res.err == errOrphan {
			continue
		}
		s.apply(ctx, res.item, res.ev, res.err)
	}
}

var errOrphan = fmt.Errorf("orphaned retry item")

// apply records one retry outcome; runs on the loop goroutine only
func (s *Scheduler) apply(ctx context.Context, item *Item, ev event.Event, procErr error) {
	b, err := s.breakers.Get(item.SourceName)
	if err != nil {
		s.log.Warn("resolving breaker for outcome", "source", item.SourceName, "error", err)
		return
	}

	if procErr == nil {
		b.RecordSuccess()
		s.mu.Lock()
		s.stats.Successes++
		s.mu.Unlock()

		if err := s.store.RemoveItem(ctx, item.EventID); err != nil {
			s.log.Warn("removing completed retry item", "event_id", item.EventID, "error", err)
		}

		ev.Status = event.Completed
		ev.ProcessedAt = s.now()
		if err := s.events.Update(ctx, ev); err != nil {
			s.log.Warn("completing event", "event_id", ev.ID, "error", err)
		}
		s.log.Info("retry succeeded", "event_id", ev.ID, "attempt", item.Attempt)
		return
	}

	b.RecordFailure()
	s.mu.Lock()
	s.stats.Failures++
	s.mu.Unlock()

	if _, err := s.ScheduleRetry(ctx, ev, item.Attempt+1, procErr.Error(), 0); err != nil {
		s.log.Error("rescheduling retry", "event_id", ev.ID, "error", err)
	}
}

// promoteToDeadLetter converts an exhausted event into a quarantine record
func (s *Scheduler) promoteToDeadLetter(ctx context.Context, ev event.Event, attempt int, lastError string) error {
	ev.Status = event.DeadLetter
	ev.RetryCount = attempt
	ev.LastError = lastError
	if err := s.events.Update(ctx, ev); err != nil {
		return fmt.Errorf("marking event dead-letter: %w", err)
	}

	if err := s.store.RemoveItem(ctx, ev.ID); err != nil {
		s.log.Warn("removing exhausted retry item", "event_id", ev.ID, "error", err)
	}

	if _, err := s.dead.Add(ctx, ev, deadletter.MaxRetriesExceeded, lastError, nil); err != nil {
		return fmt.Errorf("quarantining exhausted event: %w", err)
	}

	s.log.Warn("event exhausted retries", "event_id", ev.ID, "source", ev.SourceName, "attempts", attempt)
	return nil
}

// reload restores the in-memory queue from the persistent store
func (s *Scheduler) reload(ctx context.Context) {
	items, err := s.store.PendingItems(ctx)
	if err != nil {
		s.log.Warn("reloading retry items", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, s.queue.Len())
	for _, queued := range s.queue.items {
		seen[queued.EventID] = true
	}
	for i := range items {
		if seen[items[i].EventID] {
			continue
		}
		item := items[i]
		s.queue.push(&item)
	}
}

/* inferPriority derives urgency when the caller does not supply one:
 * payment-class sources are critical, auth/security high, email retries past
 * the first attempt high, transient network errors high, the rest normal.
 */
func inferPriority(src *source.Source, attempt int, lastError string) event.Priority {
	name := strings.ToLower(src.Name)

	for _, marker := range []string{"payment", "stripe", "billing", "critical"} {
		if strings.Contains(name, marker) {
			return event.Critical
		}
	}
	for _, marker := range []string{"auth", "security"} {
		if strings.Contains(name, marker) {
			return event.High
		}
	}
	if src.DefaultType().Category() == event.CategoryEmail && attempt > 1 {
		return event.High
	}

	lowered := strings.ToLower(lastError)
	for _, marker := range []string{"timeout", "connection", "network"} {
		if strings.Contains(lowered, marker) {
			return event.High
		}
	}

	return event.Normal
}
