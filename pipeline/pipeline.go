package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-pipeline/breaker"
	"github.com/marcelsud/webhook-pipeline/deadletter"
	"github.com/marcelsud/webhook-pipeline/event"
	"github.com/marcelsud/webhook-pipeline/handler"
	"github.com/marcelsud/webhook-pipeline/retry"
	"github.com/marcelsud/webhook-pipeline/source"
	"github.com/marcelsud/webhook-pipeline/validator"
)

/* Service represents the ingestion boundary of the pipeline
 * Uses pointer semantics as it's an API, not data
 */

// UseCase defines the operations the request-handling layer consumes
type UseCase interface {
	Ingest(ctx context.Context, sourceName string, payload []byte, headers map[string]string, sourceIP string) (event.Event, error)
	Process(ctx context.Context, ev event.Event) error
}

type Service struct {
	validator *validator.Validator
	events    event.Repository
	handlers  *handler.Registry
	retries   *retry.Scheduler
	dead      *deadletter.Store
	sources   *source.Loader
	breakers  *breaker.Registry
	log       *slog.Logger

	completedTTL time.Duration
	rejectedTTL  time.Duration

	now func() time.Time // injectable clock for tests
}

/* NewService creates the pipeline service and closes the wiring loop:
 * the retry scheduler executes attempts through the handler registry and
 * the dead-letter store reinjects reprocessed events through this service.
 */
func NewService(v *validator.Validator, events event.Repository, handlers *handler.Registry, retries *retry.Scheduler, dead *deadletter.Store, sources *source.Loader, breakers *breaker.Registry, log *slog.Logger) *Service {
	s := &Service{
		validator:    v,
		events:       events,
		handlers:     handlers,
		retries:      retries,
		dead:         dead,
		sources:      sources,
		breakers:     breakers,
		log:          log,
		completedTTL: time.Hour,
		rejectedTTL:  24 * time.Hour,
		now:          time.Now,
	}
	retries.SetProcessor(handlers.Dispatch)
	dead.SetProcessor(s.Reinject)
	return s
}

/* Ingest validates a raw payload and stores the resulting pending event.
 * Validation failures propagate synchronously to the caller; the ones that
 * carry a payload are additionally quarantined for triage.
 */
func (s *Service) Ingest(ctx context.Context, sourceName string, payload []byte, headers map[string]string, sourceIP string) (event.Event, error) {
	ev, err := s.validator.Validate(sourceName, payload, headers, sourceIP)
	if err != nil {
		s.quarantineRejection(ctx, sourceName, payload, headers, sourceIP, err)
		return event.Event{}, err
	}

	if err := s.events.Store(ctx, ev); err != nil {
		return event.Event{}, fmt.Errorf("storing event: %w", err)
	}

	return ev, nil
}

/* Process dispatches an event to its handlers. On failure a retry is
 * scheduled; on missing handlers the event is quarantined. The returned
 * error signals "not completed" to the caller, never an unhandled panic.
 */
func (s *Service) Process(ctx context.Context, ev event.Event) error {
	ev.Status = event.Processing
	if err := s.events.Update(ctx, ev); err != nil {
		return fmt.Errorf("marking event processing: %w", err)
	}

	dispatchErr := s.handlers.Dispatch(ctx, ev)

	b, berr := s.breakers.Get(ev.SourceName)
	if berr != nil {
		s.log.Warn("resolving breaker", "source", ev.SourceName, "error", berr)
	}

	if dispatchErr == nil {
		if b != nil {
			b.RecordSuccess()
		}
		ev.Status = event.Completed
		ev.ProcessedAt = s.now()
		if err := s.events.Update(ctx, ev); err != nil {
			return fmt.Errorf("completing event: %w", err)
		}
		if err := s.events.SetTTL(ctx, ev.ID, s.completedTTL); err != nil {
			s.log.Warn("setting completed TTL", "event_id", ev.ID, "error", err)
		}
		return nil
	}

	if errors.Is(dispatchErr, handler.ErrNoHandler) {
		ev.Status = event.DeadLetter
		ev.LastError = dispatchErr.Error()
		if err := s.events.Update(ctx, ev); err != nil {
			s.log.Warn("marking unhandled event", "event_id", ev.ID, "error", err)
		}
		if _, err := s.dead.Add(ctx, ev, deadletter.NoHandler, dispatchErr.Error(), nil); err != nil {
			s.log.Error("quarantining unhandled event", "event_id", ev.ID, "error", err)
		}
		return dispatchErr
	}

	if b != nil {
		b.RecordFailure()
	}
	if _, err := s.retries.ScheduleRetry(ctx, ev, ev.RetryCount+1, dispatchErr.Error(), 0); err != nil {
		s.log.Error("scheduling retry", "event_id", ev.ID, "error", err)
	}
	return dispatchErr
}

/* Reinject puts a reconstructed event (from dead-letter reprocessing) back
 * through storage and handling with a zeroed retry count.
 */
func (s *Service) Reinject(ctx context.Context, ev event.Event) error {
	src, err := s.sources.Get(ev.SourceName)
	if err != nil {
		return fmt.Errorf("resolving source for reinjection: %w", err)
	}

	ev.Status = event.Pending
	ev.RetryCount = 0
	ev.MaxRetries = src.MaxRetries
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	if err := s.events.Store(ctx, ev); err != nil {
		return fmt.Errorf("storing reinjected event: %w", err)
	}

	return s.Process(ctx, ev)
}

/* quarantineRejection records validation failures that carry a payload as
 * rejected events and quarantines them for triage. Rate-limited requests
 * are rejected without being consumed, and unknown sources give us nothing
 * trustworthy to store.
 */
func (s *Service) quarantineRejection(ctx context.Context, sourceName string, payload []byte, headers map[string]string, sourceIP string, cause error) {
	var reason deadletter.Reason
	var sigErr *validator.SignatureError
	var valErr *validator.ValidationError

	switch {
	case errors.Is(cause, validator.ErrMalformedPayload):
		reason = deadletter.InvalidPayload
	case errors.As(cause, &valErr):
		reason = deadletter.InvalidPayload
	case errors.As(cause, &sigErr):
		reason = deadletter.SignatureFailed
	case errors.Is(cause, validator.ErrSourceDisabled):
		reason = deadletter.DisabledSource
	default:
		return
	}

	ev := event.Event{
		ID:         uuid.New().String(),
		SourceName: sourceName,
		RawPayload: payload,
		Headers:    headers,
		ReceivedAt: s.now(),
		SourceIP:   sourceIP,
		Status:     event.Rejected,
		LastError:  cause.Error(),
	}

	if err := s.events.Store(ctx, ev); err != nil {
		s.log.Warn("storing rejected event", "source", sourceName, "error", err)
	} else if err := s.events.SetTTL(ctx, ev.ID, s.rejectedTTL); err != nil {
		s.log.Warn("setting rejected TTL", "event_id", ev.ID, "error", err)
	}

	if _, err := s.dead.Add(ctx, ev, reason, cause.Error(), nil); err != nil {
		s.log.Warn("quarantining rejected event", "source", sourceName, "error", err)
	}
}
