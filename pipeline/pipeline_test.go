package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amocks "github.com/marcelsud/webhook-pipeline/alert/mocks"
	"github.com/marcelsud/webhook-pipeline/breaker"
	"github.com/marcelsud/webhook-pipeline/deadletter"
	dlmocks "github.com/marcelsud/webhook-pipeline/deadletter/mocks"
	"github.com/marcelsud/webhook-pipeline/event"
	evmocks "github.com/marcelsud/webhook-pipeline/event/mocks"
	"github.com/marcelsud/webhook-pipeline/handler"
	"github.com/marcelsud/webhook-pipeline/pipeline"
	"github.com/marcelsud/webhook-pipeline/retry"
	rmocks "github.com/marcelsud/webhook-pipeline/retry/mocks"
	"github.com/marcelsud/webhook-pipeline/source"
	"github.com/marcelsud/webhook-pipeline/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSource(name string) *source.Source {
	return &source.Source{
		Name:               name,
		Enabled:            true,
		RateLimitPerMinute: 60,
		MaxRetries:         3,
		EventTypes:         []event.Type{event.EmailDelivered, event.EmailBounced},
		TypeMappings: map[string]event.Type{
			"delivered": event.EmailDelivered,
		},
		Backoff: source.BackoffConfig{
			Strategy:        source.Exponential,
			BaseDelay:       time.Second,
			MaxDelay:        5 * time.Minute,
			ExponentialBase: 2,
		},
		Breaker: source.BreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			RecoveryTimeout:  60 * time.Second,
		},
		Health: source.HealthConfig{AlertEvery: 3},
	}
}

type serviceFixture struct {
	service   *pipeline.Service
	events    *evmocks.Repository
	retryItem *rmocks.Store
	deadRepo  *dlmocks.Repository
	handlers  *handler.Registry
	breakers  *breaker.Registry
}

func newServiceFixture(t *testing.T, srcs ...*source.Source) *serviceFixture {
	t.Helper()

	loader := source.NewLoader()
	for _, src := range srcs {
		require.NoError(t, loader.Add(src))
	}

	events := evmocks.NewRepository(t)
	retryItems := rmocks.NewStore(t)
	deadRepo := dlmocks.NewRepository(t)
	breakers := breaker.NewRegistry(loader)
	handlers := handler.NewRegistry()

	dead := deadletter.NewStore(deadRepo, amocks.NewSink(t), 3, testLogger())
	retries := retry.NewScheduler(retry.Config{}, events, retryItems, breakers, loader, dead, testLogger())
	service := pipeline.NewService(validator.New(loader), events, handlers, retries, dead, loader, breakers, testLogger())

	return &serviceFixture{
		service:   service,
		events:    events,
		retryItem: retryItems,
		deadRepo:  deadRepo,
		handlers:  handlers,
		breakers:  breakers,
	}
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	payload := []byte(`{"email":"user@example.com","event":"delivered","timestamp":1690000000}`)

	t.Run("stores a pending event for a valid payload", func(t *testing.T) {
		f := newServiceFixture(t, testSource("sendgrid"))

		f.events.On("Store", ctx, event.MatchEvent(func(ev event.Event) bool {
			return ev.SourceName == "sendgrid" &&
				ev.Type == event.EmailDelivered &&
				ev.Status == event.Pending &&
				ev.RetryCount == 0
		})).Return(nil)

		ev, err := f.service.Ingest(ctx, "sendgrid", payload, nil, "203.0.113.7")

		require.NoError(t, err)
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, event.Pending, ev.Status)
	})

	t.Run("quarantines a malformed payload", func(t *testing.T) {
		f := newServiceFixture(t, testSource("sendgrid"))

		f.events.On("Store", ctx, event.MatchEvent(func(ev event.Event) bool {
			return ev.Status == event.Rejected && ev.SourceName == "sendgrid"
		})).Return(nil)
		f.events.On("SetTTL", ctx, mock.AnythingOfType("string"), 24*time.Hour).Return(nil)
		f.deadRepo.On("Store", ctx, deadletter.MatchEvent(func(dl deadletter.Event) bool {
			return dl.Reason == deadletter.InvalidPayload
		})).Return(nil)
		f.deadRepo.On("CountActive", ctx, mock.AnythingOfType("deadletter.Category")).Return(0, nil)

		_, err := f.service.Ingest(ctx, "sendgrid", []byte("{not json"), nil, "203.0.113.7")

		require.ErrorIs(t, err, validator.ErrMalformedPayload)
	})

	t.Run("unknown source is rejected without quarantine", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.service.Ingest(ctx, "nope", payload, nil, "203.0.113.7")

		require.ErrorIs(t, err, validator.ErrUnknownSource)
	})

	t.Run("rate-limited requests are rejected without quarantine", func(t *testing.T) {
		src := testSource("sendgrid")
		src.RateLimitPerMinute = 1
		f := newServiceFixture(t, src)

		f.events.On("Store", ctx, mock.AnythingOfType("event.Event")).Return(nil).Once()

		_, err := f.service.Ingest(ctx, "sendgrid", payload, nil, "203.0.113.7")
		require.NoError(t, err)

		_, err = f.service.Ingest(ctx, "sendgrid", payload, nil, "203.0.113.7")
		require.ErrorIs(t, err, validator.ErrRateLimitExceeded)
	})
}

func TestProcess(t *testing.T) {
	ctx := context.Background()

	pending := event.Event{
		ID:         "ev-1",
		SourceName: "sendgrid",
		Type:       event.EmailDelivered,
		Status:     event.Pending,
		MaxRetries: 3,
	}

	t.Run("completes the event when a handler succeeds", func(t *testing.T) {
		f := newServiceFixture(t, testSource("sendgrid"))
		f.handlers.RegisterFunc(event.EmailDelivered, func(ctx context.Context, ev event.Event) error {
			return nil
		})

		f.events.On("Update", ctx, event.MatchEvent(func(ev event.Event) bool {
			return ev.Status == event.Processing
		})).Return(nil).Once()
		f.events.On("Update", ctx, event.MatchEvent(func(ev event.Event) bool {
			return ev.Status == event.Completed && !ev.ProcessedAt.IsZero()
		})).Return(nil).Once()
		f.events.On("SetTTL", ctx, "ev-1", time.Hour).Return(nil)

		require.NoError(t, f.service.Process(ctx, pending))
	})

	t.Run("quarantines when no handler is registered", func(t *testing.T) {
		f := newServiceFixture(t, testSource("sendgrid"))

		f.events.On("Update", ctx, event.MatchEvent(func(ev event.Event) bool {
			return ev.Status == event.Processing
		})).Return(nil).Once()
		f.events.On("Update", ctx, event.MatchEvent(func(ev event.Event) bool {
			return ev.Status == event.DeadLetter
		})).Return(nil).Once()
		f.deadRepo.On("Store", ctx, deadletter.MatchEvent(func(dl deadletter.Event) bool {
			return dl.OriginalEventID == "ev-1" && dl.Reason == deadletter.NoHandler
		})).Return(nil)
		f.deadRepo.On("CountActive", ctx, mock.AnythingOfType("deadletter.Category")).Return(0, nil)

		err := f.service.Process(ctx, pending)
		require.ErrorIs(t, err, handler.ErrNoHandler)
	})

	t.Run("schedules a retry when every handler fails", func(t *testing.T) {
		f := newServiceFixture(t, testSource("sendgrid"))
		f.handlers.RegisterFunc(event.EmailDelivered, func(ctx context.Context, ev event.Event) error {
			return errors.New("downstream 500")
		})

		f.events.On("Update", ctx, event.MatchEvent(func(ev event.Event) bool {
			return ev.Status == event.Processing
		})).Return(nil).Once()
		f.retryItem.On("StoreItem", ctx, mock.MatchedBy(func(item retry.Item) bool {
			return item.EventID == "ev-1" && item.Attempt == 1
		})).Return(nil)
		f.events.On("Update", ctx, event.MatchEvent(func(ev event.Event) bool {
			return ev.Status == event.Retrying && ev.RetryCount == 1
		})).Return(nil).Once()

		err := f.service.Process(ctx, pending)
		require.Error(t, err)

		b, berr := f.breakers.Get("sendgrid")
		require.NoError(t, berr)
		assert.Equal(t, 1, b.GetStats().FailureCount)
	})

	t.Run("exhausted retries promote to dead letter", func(t *testing.T) {
		f := newServiceFixture(t, testSource("sendgrid"))
		f.handlers.RegisterFunc(event.EmailDelivered, func(ctx context.Context, ev event.Event) error {
			return errors.New("downstream 500")
		})

		exhausted := pending
		exhausted.ID = "ev-2"
		exhausted.RetryCount = 2

		f.events.On("Update", ctx, event.MatchEvent(func(ev event.Event) bool {
			return ev.Status == event.Processing
		})).Return(nil).Once()
		f.events.On("Update", ctx, event.MatchEvent(func(ev event.Event) bool {
			return ev.Status == event.DeadLetter && ev.RetryCount == 3
		})).Return(nil).Once()
		f.retryItem.On("RemoveItem", ctx, "ev-2").Return(nil)
		f.deadRepo.On("Store", ctx, deadletter.MatchEvent(func(dl deadletter.Event) bool {
			return dl.OriginalEventID == "ev-2" &&
				dl.Reason == deadletter.MaxRetriesExceeded &&
				dl.RetryAttempts == 3
		})).Return(nil)
		f.deadRepo.On("CountActive", ctx, mock.AnythingOfType("deadletter.Category")).Return(0, nil)

		err := f.service.Process(ctx, exhausted)
		require.Error(t, err)
	})
}

func TestReinject(t *testing.T) {
	ctx := context.Background()

	t.Run("resets retries and runs the event through handling", func(t *testing.T) {
		f := newServiceFixture(t, testSource("sendgrid"))

		var handled event.Event
		f.handlers.RegisterFunc(event.EmailDelivered, func(ctx context.Context, ev event.Event) error {
			handled = ev
			return nil
		})

		f.events.On("Store", ctx, event.MatchEvent(func(ev event.Event) bool {
			return ev.Status == event.Pending && ev.RetryCount == 0 && ev.MaxRetries == 3
		})).Return(nil)
		f.events.On("Update", ctx, mock.AnythingOfType("event.Event")).Return(nil)
		f.events.On("SetTTL", ctx, mock.AnythingOfType("string"), time.Hour).Return(nil)

		stale := event.Event{
			SourceName: "sendgrid",
			Type:       event.EmailDelivered,
			Status:     event.DeadLetter,
			RetryCount: 3,
		}

		require.NoError(t, f.service.Reinject(ctx, stale))
		assert.NotEmpty(t, handled.ID)
		assert.Equal(t, 0, handled.RetryCount)
	})

	t.Run("unknown source fails before storing anything", func(t *testing.T) {
		f := newServiceFixture(t)

		err := f.service.Reinject(ctx, event.Event{SourceName: "nope"})
		require.Error(t, err)
	})
}
