package health_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/marcelsud/webhook-pipeline/alert"
	amocks "github.com/marcelsud/webhook-pipeline/alert/mocks"
	"github.com/marcelsud/webhook-pipeline/event"
	evmocks "github.com/marcelsud/webhook-pipeline/event/mocks"
	"github.com/marcelsud/webhook-pipeline/health"
	hmocks "github.com/marcelsud/webhook-pipeline/health/mocks"
	"github.com/marcelsud/webhook-pipeline/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSource(name string, alertEvery int) *source.Source {
	return &source.Source{
		Name:               name,
		Enabled:            true,
		RateLimitPerMinute: 60,
		MaxRetries:         3,
		EventTypes:         []event.Type{event.EmailDelivered},
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
		Health: source.HealthConfig{
			CheckInterval:           5 * time.Minute,
			Window:                  time.Hour,
			AlertEvery:              alertEvery,
			ErrorRateThreshold:      0.1,
			RetryRateThreshold:      0.2,
			DeadLetterRateThreshold: 0.05,
			ResponseTimeThreshold:   30 * time.Second,
		},
	}
}

type monitorFixture struct {
	monitor *health.Monitor
	events  *evmocks.Repository
	repo    *hmocks.Repository
	sink    *amocks.Sink
	src     *source.Source
}

func newMonitorFixture(t *testing.T, src *source.Source) *monitorFixture {
	t.Helper()

	loader := source.NewLoader()
	require.NoError(t, loader.Add(src))

	events := evmocks.NewRepository(t)
	repo := hmocks.NewRepository(t)
	sink := amocks.NewSink(t)

	return &monitorFixture{
		monitor: health.NewMonitor(events, repo, loader, sink, testLogger()),
		events:  events,
		repo:    repo,
		sink:    sink,
		src:     src,
	}
}

/* windowEvents builds a sample of completed/failed/dead events for one
 * source, all inside the trailing health window.
 */
func windowEvents(completed, failed, dead int) []event.Event {
	now := time.Now()
	var events []event.Event
	for i := 0; i < completed; i++ {
		events = append(events, event.Event{
			Status:      event.Completed,
			ReceivedAt:  now.Add(-10 * time.Minute),
			ProcessedAt: now.Add(-10*time.Minute + 2*time.Second),
		})
	}
	for i := 0; i < failed; i++ {
		events = append(events, event.Event{Status: event.Failed, ReceivedAt: now.Add(-10 * time.Minute)})
	}
	for i := 0; i < dead; i++ {
		events = append(events, event.Event{Status: event.DeadLetter, ReceivedAt: now.Add(-10 * time.Minute)})
	}
	return events
}

func TestCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("all completed is healthy", func(t *testing.T) {
		f := newMonitorFixture(t, testSource("sendgrid", 3))

		f.events.On("ListBySource", ctx, "sendgrid", mock.AnythingOfType("time.Time")).
			Return(windowEvents(10, 0, 0), nil)
		f.repo.On("StoreSample", ctx, mock.AnythingOfType("health.Sample")).Return(nil)

		require.NoError(t, f.monitor.Check(ctx, f.src))

		report, ok := f.monitor.GetHealth("sendgrid")
		require.True(t, ok)
		assert.Equal(t, health.Healthy, report.Status)
		assert.Equal(t, 0, report.ConsecutiveFailures)
		assert.InDelta(t, 1.0, report.Metrics[health.SuccessRate], 0.001)
		assert.InDelta(t, 2.0, report.Metrics[health.ResponseTime], 0.1)
	})

	t.Run("no events means down", func(t *testing.T) {
		f := newMonitorFixture(t, testSource("sendgrid", 3))

		f.events.On("ListBySource", ctx, "sendgrid", mock.AnythingOfType("time.Time")).
			Return(nil, nil)

		require.NoError(t, f.monitor.Check(ctx, f.src))

		report, ok := f.monitor.GetHealth("sendgrid")
		require.True(t, ok)
		assert.Equal(t, health.Down, report.Status)
		assert.Equal(t, 1, report.ConsecutiveFailures)
	})

	t.Run("error rate above the threshold warns", func(t *testing.T) {
		f := newMonitorFixture(t, testSource("sendgrid", 3))

		// 2 failed of 12 is ~0.17: above 0.1, below 0.2
		f.events.On("ListBySource", ctx, "sendgrid", mock.AnythingOfType("time.Time")).
			Return(windowEvents(10, 2, 0), nil)
		f.repo.On("StoreSample", ctx, mock.AnythingOfType("health.Sample")).Return(nil)

		require.NoError(t, f.monitor.Check(ctx, f.src))

		report, _ := f.monitor.GetHealth("sendgrid")
		assert.Equal(t, health.Warning, report.Status)
	})

	t.Run("error rate beyond twice the threshold is critical", func(t *testing.T) {
		f := newMonitorFixture(t, testSource("sendgrid", 3))

		// 3 failed of 10 is 0.3, beyond 2 * 0.1
		f.events.On("ListBySource", ctx, "sendgrid", mock.AnythingOfType("time.Time")).
			Return(windowEvents(7, 3, 0), nil)
		f.repo.On("StoreSample", ctx, mock.AnythingOfType("health.Sample")).Return(nil)

		require.NoError(t, f.monitor.Check(ctx, f.src))

		report, _ := f.monitor.GetHealth("sendgrid")
		assert.Equal(t, health.Critical, report.Status)
		assert.Equal(t, 1, report.ConsecutiveFailures)
	})

	t.Run("status transition raises an alert", func(t *testing.T) {
		f := newMonitorFixture(t, testSource("sendgrid", 100))

		f.events.On("ListBySource", ctx, "sendgrid", mock.AnythingOfType("time.Time")).
			Return(windowEvents(10, 0, 0), nil).Once()
		f.repo.On("StoreSample", ctx, mock.AnythingOfType("health.Sample")).Return(nil)
		require.NoError(t, f.monitor.Check(ctx, f.src))

		f.events.On("ListBySource", ctx, "sendgrid", mock.AnythingOfType("time.Time")).
			Return(windowEvents(7, 3, 0), nil).Once()
		f.sink.On("Send", ctx, mock.MatchedBy(func(a alert.Alert) bool {
			return a.RuleName == "health_status_change" && a.Severity == alert.Critical
		})).Return(nil).Once()

		require.NoError(t, f.monitor.Check(ctx, f.src))
	})

	t.Run("sustained failures alert on the configured cadence", func(t *testing.T) {
		f := newMonitorFixture(t, testSource("sendgrid", 2))

		f.events.On("ListBySource", ctx, "sendgrid", mock.AnythingOfType("time.Time")).
			Return(nil, nil)

		// First failure: no alert yet (and no previous report to transition from)
		require.NoError(t, f.monitor.Check(ctx, f.src))

		// Second consecutive failure hits the cadence
		f.sink.On("Send", ctx, mock.MatchedBy(func(a alert.Alert) bool {
			return a.RuleName == "health_sustained_failure" && a.Current == 2
		})).Return(nil).Once()
		require.NoError(t, f.monitor.Check(ctx, f.src))

		// Third does not; fourth would again
		require.NoError(t, f.monitor.Check(ctx, f.src))
	})
}

func TestGetOverallHealth(t *testing.T) {
	ctx := context.Background()

	healthy := testSource("healthy-src", 100)
	down := testSource("down-src", 100)

	loader := source.NewLoader()
	require.NoError(t, loader.Add(healthy))
	require.NoError(t, loader.Add(down))

	events := evmocks.NewRepository(t)
	repo := hmocks.NewRepository(t)
	monitor := health.NewMonitor(events, repo, loader, amocks.NewSink(t), testLogger())

	events.On("ListBySource", ctx, "healthy-src", mock.AnythingOfType("time.Time")).
		Return(windowEvents(5, 0, 0), nil)
	events.On("ListBySource", ctx, "down-src", mock.AnythingOfType("time.Time")).
		Return(nil, nil)
	repo.On("StoreSample", ctx, mock.AnythingOfType("health.Sample")).Return(nil)

	require.NoError(t, monitor.Check(ctx, healthy))
	require.NoError(t, monitor.Check(ctx, down))

	overall := monitor.GetOverallHealth()
	assert.Equal(t, health.Down, overall.Status)
	assert.Equal(t, health.Healthy, overall.Sources["healthy-src"])
	assert.Equal(t, health.Down, overall.Sources["down-src"])
	assert.Equal(t, 1, overall.Counts["healthy"])
	assert.Equal(t, 1, overall.Counts["down"])
}

func TestGetMetricsHistory(t *testing.T) {
	ctx := context.Background()

	loader := source.NewLoader()
	events := evmocks.NewRepository(t)
	repo := hmocks.NewRepository(t)
	monitor := health.NewMonitor(events, repo, loader, amocks.NewSink(t), testLogger())

	samples := []health.Sample{
		{SourceName: "sendgrid", Type: health.ErrorRate, Value: 0.05},
	}
	repo.On("Samples", ctx, "sendgrid", health.ErrorRate, mock.AnythingOfType("time.Time")).
		Return(samples, nil)

	got, err := monitor.GetMetricsHistory(ctx, "sendgrid", health.ErrorRate, 24)

	require.NoError(t, err)
	assert.Equal(t, samples, got)
}
