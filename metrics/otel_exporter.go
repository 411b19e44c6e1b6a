package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelExporter provides OpenTelemetry metrics export following OTel standards
type OTelExporter struct {
	meterProvider *sdkmetric.MeterProvider
	collector     Collector

	// OTel meters and instruments
	meter             metric.Meter
	retryQueueGauge   metric.Int64ObservableGauge
	retryCounterGauge metric.Int64ObservableGauge
	deadLetterGauge   metric.Int64ObservableGauge
	breakerStateGauge metric.Int64ObservableGauge
	sourceHealthGauge metric.Int64ObservableGauge
}

// NewOTelExporter creates a new OpenTelemetry metrics exporter with Prometheus format
func NewOTelExporter(collector Collector) (*OTelExporter, error) {
	// Create Prometheus exporter
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	// Create meter with service info
	meter := meterProvider.Meter(
		"webhook-pipeline",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	oe := &OTelExporter{
		meterProvider: meterProvider,
		collector:     collector,
		meter:         meter,
	}

	// Register metrics instruments
	if err := oe.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return oe, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (oe *OTelExporter) registerInstruments() error {
	var err error

	// Retry queue depth gauge
	oe.retryQueueGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.retry.queue.depth",
		metric.WithDescription("Number of scheduled retry attempts waiting in the queue"),
		metric.WithUnit("{retries}"),
		metric.WithInt64Callback(oe.observeRetryQueueDepth),
	)
	if err != nil {
		return fmt.Errorf("creating retry queue gauge: %w", err)
	}

	// Retry counters gauge (per outcome)
	oe.retryCounterGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.retry.total",
		metric.WithDescription("Retry attempts by outcome"),
		metric.WithUnit("{retries}"),
		metric.WithInt64Callback(oe.observeRetryStats),
	)
	if err != nil {
		return fmt.Errorf("creating retry counter gauge: %w", err)
	}

	// Dead-letter gauge (per category)
	oe.deadLetterGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.deadletter.count",
		metric.WithDescription("Dead-letter events by triage category"),
		metric.WithUnit("{events}"),
		metric.WithInt64Callback(oe.observeDeadLetterCounts),
	)
	if err != nil {
		return fmt.Errorf("creating dead-letter gauge: %w", err)
	}

	// Circuit breaker state gauge (per source)
	oe.breakerStateGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.breaker.state",
		metric.WithDescription("Circuit breaker state per source (0=closed, 1=open, 2=half_open)"),
		metric.WithUnit("{state}"),
		metric.WithInt64Callback(oe.observeBreakerStates),
	)
	if err != nil {
		return fmt.Errorf("creating breaker state gauge: %w", err)
	}

	// Source health gauge (per source)
	oe.sourceHealthGauge, err = oe.meter.Int64ObservableGauge(
		"webhook.source.health",
		metric.WithDescription("Health status per source (0=healthy, 1=warning, 2=critical, 3=down)"),
		metric.WithUnit("{status}"),
		metric.WithInt64Callback(oe.observeHealthStatuses),
	)
	if err != nil {
		return fmt.Errorf("creating source health gauge: %w", err)
	}

	return nil
}

// observeRetryQueueDepth is a callback that reports retry queue depth
func (oe *OTelExporter) observeRetryQueueDepth(ctx context.Context, observer metric.Int64Observer) error {
	depth, err := oe.collector.GetRetryQueueDepth(ctx)
	if err != nil {
		return err
	}

	observer.Observe(depth)
	return nil
}

// observeRetryStats is a callback that reports scheduler counters by outcome
func (oe *OTelExporter) observeRetryStats(ctx context.Context, observer metric.Int64Observer) error {
	stats, err := oe.collector.GetRetryStats(ctx)
	if err != nil {
		return err
	}

	observer.Observe(stats.TotalRetries, metric.WithAttributes(
		attribute.String("retry.outcome", "scheduled"),
	))
	observer.Observe(stats.Successes, metric.WithAttributes(
		attribute.String("retry.outcome", "success"),
	))
	observer.Observe(stats.Failures, metric.WithAttributes(
		attribute.String("retry.outcome", "failure"),
	))
	observer.Observe(stats.CircuitBreakerTrips, metric.WithAttributes(
		attribute.String("retry.outcome", "breaker_trip"),
	))

	return nil
}

// observeDeadLetterCounts is a callback that reports dead-letter counts by category
func (oe *OTelExporter) observeDeadLetterCounts(ctx context.Context, observer metric.Int64Observer) error {
	counts, err := oe.collector.GetDeadLetterCounts(ctx)
	if err != nil {
		return err
	}

	for category, count := range counts {
		observer.Observe(count, metric.WithAttributes(
			attribute.String("deadletter.category", category),
		))
	}

	return nil
}

// observeBreakerStates is a callback that reports breaker states per source
func (oe *OTelExporter) observeBreakerStates(ctx context.Context, observer metric.Int64Observer) error {
	states, err := oe.collector.GetBreakerStates(ctx)
	if err != nil {
		return err
	}

	for source, state := range states {
		observer.Observe(breakerStateValue(state), metric.WithAttributes(
			attribute.String("source.name", source),
		))
	}

	return nil
}

// observeHealthStatuses is a callback that reports health status per source
func (oe *OTelExporter) observeHealthStatuses(ctx context.Context, observer metric.Int64Observer) error {
	statuses, err := oe.collector.GetHealthStatuses(ctx)
	if err != nil {
		return err
	}

	for source, status := range statuses {
		observer.Observe(healthStatusValue(status), metric.WithAttributes(
			attribute.String("source.name", source),
		))
	}

	return nil
}

func breakerStateValue(state string) int64 {
	switch state {
	case "open":
		return 1
	case "half_open":
		return 2
	default:
		return 0
	}
}

func healthStatusValue(status string) int64 {
	switch status {
	case "warning":
		return 1
	case "critical":
		return 2
	case "down":
		return 3
	default:
		return 0
	}
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (oe *OTelExporter) ServeHTTP() http.Handler {
	return promhttp.Handler()
}

// Shutdown gracefully shuts down the meter provider
func (oe *OTelExporter) Shutdown(ctx context.Context) error {
	if oe.meterProvider != nil {
		return oe.meterProvider.Shutdown(ctx)
	}
	return nil
}
