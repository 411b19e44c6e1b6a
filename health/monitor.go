package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcelsud/webhook-pipeline/alert"
	"github.com/marcelsud/webhook-pipeline/event"
	"github.com/marcelsud/webhook-pipeline/source"
)

/* Monitor periodically samples recent event outcomes per source, derives a
 * health status from threshold comparisons and raises alerts on transitions
 * or sustained failure streaks.
 */
type Monitor struct {
	events  event.Reader
	repo    Repository
	sources *source.Loader
	alerts  alert.Sink
	log     *slog.Logger

	tickEvery time.Duration

	mu        sync.Mutex
	reports   map[string]Report
	failures  map[string]int
	lastCheck map[string]time.Time

	stopped chan struct{}
	done    chan struct{}

	now func() time.Time // injectable clock for tests
}

// NewMonitor creates a health monitor with dependency injection
func NewMonitor(events event.Reader, repo Repository, sources *source.Loader, alerts alert.Sink, log *slog.Logger) *Monitor {
	return &Monitor{
		events:    events,
		repo:      repo,
		sources:   sources,
		alerts:    alerts,
		log:       log,
		tickEvery: time.Minute,
		reports:   make(map[string]Report),
		failures:  make(map[string]int),
		lastCheck: make(map[string]time.Time),
		stopped:   make(chan struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

/* Start runs the sampling loop until the context is cancelled or Stop is
 * called. Each source is checked on its own configured interval; loop-level
 * failures are logged and absorbed.
 */
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.tickEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopped:
				return
			case <-ticker.C:
				m.tick(ctx)
			}
		}
	}()
}

// Stop terminates the sampling loop
func (m *Monitor) Stop() {
	select {
	case <-m.stopped:
	default:
		close(m.stopped)
	}
	<-m.done
}

// tick checks every source whose check interval has elapsed
func (m *Monitor) tick(ctx context.Context) {
	now := m.now()
	for _, src := range m.sources.List() {
		m.mu.Lock()
		last := m.lastCheck[src.Name]
		due := now.Sub(last) >= src.Health.CheckInterval
		if due {
			m.lastCheck[src.Name] = now
		}
		m.mu.Unlock()

		if !due {
			continue
		}
		if err := m.Check(ctx, src); err != nil {
			m.log.Warn("health check failed", "source", src.Name, "error", err)
		}
	}
}

/* Check samples one source's trailing window and evaluates its status.
 * Exported so admin surfaces can force an immediate check.
 */
func (m *Monitor) Check(ctx context.Context, src *source.Source) error {
	now := m.now()

	events, err := m.events.ListBySource(ctx, src.Name, now.Add(-src.Health.Window))
	if err != nil {
		return fmt.Errorf("listing events for health check: %w", err)
	}

	metrics, computable := computeMetrics(events, src.Health.Window)

	status := Down
	if computable {
		status = evaluate(metrics, src.Health)
	}

	m.storeSamples(ctx, src.Name, metrics, now)

	m.mu.Lock()
	prev, hadPrev := m.reports[src.Name]

	if status == Critical || status == Down {
		m.failures[src.Name]++
	} else {
		m.failures[src.Name] = 0
	}
	failures := m.failures[src.Name]

	report := Report{
		SourceName:          src.Name,
		Status:              status,
		Metrics:             metrics,
		ConsecutiveFailures: failures,
		CheckedAt:           now,
	}
	m.reports[src.Name] = report
	m.mu.Unlock()

	transitioned := hadPrev && prev.Status != status
	sustained := failures > 0 && failures%src.Health.AlertEvery == 0

	if transitioned || sustained {
		m.raiseAlert(ctx, src, report, transitioned)
	}

	return nil
}

// GetHealth returns the latest report for one source
func (m *Monitor) GetHealth(sourceName string) (Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	report, ok := m.reports[sourceName]
	return report, ok
}

// GetOverallHealth returns the worst status across sources plus counts
func (m *Monitor) GetOverallHealth() Overall {
	m.mu.Lock()
	defer m.mu.Unlock()

	overall := Overall{
		Status:  Healthy,
		Counts:  make(map[string]int),
		Sources: make(map[string]Status, len(m.reports)),
	}

	for name, report := range m.reports {
		overall.Sources[name] = report.Status
		overall.Counts[report.Status.String()]++
		if report.Status > overall.Status {
			overall.Status = report.Status
		}
	}

	return overall
}

// GetMetricsHistory returns stored samples for a metric over the past hours
func (m *Monitor) GetMetricsHistory(ctx context.Context, sourceName string, t MetricType, hours int) ([]Sample, error) {
	since := m.now().Add(-time.Duration(hours) * time.Hour)
	samples, err := m.repo.Samples(ctx, sourceName, t, since)
	if err != nil {
		return nil, fmt.Errorf("loading metric history: %w", err)
	}
	return samples, nil
}

/* computeMetrics derives the rate metrics from a window of events.
 * Rates are fractions of total events; throughput is events per minute;
 * response time is the mean completion latency in seconds.
 * Reports false when there is nothing to compute from.
 */
func computeMetrics(events []event.Event, window time.Duration) (map[MetricType]float64, bool) {
	metrics := make(map[MetricType]float64)
	total := len(events)
	if total == 0 {
		return metrics, false
	}

	var completed, failed, dead, retried int
	var latencySum float64
	var latencyCount int

	for _, ev := range events {
		switch ev.Status {
		case event.Completed:
			completed++
		case event.Failed:
			failed++
		case event.DeadLetter:
			dead++
		}
		if ev.RetryCount > 0 {
			retried++
		}
		if ev.Status == event.Completed && !ev.ProcessedAt.IsZero() {
			latencySum += ev.ProcessedAt.Sub(ev.ReceivedAt).Seconds()
			latencyCount++
		}
	}

	n := float64(total)
	metrics[SuccessRate] = float64(completed) / n
	metrics[ErrorRate] = float64(failed+dead) / n
	metrics[RetryRate] = float64(retried) / n
	metrics[DeadLetterRate] = float64(dead) / n
	metrics[Throughput] = n / window.Minutes()
	if latencyCount > 0 {
		metrics[ResponseTime] = latencySum / float64(latencyCount)
	}

	return metrics, true
}

/* evaluate compares each thresholded metric against its warning level:
 * beyond twice the threshold is critical, beyond the threshold is warning.
 */
func evaluate(metrics map[MetricType]float64, cfg source.HealthConfig) Status {
	checks := []struct {
		value     float64
		threshold float64
	}{
		{metrics[ErrorRate], cfg.ErrorRateThreshold},
		{metrics[RetryRate], cfg.RetryRateThreshold},
		{metrics[DeadLetterRate], cfg.DeadLetterRateThreshold},
		{metrics[ResponseTime], cfg.ResponseTimeThreshold.Seconds()},
	}

	status := Healthy
	for _, check := range checks {
		if check.threshold <= 0 {
			continue
		}
		switch {
		case check.value > 2*check.threshold:
			return Critical
		case check.value > check.threshold && status < Warning:
			status = Warning
		}
	}
	return status
}

func (m *Monitor) storeSamples(ctx context.Context, sourceName string, metrics map[MetricType]float64, now time.Time) {
	for t, value := range metrics {
		sample := Sample{
			SourceName: sourceName,
			Type:       t,
			Value:      value,
			RecordedAt: now,
		}
		if err := m.repo.StoreSample(ctx, sample); err != nil {
			m.log.Warn("storing health sample", "source", sourceName, "metric", t.String(), "error", err)
		}
	}
}

func (m *Monitor) raiseAlert(ctx context.Context, src *source.Source, report Report, transitioned bool) {
	severity := alert.Warning
	if report.Status == Critical || report.Status == Down {
		severity = alert.Critical
	}

	rule := "health_sustained_failure"
	if transitioned {
		rule = "health_status_change"
	}

	a := alert.Alert{
		Severity: severity,
		RuleName: rule,
		Message: fmt.Sprintf("source %s is %s (%d consecutive failures)",
			src.Name, report.Status, report.ConsecutiveFailures),
		Current:   float64(report.ConsecutiveFailures),
		Threshold: float64(src.Health.AlertEvery),
		Metadata: map[string]any{
			"source":  src.Name,
			"status":  report.Status.String(),
			"metrics": report.Metrics,
		},
		FiredAt: report.CheckedAt,
	}
	if err := m.alerts.Send(ctx, a); err != nil {
		m.log.Warn("sending health alert", "source", src.Name, "error", err)
	}
}
