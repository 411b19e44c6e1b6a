package alert

import (
	"context"
	"log/slog"
	"time"
)

// Severity ranks how urgent an alert is
type Severity int

const (
	Info Severity = iota + 1
	Warning
	Critical
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

/* Alert is a constructed notification payload. The pipeline only builds and
 * dispatches these; delivery (email, Slack, webhook fan-out) belongs to the
 * Sink implementation.
 */
type Alert struct {
	Severity  Severity
	RuleName  string
	Message   string
	Current   float64
	Threshold float64
	Metadata  map[string]any
	FiredAt   time.Time
}

// Sink receives constructed alerts for external delivery
type Sink interface {
	Send(ctx context.Context, a Alert) error
}

/* LogSink writes alerts to the structured log.
 * Used as the default sink and in development setups.
 */
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a sink backed by the given logger
func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Send logs the alert at a level matching its severity
func (s *LogSink) Send(ctx context.Context, a Alert) error {
	attrs := []any{
		"rule", a.RuleName,
		"message", a.Message,
		"current", a.Current,
		"threshold", a.Threshold,
		"metadata", a.Metadata,
	}
	switch a.Severity {
	case Critical:
		s.log.ErrorContext(ctx, "alert fired", attrs...)
	case Warning:
		s.log.WarnContext(ctx, "alert fired", attrs...)
	default:
		s.log.InfoContext(ctx, "alert fired", attrs...)
	}
	return nil
}
