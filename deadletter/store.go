package deadletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-pipeline/alert"
	"github.com/marcelsud/webhook-pipeline/event"
)

// ErrReprocessLimit means the event already hit its reprocess attempt cap
var ErrReprocessLimit = errors.New("reprocess attempt limit reached")

/* ProcessFunc reinjects a fresh pipeline event built from a quarantined one.
 * Bound late (after the pipeline service exists) via SetProcessor.
 */
type ProcessFunc func(ctx context.Context, ev event.Event) error

/* Store owns the dead-letter quarantine: classification, triage, alerting
 * thresholds, reprocessing and retention.
 */
type Store struct {
	repo         Repository
	alerts       alert.Sink
	processor    ProcessFunc
	maxReprocess int
	log          *slog.Logger

	now func() time.Time // injectable clock for tests
}

// NewStore creates a dead-letter store with dependency injection
func NewStore(repo Repository, alerts alert.Sink, maxReprocess int, log *slog.Logger) *Store {
	return &Store{
		repo:         repo,
		alerts:       alerts,
		maxReprocess: maxReprocess,
		log:          log,
		now:          time.Now,
	}
}

// SetProcessor binds the pipeline reinjection function used by Reprocess
func (s *Store) SetProcessor(fn ProcessFunc) {
	s.processor = fn
}

/* Add quarantines an event. Category is classified once, contextual tags are
 * merged in, and the per-category active-count alert threshold is checked.
 * Returns the dead-letter record ID.
 */
func (s *Store) Add(ctx context.Context, ev event.Event, reason Reason, lastError string, tags []string) (string, error) {
	if err := reason.Validate(); err != nil {
		return "", fmt.Errorf("validating reason: %w", err)
	}

	category := Classify(ev.SourceName, ev.Type)

	dl := Event{
		ID:              uuid.New().String(),
		OriginalEventID: ev.ID,
		SourceName:      ev.SourceName,
		EventType:       ev.Type,
		Payload:         ev.Payload,
		RawPayload:      ev.RawPayload,
		Headers:         ev.Headers,
		ReceivedAt:      ev.ReceivedAt,
		QuarantinedAt:   s.now(),
		Reason:          reason,
		Status:          Active,
		Category:        category,
		RetryAttempts:   ev.RetryCount,
		LastError:       lastError,
		Tags: mergeTags(tags,
			"source:"+ev.SourceName,
			"reason:"+reason.String(),
			"category:"+category.String(),
		),
	}

	if err := s.repo.Store(ctx, dl); err != nil {
		return "", fmt.Errorf("storing dead-letter event: %w", err)
	}

	s.checkAlertThreshold(ctx, category)

	return dl.ID, nil
}

// Events lists quarantined events matching the filter
func (s *Store) Events(ctx context.Context, filter Filter) ([]Event, error) {
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing dead-letter events: %w", err)
	}
	return events, nil
}

/* UpdateStatus transitions a quarantined event through triage.
 * Moving to Investigating stamps the investigation start time.
 */
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, notes, assignee string) error {
	if err := status.Validate(); err != nil {
		return fmt.Errorf("validating status: %w", err)
	}

	dl, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("getting dead-letter event: %w", err)
	}

	dl.Status = status
	if notes != "" {
		dl.Notes = notes
	}
	if assignee != "" {
		dl.AssignedTo = assignee
	}
	if status == Investigating && dl.InvestigationStartedAt.IsZero() {
		dl.InvestigationStartedAt = s.now()
	}

	if err := s.repo.Update(ctx, dl); err != nil {
		return fmt.Errorf("updating dead-letter event: %w", err)
	}
	return nil
}

/* Reprocess reinjects a quarantined event into the pipeline as a fresh event
 * with a new ID and a zeroed retry count. Refuses when the attempt cap is
 * reached unless force is set. Success resolves the record; failure
 * increments RetryAttempts and reverts it to Active.
 */
func (s *Store) Reprocess(ctx context.Context, id string, force bool) error {
	if s.processor == nil {
		return fmt.Errorf("no processor bound")
	}

	dl, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("getting dead-letter event: %w", err)
	}

	if dl.RetryAttempts >= s.maxReprocess && !force {
		return fmt.Errorf("%w: %d attempts", ErrReprocessLimit, dl.RetryAttempts)
	}

	dl.Status = Reprocessing
	if err := s.repo.Update(ctx, dl); err != nil {
		return fmt.Errorf("marking event reprocessing: %w", err)
	}

	fresh := event.Event{
		ID:         uuid.New().String(),
		SourceName: dl.SourceName,
		Type:       dl.EventType,
		Payload:    dl.Payload,
		RawPayload: dl.RawPayload,
		Headers:    dl.Headers,
		ReceivedAt: dl.ReceivedAt,
		Status:     event.Pending,
		RetryCount: 0,
	}

	if procErr := s.processor(ctx, fresh); procErr != nil {
		dl.RetryAttempts++
		dl.Status = Active
		dl.LastError = procErr.Error()
		if err := s.repo.Update(ctx, dl); err != nil {
			return fmt.Errorf("recording reprocess failure: %w", err)
		}
		return fmt.Errorf("reprocessing event %s: %w", id, procErr)
	}

	dl.Status = Resolved
	if err := s.repo.Update(ctx, dl); err != nil {
		return fmt.Errorf("resolving dead-letter event: %w", err)
	}

	s.log.Info("dead-letter event reprocessed", "id", id, "original_event_id", dl.OriginalEventID)
	return nil
}

// BulkResult summarizes a bulk reprocess run
type BulkResult struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

/* BulkReprocess reprocesses up to maxEvents matching events, skipping those
 * already at the attempt cap.
 */
func (s *Store) BulkReprocess(ctx context.Context, filter Filter, maxEvents int) (BulkResult, error) {
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return BulkResult{}, fmt.Errorf("listing events for bulk reprocess: %w", err)
	}

	var result BulkResult
	for _, dl := range events {
		if maxEvents > 0 && result.Successful+result.Failed >= maxEvents {
			break
		}
		if dl.RetryAttempts >= s.maxReprocess {
			result.Skipped++
			continue
		}
		if err := s.Reprocess(ctx, dl.ID, false); err != nil {
			result.Failed++
			continue
		}
		result.Successful++
	}

	return result, nil
}

// ArchiveOld moves resolved events older than the cutoff to Archived
func (s *Store) ArchiveOld(ctx context.Context, days int) (int, error) {
	cutoff := s.now().AddDate(0, 0, -days)

	events, err := s.repo.List(ctx, Filter{Status: Resolved})
	if err != nil {
		return 0, fmt.Errorf("listing resolved events: %w", err)
	}

	archived := 0
	for _, dl := range events {
		if dl.QuarantinedAt.After(cutoff) {
			continue
		}
		dl.Status = Archived
		if err := s.repo.Update(ctx, dl); err != nil {
			return archived, fmt.Errorf("archiving event %s: %w", dl.ID, err)
		}
		archived++
	}

	return archived, nil
}

// Cleanup physically deletes archived events older than the cutoff. Irreversible.
func (s *Store) Cleanup(ctx context.Context, days int) (int, error) {
	cutoff := s.now().AddDate(0, 0, -days)

	events, err := s.repo.List(ctx, Filter{Status: Archived})
	if err != nil {
		return 0, fmt.Errorf("listing archived events: %w", err)
	}

	deleted := 0
	for _, dl := range events {
		if dl.QuarantinedAt.After(cutoff) {
			continue
		}
		if err := s.repo.Delete(ctx, dl.ID); err != nil {
			return deleted, fmt.Errorf("deleting event %s: %w", dl.ID, err)
		}
		deleted++
	}

	return deleted, nil
}

// Stats aggregates the quarantine contents
type Stats struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category"`
	ByReason   map[string]int `json:"by_reason"`
	BySource   map[string]int `json:"by_source"`
	Last24h    int            `json:"last_24h"`
	Last7d     int            `json:"last_7d"`
	Oldest     time.Time      `json:"oldest"`
	Newest     time.Time      `json:"newest"`
}

// Statistics computes aggregate counts over the whole quarantine
func (s *Store) Statistics(ctx context.Context) (Stats, error) {
	events, err := s.repo.List(ctx, Filter{})
	if err != nil {
		return Stats{}, fmt.Errorf("listing dead-letter events: %w", err)
	}

	stats := Stats{
		Total:      len(events),
		ByStatus:   make(map[string]int),
		ByCategory: make(map[string]int),
		ByReason:   make(map[string]int),
		BySource:   make(map[string]int),
	}

	now := s.now()
	for _, dl := range events {
		stats.ByStatus[dl.Status.String()]++
		stats.ByCategory[dl.Category.String()]++
		stats.ByReason[dl.Reason.String()]++
		stats.BySource[dl.SourceName]++

		if now.Sub(dl.QuarantinedAt) <= 24*time.Hour {
			stats.Last24h++
		}
		if now.Sub(dl.QuarantinedAt) <= 7*24*time.Hour {
			stats.Last7d++
		}
		if stats.Oldest.IsZero() || dl.QuarantinedAt.Before(stats.Oldest) {
			stats.Oldest = dl.QuarantinedAt
		}
		if dl.QuarantinedAt.After(stats.Newest) {
			stats.Newest = dl.QuarantinedAt
		}
	}

	return stats, nil
}

/* checkAlertThreshold fires a category alert when active events meet the
 * category's escalation threshold. Alert failures are absorbed: quarantining
 * must never fail because notification did.
 */
func (s *Store) checkAlertThreshold(ctx context.Context, category Category) {
	count, err := s.repo.CountActive(ctx, category)
	if err != nil {
		s.log.Warn("counting active dead-letter events", "category", category.String(), "error", err)
		return
	}

	threshold := category.alertThreshold()
	if count < threshold {
		return
	}

	severity := alert.Warning
	if category == CategoryCritical {
		severity = alert.Critical
	}

	a := alert.Alert{
		Severity:  severity,
		RuleName:  "dead_letter_threshold",
		Message:   fmt.Sprintf("%d active %s dead-letter events (threshold %d)", count, category, threshold),
		Current:   float64(count),
		Threshold: float64(threshold),
		Metadata:  map[string]any{"category": category.String()},
		FiredAt:   s.now(),
	}
	if err := s.alerts.Send(ctx, a); err != nil {
		s.log.Warn("sending dead-letter alert", "error", err)
	}
}

func mergeTags(tags []string, extra ...string) []string {
	seen := make(map[string]bool, len(tags)+len(extra))
	merged := make([]string, 0, len(tags)+len(extra))
	for _, tag := range append(append([]string{}, tags...), extra...) {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		merged = append(merged, tag)
	}
	return merged
}
