package validator

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-pipeline/event"
	"github.com/marcelsud/webhook-pipeline/event/signature"
	"github.com/marcelsud/webhook-pipeline/source"
)

/* Validator is the front door of the pipeline: it authenticates and shapes
 * raw webhook payloads into Events before anything else may touch them.
 * No persistence happens here; the only state is the rate-limit windows.
 */
type Validator struct {
	sources *source.Loader

	mu      sync.Mutex
	windows map[string]*window

	now func() time.Time // injectable clock for tests
}

// New creates a validator over the configured sources
func New(sources *source.Loader) *Validator {
	return &Validator{
		sources: sources,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

/* Validate authenticates a raw payload and builds a pending Event.
 * Error taxonomy: ErrUnknownSource, ErrSourceDisabled, ErrRateLimitExceeded,
 * ErrMalformedPayload, *SignatureError, *ValidationError.
 */
func (v *Validator) Validate(sourceName string, rawPayload []byte, headers map[string]string, sourceIP string) (event.Event, error) {
	src, err := v.sources.Get(sourceName)
	if err != nil {
		return event.Event{}, fmt.Errorf("%w: %s", ErrUnknownSource, sourceName)
	}
	if !src.Enabled {
		return event.Event{}, fmt.Errorf("%w: %s", ErrSourceDisabled, sourceName)
	}

	if !v.allow(src) {
		return event.Event{}, fmt.Errorf("%w: %s (%d/min)", ErrRateLimitExceeded, sourceName, src.RateLimitPerMinute)
	}

	var payload map[string]any
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return event.Event{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	verified := false
	if src.Secret != "" {
		header, ok := headers[src.SignatureHeader]
		if !ok || header == "" {
			return event.Event{}, &SignatureError{Reason: fmt.Sprintf("missing %s header", src.SignatureHeader)}
		}
		valid, err := signature.Verify(src.Secret, rawPayload, header)
		if err != nil {
			return event.Event{}, &SignatureError{Reason: err.Error()}
		}
		if !valid {
			return event.Event{}, &SignatureError{Reason: "signature mismatch"}
		}
		verified = true
	}

	eventType := v.classify(src, payload)

	if err := validatePayload(eventType, payload); err != nil {
		return event.Event{}, err
	}

	return event.Event{
		ID:                uuid.New().String(),
		SourceName:        sourceName,
		Type:              eventType,
		Payload:           payload,
		RawPayload:        rawPayload,
		Headers:           headers,
		ReceivedAt:        v.now(),
		SourceIP:          sourceIP,
		Status:            event.Pending,
		RetryCount:        0,
		MaxRetries:        src.MaxRetries,
		SignatureVerified: verified,
	}, nil
}

// allow consumes one slot in the source's sliding rate-limit window
func (v *Validator) allow(src *source.Source) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	w, ok := v.windows[src.Name]
	if !ok {
		w = newWindow(src.RateLimitPerMinute)
		v.windows[src.Name] = w
	}
	return w.allow(v.now())
}

/* classify resolves the domain event type from the payload's canonical
 * "event" field, falling back to the source's first configured type.
 */
func (v *Validator) classify(src *source.Source, payload map[string]any) event.Type {
	raw, ok := payload["event"].(string)
	if !ok || raw == "" {
		return src.DefaultType()
	}
	return src.ResolveType(raw)
}

/* validatePayload runs the registered schema for the event type, then
 * category-specific domain checks.
 */
func validatePayload(t event.Type, payload map[string]any) error {
	for _, field := range requiredFields(t) {
		if _, ok := payload[field]; !ok {
			return &ValidationError{Field: field, Reason: "required field is missing"}
		}
	}

	switch t.Category() {
	case event.CategoryEmail:
		addr, _ := payload["email"].(string)
		if _, err := mail.ParseAddress(addr); err != nil {
			return &ValidationError{Field: "email", Reason: "not a well-formed email address"}
		}
	case event.CategoryPayment:
		amount, ok := toFloat(payload["amount"])
		if !ok {
			return &ValidationError{Field: "amount", Reason: "must be a number"}
		}
		if amount < 0 {
			return &ValidationError{Field: "amount", Reason: "must not be negative"}
		}
	case event.CategoryEngagement:
		if !hasIdentifier(payload) {
			return &ValidationError{Field: "id", Reason: "an identifier field (id, user_id or email) is required"}
		}
	}

	return nil
}

// requiredFields is the structural schema registered per event type
func requiredFields(t event.Type) []string {
	switch t.Category() {
	case event.CategoryEmail:
		return []string{"email"}
	case event.CategoryPayment:
		return []string{"amount"}
	default:
		return nil
	}
}

func hasIdentifier(payload map[string]any) bool {
	for _, field := range []string{"id", "user_id", "email"} {
		if v, ok := payload[field]; ok && v != nil && v != "" {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
