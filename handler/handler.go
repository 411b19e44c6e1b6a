package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marcelsud/webhook-pipeline/event"
)

// ErrNoHandler means no handlers are registered for the event's type
var ErrNoHandler = errors.New("no handler registered")

// Handler processes one event of a registered type
type Handler interface {
	Handle(ctx context.Context, ev event.Event) error
}

// Func adapts an ordinary function into a Handler
type Func func(ctx context.Context, ev event.Event) error

// Handle calls f
func (f Func) Handle(ctx context.Context, ev event.Event) error {
	return f(ctx, ev)
}

/* Registry is a typed dispatch table: event type to ordered handler list.
 * Business logic registers handlers at startup; the pipeline invokes every
 * handler for an event's type and considers the event processed when at
 * least one reports success.
 */
type Registry struct {
	mu       sync.RWMutex
	handlers map[event.Type][]Handler
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[event.Type][]Handler),
	}
}

// Register appends a handler to the list for an event type
func (r *Registry) Register(t event.Type, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = append(r.handlers[t], h)
}

// RegisterFunc appends a function handler to the list for an event type
func (r *Registry) RegisterFunc(t event.Type, f func(ctx context.Context, ev event.Event) error) {
	r.Register(t, Func(f))
}

/* Dispatch invokes all registered handlers for the event's type in order.
 * Returns nil when at least one handler succeeds; otherwise the last error.
 */
func (r *Registry) Dispatch(ctx context.Context, ev event.Event) error {
	r.mu.RLock()
	handlers := r.handlers[ev.Type]
	r.mu.RUnlock()

	if len(handlers) == 0 {
		return fmt.Errorf("%w for event type %s", ErrNoHandler, ev.Type)
	}

	var lastErr error
	succeeded := false
	for _, h := range handlers {
		if err := h.Handle(ctx, ev); err != nil {
			lastErr = err
			continue
		}
		succeeded = true
	}

	if !succeeded {
		return fmt.Errorf("all handlers failed for event %s: %w", ev.ID, lastErr)
	}
	return nil
}
