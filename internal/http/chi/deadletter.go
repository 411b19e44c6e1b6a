package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-pipeline/deadletter"
)

// deadLetterResponse represents a quarantined event in the API
type deadLetterResponse struct {
	ID              string    `json:"id"`
	OriginalEventID string    `json:"original_event_id"`
	Source          string    `json:"source"`
	EventType       string    `json:"event_type"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	Category        string    `json:"category"`
	RetryAttempts   int       `json:"retry_attempts"`
	LastError       string    `json:"last_error,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	AssignedTo      string    `json:"assigned_to,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	ReceivedAt      time.Time `json:"received_at"`
	QuarantinedAt   time.Time `json:"quarantined_at"`
}

// deadLetterPatch represents the mutable triage fields
type deadLetterPatch struct {
	Status     string `json:"status"`
	Notes      string `json:"notes"`
	AssignedTo string `json:"assigned_to"`
}

// bulkReprocessRequest selects the events to reinject
type bulkReprocessRequest struct {
	Status    string `json:"status"`
	Category  string `json:"category"`
	Source    string `json:"source"`
	Reason    string `json:"reason"`
	MaxEvents int    `json:"max_events"`
}

// getDeadLetters handles GET /v1/deadletter
func getDeadLetters(dead *deadletter.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter, err := filterFromQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		events, err := dead.Events(r.Context(), filter)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		responses := make([]deadLetterResponse, 0, len(events))
		for _, dl := range events {
			responses = append(responses, toDeadLetterResponse(dl))
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(responses); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getDeadLetterStats handles GET /v1/deadletter/stats
func getDeadLetterStats(dead *deadletter.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := dead.Statistics(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// patchDeadLetter handles PATCH /v1/deadletter/:id
func patchDeadLetter(dead *deadletter.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var patch deadLetterPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		status := deadletter.NewStatus(patch.Status)
		if err := status.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		err := dead.UpdateStatus(r.Context(), id, status, patch.Notes, patch.AssignedTo)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

// reprocessDeadLetter handles POST /v1/deadletter/:id/reprocess
func reprocessDeadLetter(dead *deadletter.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		force := r.URL.Query().Get("force") == "true"

		err := dead.Reprocess(r.Context(), id, force)
		if err != nil {
			if errors.Is(err, deadletter.ErrReprocessLimit) {
				http.Error(w, err.Error(), http.StatusConflict)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

// bulkReprocessDeadLetters handles POST /v1/deadletter/reprocess
func bulkReprocessDeadLetters(dead *deadletter.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req bulkReprocessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		filter := deadletter.Filter{
			Status:     deadletter.NewStatus(req.Status),
			Category:   deadletter.NewCategory(req.Category),
			SourceName: req.Source,
			Reason:     deadletter.NewReason(req.Reason),
		}

		result, err := dead.BulkReprocess(r.Context(), filter, req.MaxEvents)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func filterFromQuery(r *http.Request) (deadletter.Filter, error) {
	q := r.URL.Query()
	filter := deadletter.Filter{
		SourceName: q.Get("source"),
		AssignedTo: q.Get("assigned_to"),
	}

	if s := q.Get("status"); s != "" {
		filter.Status = deadletter.NewStatus(s)
		if err := filter.Status.Validate(); err != nil {
			return deadletter.Filter{}, err
		}
	}
	if s := q.Get("category"); s != "" {
		filter.Category = deadletter.NewCategory(s)
		if err := filter.Category.Validate(); err != nil {
			return deadletter.Filter{}, err
		}
	}
	if s := q.Get("reason"); s != "" {
		filter.Reason = deadletter.NewReason(s)
		if err := filter.Reason.Validate(); err != nil {
			return deadletter.Filter{}, err
		}
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			return deadletter.Filter{}, err
		}
		filter.Limit = limit
	}
	if s := q.Get("offset"); s != "" {
		offset, err := strconv.Atoi(s)
		if err != nil {
			return deadletter.Filter{}, err
		}
		filter.Offset = offset
	}

	return filter, nil
}

func toDeadLetterResponse(dl deadletter.Event) deadLetterResponse {
	return deadLetterResponse{
		ID:              dl.ID,
		OriginalEventID: dl.OriginalEventID,
		Source:          dl.SourceName,
		EventType:       dl.EventType.String(),
		Reason:          dl.Reason.String(),
		Status:          dl.Status.String(),
		Category:        dl.Category.String(),
		RetryAttempts:   dl.RetryAttempts,
		LastError:       dl.LastError,
		Tags:            dl.Tags,
		AssignedTo:      dl.AssignedTo,
		Notes:           dl.Notes,
		ReceivedAt:      dl.ReceivedAt,
		QuarantinedAt:   dl.QuarantinedAt,
	}
}
