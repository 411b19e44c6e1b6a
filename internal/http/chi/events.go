package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-pipeline/pipeline"
	"github.com/marcelsud/webhook-pipeline/source"
	"github.com/marcelsud/webhook-pipeline/validator"
)

/* HTTP layer DTOs for the ingestion API
 * Separate from domain entities to avoid leaking internal structure
 */

// eventResponse represents the API response when accepting an event
type eventResponse struct {
	EventID string `json:"event_id"`
	Source  string `json:"source"`
	Type    string `json:"type"`
	Status  string `json:"status"`
}

// sourceResponse represents a configured source in the API
type sourceResponse struct {
	Name               string   `json:"name"`
	Enabled            bool     `json:"enabled"`
	RateLimitPerMinute int      `json:"rate_limit_per_minute"`
	MaxRetries         int      `json:"max_retries"`
	EventTypes         []string `json:"event_types"`
}

// postEvent handles POST /v1/sources/:source/events
func postEvent(pipelineService pipeline.UseCase, sources *source.Loader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sourceName := chi.URLParam(r, "source")
		if sourceName == "" {
			http.Error(w, "source is required", http.StatusBadRequest)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		headers := make(map[string]string)
		for key, values := range r.Header {
			if len(values) > 0 {
				headers[key] = values[0]
			}
		}

		sourceIP := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			sourceIP = host
		}

		ev, err := pipelineService.Ingest(r.Context(), sourceName, body, headers, sourceIP)
		if err != nil {
			http.Error(w, err.Error(), ingestStatusCode(err))
			return
		}

		// Processing happens off the request path; the event record
		// tracks the outcome
		go func(ctx context.Context) {
			pipelineService.Process(ctx, ev)
		}(context.WithoutCancel(r.Context()))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		response := eventResponse{
			EventID: ev.ID,
			Source:  ev.SourceName,
			Type:    ev.Type.String(),
			Status:  ev.Status.String(),
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getSources handles GET /v1/sources
func getSources(sources *source.Loader) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		all := sources.List()

		responses := make([]sourceResponse, 0, len(all))
		for _, src := range all {
			types := make([]string, 0, len(src.EventTypes))
			for _, t := range src.EventTypes {
				types = append(types, t.String())
			}
			responses = append(responses, sourceResponse{
				Name:               src.Name,
				Enabled:            src.Enabled,
				RateLimitPerMinute: src.RateLimitPerMinute,
				MaxRetries:         src.MaxRetries,
				EventTypes:         types,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(responses); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// ingestStatusCode maps validation failures to HTTP status codes
func ingestStatusCode(err error) int {
	var sigErr *validator.SignatureError
	var valErr *validator.ValidationError

	switch {
	case errors.Is(err, validator.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, validator.ErrSourceDisabled):
		return http.StatusForbidden
	case errors.Is(err, validator.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	case errors.As(err, &sigErr):
		return http.StatusUnauthorized
	case errors.Is(err, validator.ErrMalformedPayload), errors.As(err, &valErr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
