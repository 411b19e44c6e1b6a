package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-pipeline/breaker"
	"github.com/marcelsud/webhook-pipeline/deadletter"
	"github.com/marcelsud/webhook-pipeline/health"
	"github.com/marcelsud/webhook-pipeline/pipeline"
	"github.com/marcelsud/webhook-pipeline/retry"
	"github.com/marcelsud/webhook-pipeline/source"
)

// Handlers sets up the pipeline API routes
func Handlers(ctx context.Context, pipelineService pipeline.UseCase, sources *source.Loader, scheduler *retry.Scheduler, dead *deadletter.Store, monitor *health.Monitor, breakers *breaker.Registry, metricsHandler http.Handler) *chi.Mux {
	logger := httplog.NewLogger("webhook-pipeline", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Liveness check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Prometheus scrape endpoint
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/v1", func(r chi.Router) {
		// Ingestion
		r.Get("/sources", getSources(sources).ServeHTTP)
		r.Post("/sources/{source}/events", postEvent(pipelineService, sources).ServeHTTP)

		// Dead-letter triage
		r.Get("/deadletter", getDeadLetters(dead).ServeHTTP)
		r.Get("/deadletter/stats", getDeadLetterStats(dead).ServeHTTP)
		r.Patch("/deadletter/{id}", patchDeadLetter(dead).ServeHTTP)
		r.Post("/deadletter/{id}/reprocess", reprocessDeadLetter(dead).ServeHTTP)
		r.Post("/deadletter/reprocess", bulkReprocessDeadLetters(dead).ServeHTTP)

		// Retry scheduler controls
		r.Get("/retry/stats", getRetryStats(scheduler).ServeHTTP)
		r.Post("/retry/pause", pauseRetries(scheduler).ServeHTTP)
		r.Post("/retry/resume", resumeRetries(scheduler).ServeHTTP)

		// Source health
		r.Get("/health", getOverallHealth(monitor).ServeHTTP)
		r.Get("/health/{source}", getSourceHealth(monitor).ServeHTTP)
		r.Get("/health/{source}/history", getHealthHistory(monitor).ServeHTTP)

		// Circuit breakers
		r.Get("/breakers", getBreakers(breakers).ServeHTTP)
	})

	return r
}
