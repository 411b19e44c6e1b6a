package chi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-pipeline/breaker"
	"github.com/marcelsud/webhook-pipeline/health"
	"github.com/marcelsud/webhook-pipeline/retry"
)

// retryStatsResponse represents the scheduler state in the API
type retryStatsResponse struct {
	TotalRetries        int64 `json:"total_retries"`
	Successes           int64 `json:"successes"`
	Failures            int64 `json:"failures"`
	CircuitBreakerTrips int64 `json:"circuit_breaker_trips"`
	QueueDepth          int   `json:"queue_depth"`
	Paused              bool  `json:"paused"`
}

// healthReportResponse represents one source's health in the API
type healthReportResponse struct {
	Source              string             `json:"source"`
	Status              string             `json:"status"`
	Metrics             map[string]float64 `json:"metrics"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	CheckedAt           time.Time          `json:"checked_at"`
}

// breakerResponse represents one source's circuit breaker in the API
type breakerResponse struct {
	Source       string `json:"source"`
	State        string `json:"state"`
	FailureCount int    `json:"failure_count"`
	SuccessCount int    `json:"success_count"`
}

// getRetryStats handles GET /v1/retry/stats
func getRetryStats(scheduler *retry.Scheduler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats := scheduler.Stats()
		response := retryStatsResponse{
			TotalRetries:        stats.TotalRetries,
			Successes:           stats.Successes,
			Failures:            stats.Failures,
			CircuitBreakerTrips: stats.CircuitBreakerTrips,
			QueueDepth:          scheduler.Depth(),
			Paused:              scheduler.Paused(),
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// pauseRetries handles POST /v1/retry/pause
func pauseRetries(scheduler *retry.Scheduler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheduler.Pause()
		w.WriteHeader(http.StatusOK)
	})
}

// resumeRetries handles POST /v1/retry/resume
func resumeRetries(scheduler *retry.Scheduler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheduler.Resume()
		w.WriteHeader(http.StatusOK)
	})
}

// getOverallHealth handles GET /v1/health
func getOverallHealth(monitor *health.Monitor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		overall := monitor.GetOverallHealth()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(overall); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getSourceHealth handles GET /v1/health/:source
func getSourceHealth(monitor *health.Monitor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sourceName := chi.URLParam(r, "source")

		report, ok := monitor.GetHealth(sourceName)
		if !ok {
			http.Error(w, "no health report for source", http.StatusNotFound)
			return
		}

		metrics := make(map[string]float64, len(report.Metrics))
		for t, value := range report.Metrics {
			metrics[t.String()] = value
		}
		response := healthReportResponse{
			Source:              report.SourceName,
			Status:              report.Status.String(),
			Metrics:             metrics,
			ConsecutiveFailures: report.ConsecutiveFailures,
			CheckedAt:           report.CheckedAt,
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getHealthHistory handles GET /v1/health/:source/history
func getHealthHistory(monitor *health.Monitor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sourceName := chi.URLParam(r, "source")

		metricType := health.NewMetricType(r.URL.Query().Get("metric"))
		if metricType == 0 {
			http.Error(w, "unknown metric type", http.StatusBadRequest)
			return
		}

		hours := 24
		if s := r.URL.Query().Get("hours"); s != "" {
			parsed, err := strconv.Atoi(s)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid hours", http.StatusBadRequest)
				return
			}
			hours = parsed
		}

		samples, err := monitor.GetMetricsHistory(r.Context(), sourceName, metricType, hours)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(samples); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// getBreakers handles GET /v1/breakers
func getBreakers(breakers *breaker.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats := breakers.Stats()

		responses := make([]breakerResponse, 0, len(stats))
		for name, s := range stats {
			responses = append(responses, breakerResponse{
				Source:       name,
				State:        s.State.String(),
				FailureCount: s.FailureCount,
				SuccessCount: s.SuccessCount,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(responses); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
