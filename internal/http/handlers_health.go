package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the document store; the server is not ready when it
// cannot be reached.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.deps.Store == nil:
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.deps.Store.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", "check", "store", "error", err)
			checks["store"] = "unreachable"
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]any{
		"auth_clients": s.authLimiter.ActiveClients(),
		"ai_clients":   s.aiLimiter.ActiveClients(),
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	tm := s.trace.GetMetrics()
	sm := s.detector.GetMetrics()
	am := s.authLimiter.GetMetrics()
	im := s.aiLimiter.GetMetrics()

	w.WriteHeader(http.StatusOK)

	metric(w, "http_requests_total", "counter", "Total number of HTTP requests", tm.TotalRequests)
	metric(w, "http_server_errors_total", "counter", "Responses with a 5xx status", tm.ServerErrors)
	metric(w, "http_last_request_duration_microseconds", "gauge", "Duration of the most recent request", tm.LastDurationUs)
	metric(w, "suspicious_requests_total", "counter", "Requests matching a suspicious pattern", sm.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP rate_limit_rejected_total Requests rejected by a rate limiter\n")
	fmt.Fprintf(w, "# TYPE rate_limit_rejected_total counter\n")
	fmt.Fprintf(w, "rate_limit_rejected_total{limiter=\"auth\"} %d\n", am.Rejected)
	fmt.Fprintf(w, "rate_limit_rejected_total{limiter=\"ai\"} %d\n\n", im.Rejected)

	fmt.Fprintf(w, "# HELP rate_limit_clients Currently tracked rate limit keys\n")
	fmt.Fprintf(w, "# TYPE rate_limit_clients gauge\n")
	fmt.Fprintf(w, "rate_limit_clients{limiter=\"auth\"} %d\n", am.ClientCount)
	fmt.Fprintf(w, "rate_limit_clients{limiter=\"ai\"} %d\n\n", im.ClientCount)

	if s.deps.CacheStats != nil {
		cs := s.deps.CacheStats()
		metric(w, "insight_cache_hits_total", "counter", "AI summary cache hits", cs.Hits)
		metric(w, "insight_cache_misses_total", "counter", "AI summary cache misses", cs.Misses)
		metric(w, "insight_cache_evictions_total", "counter", "AI summary cache evictions", cs.Evictions)
	}

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

func metric(w http.ResponseWriter, name, kind, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n\n", name, v)
}
