package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quotalens/quotalens/internal/metrics"
	"github.com/quotalens/quotalens/internal/observability"
)

// statusRecorder captures the status code and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.written += int64(n)
	return n, err
}

// routeLabel returns a low-cardinality label for r: the chi route pattern when
// one matched, otherwise a fixed bucket for the known surfaces.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch {
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case path == "/version", path == "/metrics", path == "/", path == "/v1/quota", path == "/v1/quota/refresh":
		return path
	default:
		return "/unknown"
	}
}

// probeRoute reports routes hit by orchestrators and scrapers; those are logged
// at debug so they do not drown out quota traffic.
func probeRoute(label string) bool {
	return label == "/metrics" || strings.HasPrefix(label, "/health")
}

// RequestMetrics counts and times every request by method, route and status,
// then logs the outcome.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		label := routeLabel(r)
		metrics.RecordHTTPRequest(r.Method, label, rec.status, elapsed)

		logger := observability.ServerLogger
		if logger == nil {
			return
		}

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", label),
			zap.Int("status", rec.status),
			zap.Duration("duration", elapsed),
			zap.Int64("request_size", r.ContentLength),
			zap.Int64("response_size", rec.written),
		}
		switch {
		case rec.status >= http.StatusInternalServerError:
			logger.Warn("HTTP request failed", fields...)
		case probeRoute(label):
			logger.Debug("HTTP request completed", fields...)
		default:
			logger.Info("HTTP request completed", fields...)
		}
	})
}
