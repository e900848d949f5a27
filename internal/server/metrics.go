package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/quotalens/quotalens/internal/errors"
	"github.com/quotalens/quotalens/internal/observability"
)

// MetricsHandler serves the Prometheus registry in the text exposition format.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	registry := observability.Registry
	if registry == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("Metrics registry not initialized"))
		return
	}

	promhttp.HandlerFor(registry, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError}).ServeHTTP(w, r)
}
