package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotalens/quotalens/internal/core/quota"
	apperrors "github.com/quotalens/quotalens/internal/errors"
	"github.com/quotalens/quotalens/internal/metrics"
	"github.com/quotalens/quotalens/internal/observability"
)

func TestMetricsHandlerServesQuotaGauges(t *testing.T) {
	require.NoError(t, observability.InitMetrics("quotalens"))
	t.Cleanup(func() {
		observability.Registry = nil
		metrics.Reset()
	})

	metrics.RecordAPIStatus("/spot/v1/markets", http.StatusOK)
	metrics.ObserveQuota(quota.NewTracker(quota.DefaultLimits, nil).Status())

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	body := rec.Body.String()
	assert.Contains(t, body, metrics.APICallsName)
	assert.Contains(t, body, metrics.QuotaRemainingName)
	assert.Contains(t, body, `window="MONTH"`)
}

func TestMetricsHandlerWithoutRegistry(t *testing.T) {
	observability.Registry = nil

	rec := httptest.NewRecorder()
	MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, apperrors.CodeServiceUnavailable, resp.Error.Code)
}

func TestMetricsRouteDisabled(t *testing.T) {
	srv := New("127.0.0.1", 0, WithMetrics(false))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
