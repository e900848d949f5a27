package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotalens/quotalens/internal/core/client"
	"github.com/quotalens/quotalens/internal/core/quota"
	"github.com/quotalens/quotalens/internal/metrics"
	"github.com/quotalens/quotalens/internal/observability"
	"github.com/quotalens/quotalens/internal/server"
)

// The provider reports an empty SECOND window so a second refresh inside the
// same second is refused locally.
const spentSecondBody = `{
  "Data": {
    "API_KEY": {
      "MAX": {"SECOND": 20, "MINUTE": 300, "HOUR": 3000, "DAY": 7500, "MONTH": 11000},
      "REMAINING": {"SECOND": 0, "MINUTE": 299, "HOUR": 2999, "DAY": 7499, "MONTH": 10999}
    }
  },
  "Err": {}
}`

func newQuotaStack(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()

	var providerCalls int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&providerCalls, 1)
		if r.URL.Path != client.RateLimitEndpoint {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, spentSecondBody)
	}))
	t.Cleanup(provider.Close)

	frozen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return frozen }

	c, err := client.New(client.Options{
		BaseURL:     provider.URL,
		APIKey:      "integration",
		MinInterval: -1,
		CacheTTL:    -1,
		Tracker:     quota.NewTracker(quota.DefaultLimits, clock),
		Clock:       clock,
	})
	require.NoError(t, err)

	if err := observability.InitMetrics("quotalens"); err != nil {
		t.Fatalf("init metrics: %v", err)
	}
	t.Cleanup(func() {
		observability.Registry = nil
		metrics.Reset()
	})

	srv := server.New("127.0.0.1", 0, server.WithQuotaService(c), server.WithMetrics(true))
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return api, &providerCalls
}

func TestQuotaServerRefreshThenRefuse(t *testing.T) {
	api, providerCalls := newQuotaStack(t)

	resp, err := http.Get(api.URL + "/v1/quota")
	require.NoError(t, err)
	var status quota.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, status.Initialized)
	assert.Zero(t, atomic.LoadInt32(providerCalls))

	resp, err = http.Post(api.URL+"/v1/quota/refresh", "application/json", nil)
	require.NoError(t, err)
	var refreshed struct {
		Status         quota.Status `json:"status"`
		ProviderStatus int          `json:"provider_status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&refreshed))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.StatusOK, refreshed.ProviderStatus)
	assert.True(t, refreshed.Status.Initialized)
	assert.Equal(t, 0, refreshed.Status.Remaining(quota.WindowSecond))
	assert.Equal(t, 10999, refreshed.Status.Remaining(quota.WindowMonth))
	assert.EqualValues(t, 1, atomic.LoadInt32(providerCalls))

	resp, err = http.Post(api.URL+"/v1/quota/refresh", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(providerCalls), "refused refresh must not reach the provider")

	resp, err = http.Get(api.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	text := string(body)
	assert.True(t, strings.Contains(text, metrics.QuotaRefusalsName), "missing refusal counter")
	assert.True(t, strings.Contains(text, metrics.QuotaRemainingName), "missing remaining gauge")
	assert.True(t, strings.Contains(text, metrics.HTTPRequestsName), "missing request counter")
}
