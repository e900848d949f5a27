package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotalens/quotalens/internal/core/quota"
)

func initRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, Init(reg))
	t.Cleanup(Reset)
	return reg
}

func TestRecordersAreNoOpsBeforeInit(t *testing.T) {
	Reset()

	assert.NotPanics(t, func() {
		RecordAPICall("/spot/v1/markets", "200")
		RecordQuotaRefusal(quota.WindowSecond)
		ObserveQuota(quota.Status{})
		RecordCacheLookup("hit")
		RecordHTTPRequest("GET", "/v1/quota", 200, time.Millisecond)
		RecordError("INTERNAL_ERROR", 500)
		RecordErrorByEndpoint("/v1/quota", "INTERNAL_ERROR")
		RecordPanic()
	})
}

func TestQuotaCollectors(t *testing.T) {
	initRegistry(t)

	RecordQuotaRefusal(quota.WindowMinute)
	RecordQuotaRefusal(quota.WindowMinute)
	RecordAPIStatus("/spot/v1/markets", 429)
	RecordCacheLookup("miss")

	tracker := quota.NewTracker(quota.DefaultLimits, nil)
	require.NoError(t, tracker.CheckAndConsume())
	ObserveQuota(tracker.Status())

	c := active()
	require.NotNil(t, c)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.quotaRefusals.WithLabelValues("MINUTE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.apiCalls.WithLabelValues("/spot/v1/markets", "429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, float64(quota.DefaultLimits.Get(quota.WindowMonth)-1),
		testutil.ToFloat64(c.quotaRemaining.WithLabelValues("MONTH")))
}

func TestInitRejectsDuplicateRegistration(t *testing.T) {
	reg := initRegistry(t)
	assert.Error(t, Init(reg))
}

func TestInitWithoutRegistererStillRecords(t *testing.T) {
	require.NoError(t, Init(nil))
	t.Cleanup(Reset)

	RecordPanic()
	assert.Equal(t, 1.0, testutil.ToFloat64(active().panicsTotal))
}
