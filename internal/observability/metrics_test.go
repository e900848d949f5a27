package observability_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quotalens/quotalens/internal/core/quota"
	"github.com/quotalens/quotalens/internal/metrics"
	"github.com/quotalens/quotalens/internal/observability"
)

func TestInitMetrics(t *testing.T) {
	require.NoError(t, observability.InitMetrics("quotalens"))
	t.Cleanup(metrics.Reset)
	require.NotNil(t, observability.Registry)

	metrics.RecordAPICall("/spot/v1/markets", "200")
	metrics.RecordQuotaRefusal(quota.WindowSecond)

	families, err := observability.Registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, family := range families {
		names[family.GetName()] = true
	}
	require.True(t, names[metrics.APICallsName])
	require.True(t, names[metrics.QuotaRefusalsName])
	require.True(t, names["go_goroutines"])

	// A second init replaces the registry without duplicate registration errors.
	require.NoError(t, observability.InitMetrics(""))
}
