package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quotalens/quotalens/internal/observability"
)

func TestInitCLILogger(t *testing.T) {
	t.Cleanup(func() { observability.CLILogger = nil })

	require.NoError(t, observability.InitCLILogger("quotalens-test", true))
	require.NotNil(t, observability.CLILogger)
	observability.CLILogger.Debug("quota window rolled over", zap.String("window", "MINUTE"))

	assert.Same(t, observability.CLILogger, observability.Logger())
}

func TestInitServerLoggerPrefersServerLogger(t *testing.T) {
	t.Cleanup(func() {
		observability.CLILogger = nil
		observability.ServerLogger = nil
	})

	require.NoError(t, observability.InitCLILogger("quotalens-test", false))
	require.NoError(t, observability.InitServerLogger(observability.ServerLogOptions{
		Service:   "quotalens-test",
		Level:     "debug",
		Namespace: "quotalens",
	}))
	require.NotNil(t, observability.ServerLogger)

	observability.ServerLogger.Info("quota refreshed",
		zap.Int("month_remaining", 10900),
		zap.String("source", "refresh"))

	assert.Same(t, observability.ServerLogger, observability.Logger())
}

func TestServerLoggerConfigProfiles(t *testing.T) {
	structured := observability.ServerLoggerConfig(observability.ServerLogOptions{
		Service:   "svc",
		Level:     "warning",
		Namespace: "ns",
	})
	assert.Equal(t, logging.ProfileStructured, structured.Profile)
	assert.Equal(t, "WARN", structured.DefaultLevel)
	assert.Equal(t, "json", structured.Sinks[0].Format)
	assert.Equal(t, "ns", structured.StaticFields["namespace"])
	require.Len(t, structured.Middleware, 1)
	assert.Equal(t, "correlation", structured.Middleware[0].Name)

	simple := observability.ServerLoggerConfig(observability.ServerLogOptions{Service: "svc", Profile: "SIMPLE"})
	assert.Equal(t, logging.ProfileSimple, simple.Profile)
	assert.Equal(t, "console", simple.Sinks[0].Format)
	assert.Empty(t, simple.Middleware)
	assert.NotContains(t, simple.StaticFields, "namespace")

	for _, cfg := range []*logging.LoggerConfig{structured, simple} {
		logger, err := logging.New(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)
	}
}

func TestNormalizeLevel(t *testing.T) {
	for in, want := range map[string]string{
		"trace":   "TRACE",
		"DEBUG":   "DEBUG",
		" info ":  "INFO",
		"warn":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
		"verbose": "INFO",
		"":        "INFO",
	} {
		assert.Equal(t, want, observability.NormalizeLevel(in), in)
	}
}

func TestEmbeddedCrucibleVersion(t *testing.T) {
	version := crucible.GetVersion()
	assert.NotEmpty(t, version.Gofulmen)
	assert.NotEmpty(t, version.Crucible)
	assert.NotEmpty(t, crucible.GetVersionString())
}
