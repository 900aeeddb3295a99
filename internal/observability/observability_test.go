package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitServerLoggerProfiles(t *testing.T) {
	original := ServerLogger
	t.Cleanup(func() { ServerLogger = original })

	for _, profile := range []string{"SIMPLE", "STRUCTURED", ""} {
		require.NoError(t, InitServerLogger("chatgate-test", "debug", profile, "chatgate"), profile)
		require.NotNil(t, ServerLogger)
		ServerLogger.Info("logger ready", zap.String("profile", profile))
	}
}

func TestServerLoggerConfigSelectsProfile(t *testing.T) {
	simple := serverLoggerConfig("svc", "warn", "simple", "")
	assert.Equal(t, logging.ProfileSimple, simple.Profile)
	assert.Equal(t, "WARN", simple.DefaultLevel)
	assert.Empty(t, simple.Middleware)

	structured := serverLoggerConfig("svc", "bogus", "STRUCTURED", "ns")
	assert.Equal(t, logging.ProfileStructured, structured.Profile)
	assert.Equal(t, "INFO", structured.DefaultLevel)
	assert.Equal(t, "ns", structured.StaticFields["namespace"])
	require.Len(t, structured.Middleware, 1)
	assert.Equal(t, "correlation", structured.Middleware[0].Name)
}

func TestLoggerPrefersServerLogger(t *testing.T) {
	origServer, origCLI := ServerLogger, CLILogger
	t.Cleanup(func() { ServerLogger, CLILogger = origServer, origCLI })

	ServerLogger = nil
	require.NoError(t, InitCLILogger("chatgate-test", true))
	assert.Same(t, CLILogger, Logger())

	require.NoError(t, InitServerLogger("chatgate-test", "info", "SIMPLE"))
	assert.Same(t, ServerLogger, Logger())
}

func TestInitMetricsPicksFreePort(t *testing.T) {
	require.NoError(t, InitMetrics("chatgate_test", 0))
	t.Cleanup(func() { _ = StopMetrics() })

	assert.NotNil(t, TelemetrySystem)
	assert.NotNil(t, PrometheusExporter)
	assert.Greater(t, GetMetricsPort(), 0)
}

func TestSetServerLevelWithoutLogger(t *testing.T) {
	original := ServerLogger
	t.Cleanup(func() { ServerLogger = original })

	ServerLogger = nil
	assert.NotPanics(t, func() { SetServerLevel("debug") })

	require.NoError(t, InitServerLogger("chatgate-test", "info", "SIMPLE"))
	for _, level := range []string{"trace", "debug", "warn", "error", "nonsense"} {
		assert.NotPanics(t, func() { SetServerLevel(level) }, level)
	}
}
