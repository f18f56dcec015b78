package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	assert.Nil(t, parseHeaders(""))

	headers := parseHeaders("Authorization=Bearer abc, x-team=core,broken")
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer abc",
		"x-team":        "core",
	}, headers)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "fanin-test")
	t.Setenv("OTEL_TRACES_ENABLED", "true")
	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")

	cfg := ConfigFromEnv()
	assert.Equal(t, "fanin-test", cfg.ServiceName)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "stdout", cfg.ExporterType)
	assert.Equal(t, DefaultOTLPEndpoint, cfg.OTLPEndpoint)
}

func TestInit_Disabled(t *testing.T) {
	require.NoError(t, Init(Config{Enabled: false}, nil))

	ctx, span := StartSpanWithOtel(context.Background(), "test")
	defer span.End()
	assert.NotNil(t, ctx)
}

func TestInit_UnknownExporter(t *testing.T) {
	err := Init(Config{Enabled: true, ExporterType: "carrier-pigeon"}, nil)
	assert.ErrorContains(t, err, "unknown exporter type")
}

func TestShutdown_WithoutProvider(t *testing.T) {
	tracerProvider = nil
	assert.NoError(t, Shutdown(context.Background()))
}
