package telemetry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetupTracingDefaults(t *testing.T) {
	ctx := context.Background()
	provider, err := SetupTracing(ctx, TracingOptions{
		ServiceName:    "limitd",
		ServiceVersion: "test",
	})
	require.NoError(t, err)
	require.NotNil(t, provider)
	require.NoError(t, provider.Shutdown(ctx))
}

func TestSetupTracingWithLogSpans(t *testing.T) {
	ctx := context.Background()
	provider, err := SetupTracing(ctx, TracingOptions{
		ServiceName:    "limitd",
		ServiceVersion: "test",
		LogSpans:       true,
		Logger:         zerolog.Nop(),
		SampleRatio:    0.5,
	})
	require.NoError(t, err)
	require.NotNil(t, provider)
	require.NoError(t, provider.Shutdown(ctx))
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger := NewLogger("not-a-level", true)
	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
