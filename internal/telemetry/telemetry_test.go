package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragify/internal/config"
)

func TestDisabledTelemetryIsNoOp(t *testing.T) {
	tel, err := New(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tel.tracerProvider)
	assert.Nil(t, tel.meterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestEnabledWithoutEndpointIsNoOp(t *testing.T) {
	tel, err := New(context.Background(), config.TelemetryConfig{Enabled: true})
	require.NoError(t, err)
	assert.Nil(t, tel.tracerProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestNilShutdown(t *testing.T) {
	var tel *Telemetry
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("collector:4318"))
}
