package telemetry

import (
	"context"
	"testing"

	"github.com/soyeahso/workbench/internal/config"
	"github.com/soyeahso/workbench/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{}, logging.New(nil, "silent"))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetup_Enabled(t *testing.T) {
	cfg := config.TelemetryConfig{OTLPEndpoint: "127.0.0.1:4318", Insecure: true, SampleRatio: 0.5}
	shutdown, err := Setup(context.Background(), cfg, logging.New(nil, "silent"))
	require.NoError(t, err)

	// Nothing was recorded, so shutdown does not need to reach the collector.
	assert.NoError(t, shutdown(context.Background()))
}

func TestExporterOptions(t *testing.T) {
	assert.Len(t, exporterOptions(config.TelemetryConfig{OTLPEndpoint: "collector:4318"}), 1)
	assert.Len(t, exporterOptions(config.TelemetryConfig{OTLPEndpoint: "http://collector:4318", Insecure: true}), 2)
}

func TestSampleRatio(t *testing.T) {
	assert.Equal(t, 1.0, sampleRatio(0))
	assert.Equal(t, 1.0, sampleRatio(2))
	assert.Equal(t, 0.25, sampleRatio(0.25))
}
