package otel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitDisabled(t *testing.T) {
	p, err := Init(context.Background(), Config{Enabled: false, ServiceName: "ota-server"})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LogHandler())
	assert.NotNil(t, p.Meter("test"))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInitEnabledRequiresEndpoint(t *testing.T) {
	_, err := Init(context.Background(), Config{Enabled: true})
	require.Error(t, err)
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	assert.False(t, p.Enabled())
	assert.Nil(t, p.LogHandler())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestDownloadMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewDownloadMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordDownload(ctx, "success", 10)
	m.RecordDownload(ctx, "success", 5)
	m.RecordDownload(ctx, "not_found", 0)
	m.RecordChecksum(ctx, 20*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	metrics := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			metrics[metric.Name] = metric
		}
	}

	bytes, ok := metrics["ota_download_bytes_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, bytes.DataPoints, 1)
	assert.Equal(t, int64(15), bytes.DataPoints[0].Value)

	downloads, ok := metrics["ota_downloads_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, downloads.DataPoints, 2)

	hist, ok := metrics["ota_checksum_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestNilDownloadMetrics(t *testing.T) {
	var m *DownloadMetrics
	m.RecordDownload(context.Background(), "success", 1)
	m.RecordChecksum(context.Background(), time.Second)
}
