package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DownloadMetrics holds metrics for kernel image downloads.
type DownloadMetrics struct {
	DownloadsTotal   metric.Int64Counter
	DownloadBytes    metric.Int64Counter
	ChecksumDuration metric.Float64Histogram
}

// NewDownloadMetrics creates metrics for kernel image downloads.
func NewDownloadMetrics(meter metric.Meter) (*DownloadMetrics, error) {
	downloadsTotal, err := meter.Int64Counter(
		"ota_downloads_total",
		metric.WithDescription("Total number of kernel image download requests"),
	)
	if err != nil {
		return nil, err
	}

	downloadBytes, err := meter.Int64Counter(
		"ota_download_bytes_total",
		metric.WithDescription("Total kernel image bytes served"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	checksumDuration, err := meter.Float64Histogram(
		"ota_checksum_duration_seconds",
		metric.WithDescription("Time to compute the digest of a served image"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &DownloadMetrics{
		DownloadsTotal:   downloadsTotal,
		DownloadBytes:    downloadBytes,
		ChecksumDuration: checksumDuration,
	}, nil
}

// RecordDownload records one download request. bytes is zero for failures.
func (m *DownloadMetrics) RecordDownload(ctx context.Context, result string, bytes int64) {
	if m == nil {
		return
	}
	m.DownloadsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	if bytes > 0 {
		m.DownloadBytes.Add(ctx, bytes)
	}
}

// RecordChecksum records the time spent hashing a served image.
func (m *DownloadMetrics) RecordChecksum(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.ChecksumDuration.Record(ctx, d.Seconds())
}
