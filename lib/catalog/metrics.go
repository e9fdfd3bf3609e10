package catalog

import (
	"context"
	"time"

	"github.com/onkernel/kernel-ota/lib/paths"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments for catalog operations.
type Metrics struct {
	ingestDuration metric.Float64Histogram
	ingestTotal    metric.Int64Counter
}

// newMetrics creates the catalog instruments. The kernel count gauge reads
// the history record on each collection.
func newMetrics(meter metric.Meter, p *paths.Paths) (*Metrics, error) {
	ingestDuration, err := meter.Float64Histogram(
		"ota_catalog_ingest_duration_seconds",
		metric.WithDescription("Time to ingest a kernel image"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	ingestTotal, err := meter.Int64Counter(
		"ota_catalog_ingestions_total",
		metric.WithDescription("Total number of kernel ingestions"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"ota_catalog_kernels_total",
		metric.WithDescription("Number of kernel versions in the catalog"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			history, err := readHistory(p)
			if err != nil {
				return nil
			}
			o.Observe(int64(len(history.Versions)))
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ingestDuration: ingestDuration,
		ingestTotal:    ingestTotal,
	}, nil
}

// RecordIngestion records one AddKernel call.
func (m *Metrics) RecordIngestion(ctx context.Context, result string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("result", result),
	}

	m.ingestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.ingestTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}
