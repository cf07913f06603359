// internal/telemetry/telemetry.go
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"mcp-chew-check/internal/models"
)

const meterName = "mcp-chew-check"

// Recorder counts chew checks by source and verdict.
type Recorder struct {
	checks       metric.Int64Counter
	failures     metric.Int64Counter
	duration     metric.Float64Histogram
	storageFails metric.Int64Counter
}

// NewRecorder creates the instruments on meter. A nil meter uses the global provider.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	var r Recorder
	var err error
	r.checks, err = meter.Int64Counter("chewcheck.checks.total",
		metric.WithDescription("Completed chew checks"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create checks counter: %w", err)
	}
	r.failures, err = meter.Int64Counter("chewcheck.failures.total",
		metric.WithDescription("Chew checks that returned an error"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create failures counter: %w", err)
	}
	r.storageFails, err = meter.Int64Counter("chewcheck.storage_failures.total",
		metric.WithDescription("Checks that could not be written to history"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage counter: %w", err)
	}
	r.duration, err = meter.Float64Histogram("chewcheck.duration",
		metric.WithDescription("End to end chew check duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}
	return &r, nil
}

func (r *Recorder) RecordCheck(ctx context.Context, source models.ResultSource, verdict models.FoodVerdict, took time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("source", string(source)),
		attribute.String("verdict", string(verdict)),
	)
	r.checks.Add(ctx, 1, attrs)
	r.duration.Record(ctx, took.Seconds(), metric.WithAttributes(attribute.String("source", string(source))))
}

func (r *Recorder) RecordFailure(ctx context.Context, reason string) {
	r.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (r *Recorder) RecordStorageFailure(ctx context.Context) {
	r.storageFails.Add(ctx, 1)
}

// Provider is an in-process meter provider whose readings can be pulled on demand.
type Provider struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
}

func NewProvider() *Provider {
	reader := sdkmetric.NewManualReader()
	return &Provider{
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
		reader:   reader,
	}
}

func (p *Provider) Meter() metric.Meter {
	return p.provider.Meter(meterName)
}

// Snapshot collects counter totals and histogram counts keyed by
// "name{attr=value,...}".
func (p *Provider) Snapshot(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("failed to collect metrics: %w", err)
	}

	out := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[key(m.Name, dp.Attributes)] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[key(m.Name, dp.Attributes)] += int64(dp.Count)
				}
			}
		}
	}
	return out, nil
}

func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

func key(name string, attrs attribute.Set) string {
	if attrs.Len() == 0 {
		return name
	}
	return name + "{" + attrs.Encoded(attribute.DefaultEncoder()) + "}"
}
