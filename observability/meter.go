package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/whisperjob/logger"
)

// InitMeter installs a periodic OTLP meter provider as the global provider.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, cfg MetricsConfig, res Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	r, err := newResource(res)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(r),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))
	return mp, nil
}

// Meter returns the service meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(tracerName)
}

// JobMetrics holds the job instruments. A nil *JobMetrics records nothing.
type JobMetrics struct {
	jobsTotal   metric.Int64Counter
	jobDuration metric.Float64Histogram
	batches     metric.Int64Counter
	batchBytes  metric.Int64Histogram
	modelLoads  metric.Int64Counter
}

// NewJobMetrics creates the job instruments on meter.
func NewJobMetrics(meter metric.Meter) (*JobMetrics, error) {
	jobsTotal, err := meter.Int64Counter("whisperjob.jobs.total",
		metric.WithDescription("Jobs handled by terminal status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating whisperjob.jobs.total counter: %w", err)
	}

	jobDuration, err := meter.Float64Histogram("whisperjob.job.duration",
		metric.WithDescription("Job duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating whisperjob.job.duration histogram: %w", err)
	}

	batches, err := meter.Int64Counter("whisperjob.batches.total",
		metric.WithDescription("Outbound batches by aggregation mode"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating whisperjob.batches.total counter: %w", err)
	}

	batchBytes, err := meter.Int64Histogram("whisperjob.batch.bytes",
		metric.WithDescription("Estimated size of outbound batches"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating whisperjob.batch.bytes histogram: %w", err)
	}

	modelLoads, err := meter.Int64Counter("whisperjob.model.loads",
		metric.WithDescription("Model cache lookups by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating whisperjob.model.loads counter: %w", err)
	}

	return &JobMetrics{
		jobsTotal:   jobsTotal,
		jobDuration: jobDuration,
		batches:     batches,
		batchBytes:  batchBytes,
		modelLoads:  modelLoads,
	}, nil
}

// RecordJob records a finished job.
func (m *JobMetrics) RecordJob(ctx context.Context, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.jobDuration.Record(ctx, d.Seconds())
}

// RecordBatch records one emitted batch.
func (m *JobMetrics) RecordBatch(ctx context.Context, mode string, size int) {
	if m == nil {
		return
	}
	m.batches.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
	m.batchBytes.Record(ctx, int64(size))
}

// RecordModelLoad records a model cache lookup. Its signature matches
// modelcache.Observer.
func (m *JobMetrics) RecordModelLoad(ctx context.Context, engine, model, outcome string, _ time.Duration) {
	if m == nil {
		return
	}
	m.modelLoads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("model", model),
		attribute.String("outcome", outcome),
	))
}
