// Package observability wires OpenTelemetry tracing and the job metrics.
//
//	tp, err := observability.InitTracer(ctx, cfg.Tracing, res)
//	defer tp.Shutdown(ctx)
//
//	mp, err := observability.InitMeter(ctx, cfg.Metrics, res)
//	defer mp.Shutdown(ctx)
//	metrics, err := observability.NewJobMetrics(observability.Meter())
//
// Without InitTracer and InitMeter the global no-op providers are used, so
// spans and instruments are always safe to create.
package observability
