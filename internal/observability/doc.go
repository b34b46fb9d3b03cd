// Package observability provides the control plane's tracing, metrics,
// structured-logging, and health-check infrastructure, built entirely on
// OpenTelemetry and Prometheus.
//
// # Quick Start
//
//	cfg := observability.DefaultConfig("clusterd")
//	obs, err := observability.NewObservability(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer obs.Shutdown(context.Background())
//
//	logger := obs.Logger
//	tracer := obs.Tracer
//	meter := obs.Meter
//
// This wires an OTLP trace exporter, a Prometheus metrics exporter, a
// trace-context-aware slog.Logger, and standard resource attributes
// (service name, version, environment).
//
// # Tracing
//
//	traceManager := observability.NewTraceManager(cfg.ServiceName)
//	ctx, span := traceManager.StartSpan(ctx, "registry.select_cluster")
//	defer span.End()
//	if err != nil {
//	    traceManager.RecordError(span, err)
//	} else {
//	    traceManager.SetSpanSuccess(span)
//	}
//
// Domain-specific span helpers: StartPublishSpan/StartConsumeSpan for
// message-bus traffic, StartMigrationSpan for agent migrations,
// AddComponentAttribute to tag which subsystem emitted a span.
//
// # Metrics
//
//	metricsManager, err := observability.NewMetricsManager(obs.Meter)
//	metricsManager.IncrementEventsProcessed(ctx, "agent:spawned", "balancer", true)
//	timer := metricsManager.StartTimer()
//	defer timer(ctx, "migration", "balancer")
//
// All metrics are exposed on the health server's /metrics endpoint.
//
// # Health Checks
//
//	healthServer := observability.NewHealthServer(port, cfg.ServiceName, cfg.ServiceVersion)
//	healthServer.AddChecker("self", observability.NewBasicHealthChecker("self", func(ctx context.Context) error {
//	    return nil
//	}))
//	go healthServer.Start(ctx)
//
// Exposes GET /health, /ready, and /metrics.
//
// # Graceful Shutdown
//
// Always call obs.Shutdown(ctx) before exit to flush pending traces and
// export final metrics.
package observability
