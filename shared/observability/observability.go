package observability

import (
	"context"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/AntoinePinto/docu-talk/pkg/logger"
)

// SetupTracing installs a tracer provider for serviceName. Spans go to
// stdout; swap the exporter for OTLP when a collector is available. The
// returned func flushes and shuts the provider down.
func SetupTracing(serviceName string) func() {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		logger.Global().LogError(err, "Tracing exporter init failed")
		return func() {}
	}

	res, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	provider := trace.NewTracerProvider(
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return func() { _ = provider.Shutdown(context.Background()) }
}

// SetupPrometheusMetrics installs the meter provider backing the predictor's
// duration histograms and serves /metrics on METRICS_ADDR (default :2112).
func SetupPrometheusMetrics() *metric.MeterProvider {
	exp, err := prometheus.New()
	if err != nil {
		logger.Global().LogError(err, "Prometheus exporter init failed")
		return metric.NewMeterProvider()
	}

	mp := metric.NewMeterProvider(metric.WithReader(exp))

	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":2112"
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Global().LogError(err, "Metrics endpoint stopped", "addr", addr)
		}
	}()

	return mp
}
