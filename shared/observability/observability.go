package observability

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// SetupTracing initializes OpenTelemetry tracing with a stdout exporter
// (replace with OTLP in prod)
func SetupTracing(serviceName string) func() {
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		log.Fatalf("failed to initialize stdouttrace exporter: %v", err)
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

// Metrics holds the application meters
type Metrics struct {
	NarratorTurns     metric.Int64Counter
	ProviderFallbacks metric.Int64Counter
	MemoryLookups     metric.Int64Counter
}

// SetupPrometheusMetrics initializes the Prometheus exporter and registers
// the application counters. The /metrics handler is returned for mounting
// on the main router.
func SetupPrometheusMetrics(serviceName string) (*Metrics, gin.HandlerFunc) {
	exp, err := prometheus.New()
	if err != nil {
		log.Fatalf("failed to initialize prometheus exporter: %v", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)

	meter := mp.Meter(serviceName)
	m := &Metrics{}
	m.NarratorTurns, _ = meter.Int64Counter("narrator_turns_total",
		metric.WithDescription("Number of narrator turns resolved"))
	m.ProviderFallbacks, _ = meter.Int64Counter("llm_provider_fallbacks_total",
		metric.WithDescription("Number of times a provider failed and the chain advanced"))
	m.MemoryLookups, _ = meter.Int64Counter("memory_lookups_total",
		metric.WithDescription("Number of vector memory retrievals"))

	return m, gin.WrapH(promhttp.Handler())
}

// CountProviderFallback records one failed provider attempt
func (m *Metrics) CountProviderFallback(ctx context.Context, provider string) {
	if m == nil || m.ProviderFallbacks == nil {
		return
	}
	m.ProviderFallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// CountNarratorTurn records one resolved narrator turn
func (m *Metrics) CountNarratorTurn(ctx context.Context, kind string) {
	if m == nil || m.NarratorTurns == nil {
		return
	}
	m.NarratorTurns.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// CountMemoryLookup records one vector memory retrieval
func (m *Metrics) CountMemoryLookup(ctx context.Context) {
	if m == nil || m.MemoryLookups == nil {
		return
	}
	m.MemoryLookups.Add(ctx, 1)
}
