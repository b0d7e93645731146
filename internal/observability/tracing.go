// Package observability wires OpenTelemetry tracing.
package observability

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/stemsi/signquest-backend/internal/config"
)

const instrumentationName = "github.com/stemsi/signquest-backend"

// Setup installs the global tracer provider when tracing is enabled and
// returns its shutdown func. With tracing disabled the no-op provider stays
// in place and shutdown does nothing.
func Setup(ctx context.Context, cfg *config.Config, log zerolog.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !cfg.OtelEnabled {
		return noop
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("OTel exporter init failed, tracing disabled")
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.OtelServiceName),
	))
	if err != nil {
		log.Warn().Err(err).Msg("OTel resource init failed, continuing")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().
		Str("service", cfg.OtelServiceName).
		Str("endpoint", cfg.OtelEndpoint).
		Msg("OTel tracing initialized")

	return tp.Shutdown
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

func newExporter(ctx context.Context, cfg *config.Config) (sdktrace.SpanExporter, error) {
	if cfg.OtelEndpoint != "" {
		return otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(cfg.OtelEndpoint))
	}
	return stdouttrace.New(stdouttrace.WithPrettyPrint())
}
