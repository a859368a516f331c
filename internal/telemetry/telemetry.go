package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Init configures an OTLP trace provider if endpoint is provided. The
// returned function flushes and stops the provider.
func Init(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	if endpoint == "" {
		log.Debug().Msg("OTEL_EXPORTER_OTLP_ENDPOINT not set, tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newTraceExporter(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info().Str("endpoint", endpoint).Msg("Tracing enabled")

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown tracer provider: %w", err)
		}
		return nil
	}, nil
}

// WrapHandler starts a server span for every request handled by h.
func WrapHandler(h http.Handler, serviceName string) http.Handler {
	return otelhttp.NewHandler(h, serviceName)
}

// newTraceExporter accepts either host:port or a full URL.
func newTraceExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	opts, err := exporterOptions(endpoint)
	if err != nil {
		return nil, err
	}
	return otlptracehttp.New(ctx, opts...)
}

func exporterOptions(endpoint string) ([]otlptracehttp.Option, error) {
	var opts []otlptracehttp.Option

	// Without a scheme, "collector:4318" would parse with "collector" as the scheme.
	if !strings.Contains(endpoint, "://") {
		opts = append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
		return opts, nil
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLP endpoint %s: %w", endpoint, err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid OTLP endpoint: %s", endpoint)
	}
	opts = append(opts, otlptracehttp.WithEndpoint(parsed.Host))
	if parsed.Path != "" && parsed.Path != "/" {
		opts = append(opts, otlptracehttp.WithURLPath(parsed.Path))
	}
	if parsed.Scheme == "http" {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts, nil
}
