// internal/platform/telemetry/telemetry.go
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Instrumentation es el nombre del tracer usado por el pipeline.
const Instrumentation = "baykus"

// Options configura el exporter de trazas.
type Options struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint URL OTLP/HTTP; vacío = OTEL_EXPORTER_OTLP_ENDPOINT, y si tampoco
	// existe las trazas se descartan.
	Endpoint string
	// Writer, si no es nil, recibe las trazas en JSON (debug local).
	Writer io.Writer
}

// ShutdownFunc vacía y cierra el exporter.
type ShutdownFunc func(context.Context) error

// Init configura OpenTelemetry como tracer provider global.
func Init(ctx context.Context, opts Options) (ShutdownFunc, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = Instrumentation
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(opts.ServiceName),
			semconv.ServiceVersion(opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}

	var exporter sdktrace.SpanExporter
	switch {
	case endpoint != "":
		exporter, err = otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	case opts.Writer != nil:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(opts.Writer))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	default:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(io.Discard))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}

// Tracer devuelve el tracer del pipeline desde el provider global.
func Tracer() trace.Tracer {
	return otel.Tracer(Instrumentation)
}

// NoopTracer no registra nada; útil en tests y con la telemetría desactivada.
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer(Instrumentation)
}
