package tracing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

type Options struct {
	Service      string
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	// Writer receives stdout spans; defaults to os.Stdout.
	Writer io.Writer
}

// Setup installs the global tracer provider and returns its shutdown func. With the
// "none" exporter the global no-op provider stays in place.
func Setup(ctx context.Context, opts Options, logger *slog.Logger) (func(context.Context) error, error) {
	exporterName := strings.ToLower(strings.TrimSpace(opts.Exporter))
	if exporterName == "" || exporterName == ExporterNone {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(opts.Service)))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch exporterName {
	case ExporterStdout:
		stdoutOpts := []stdouttrace.Option{}
		if opts.Writer != nil {
			stdoutOpts = append(stdoutOpts, stdouttrace.WithWriter(opts.Writer))
		}
		exporter, err = stdouttrace.New(stdoutOpts...)
	case ExporterOTLP:
		endpoint := strings.TrimSpace(opts.OTLPEndpoint)
		if endpoint == "" {
			return nil, fmt.Errorf("otlp exporter requires OTLP_ENDPOINT")
		}
		grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if opts.OTLPInsecure {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, grpcOpts...)
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", opts.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", exporterName, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	if logger != nil {
		logger.Info("tracing_initialized", "exporter", exporterName, "endpoint", opts.OTLPEndpoint)
	}
	return tp.Shutdown, nil
}
