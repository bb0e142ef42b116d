package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupNoneIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{Service: "api", Exporter: "none"}, nil)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func TestSetupStdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(context.Background(), Options{Service: "worker", Exporter: "stdout", Writer: &buf}, nil)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "minutes.regenerate")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "minutes.regenerate") {
		t.Fatalf("span not exported: %s", buf.String())
	}
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	if _, err := Setup(context.Background(), Options{Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Setup(context.Background(), Options{Exporter: "otlp"}, nil); err == nil {
		t.Fatalf("expected error for missing endpoint")
	}
}
