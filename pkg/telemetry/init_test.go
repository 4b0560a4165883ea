package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestInit_WritesSpansToWriter(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	var buf bytes.Buffer

	shutdown, err := Init(context.Background(), Options{ServiceVersion: "test", Writer: &buf})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	_, span := Tracer("telemetry-test").Start(context.Background(), "demo.target")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "demo.target") {
		t.Errorf("span not exported: %s", out)
	}
	if !strings.Contains(out, ServiceName) {
		t.Errorf("service name missing from resource: %s", out)
	}
}

func TestInit_OTLPEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{Endpoint: "http://127.0.0.1:4318"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	// Nothing was recorded, so shutdown does not need the collector.
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}
