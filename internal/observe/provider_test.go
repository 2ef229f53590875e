package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

// InitProvider merges its service attributes into resource.Default, which
// rejects a differing schema URL.
func TestSemconvMatchesSDKSchema(t *testing.T) {
	t.Parallel()
	if got := resource.Default().SchemaURL(); got != semconv.SchemaURL {
		t.Fatalf("sdk resource schema = %q, semconv import = %q", got, semconv.SchemaURL)
	}
}

func TestInitProvider_ExportsToRegistry(t *testing.T) {
	prevMP, prevTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMP)
		otel.SetTracerProvider(prevTP)
	})

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	shutdown, err := InitProvider(ctx, ProviderConfig{ServiceVersion: "test", Registerer: reg})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.FramesProcessed.Add(ctx, 3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var got float64
	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), "rapvox_frames_processed") {
			continue
		}
		for _, m := range f.GetMetric() {
			got += m.GetCounter().GetValue()
		}
	}
	if got != 3 {
		t.Errorf("rapvox_frames_processed = %v, want 3", got)
	}

	_, span := StartSpan(ctx, "probe")
	if !span.SpanContext().IsValid() {
		t.Error("global tracer provider does not record spans")
	}
	span.End()
}
