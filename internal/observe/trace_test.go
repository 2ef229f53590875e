package observe

import (
	"bytes"
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// captureLogs redirects the default logger into a buffer. Tests using it must
// not run in parallel.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestCorrelationID(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without span = %q, want empty", got)
	}

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	seen := make(map[string]bool)
	for range 50 {
		ctx, span := tp.Tracer("test").Start(context.Background(), "utterance")
		cid := CorrelationID(ctx)
		span.End()
		if _, err := hex.DecodeString(cid); err != nil || len(cid) != 32 {
			t.Fatalf("correlation id %q is not 32 hex chars", cid)
		}
		if seen[cid] {
			t.Fatalf("duplicate correlation id %s", cid)
		}
		seen[cid] = true
	}
}

func TestStartSpan_UsesGlobalProvider(t *testing.T) {
	h := newHarness(t)
	ctx, span := StartSpan(context.Background(), "session.run")
	if CorrelationID(ctx) == "" {
		t.Error("span has no trace id")
	}
	span.End()
	spans := h.spans.GetSpans()
	if len(spans) != 1 || spans[0].Name != "session.run" {
		t.Errorf("spans = %v, want one session.run", spans)
	}
}

func TestSessionLogger(t *testing.T) {
	newHarness(t)

	tests := []struct {
		name      string
		withSpan  bool
		wantTrace bool
	}{
		{"without span", false, false},
		{"with span", true, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := captureLogs(t)
			ctx := context.Background()
			if tc.withSpan {
				var span trace.Span
				ctx, span = StartSpan(ctx, "log")
				defer span.End()
			}
			SessionLogger(ctx, "abc-123").Info("final emitted")

			out := buf.String()
			if !strings.Contains(out, "session_id=abc-123") {
				t.Errorf("missing session_id: %s", out)
			}
			if got := strings.Contains(out, "trace_id="); got != tc.wantTrace {
				t.Errorf("trace_id present = %v, want %v: %s", got, tc.wantTrace, out)
			}
			if got := strings.Contains(out, "span_id="); got != tc.wantTrace {
				t.Errorf("span_id present = %v, want %v: %s", got, tc.wantTrace, out)
			}
		})
	}
}
