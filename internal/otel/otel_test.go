package otel

import (
	"context"
	"testing"
)

func TestParseHeaders(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty", raw: "", want: map[string]string{}},
		{name: "single", raw: "Authorization=Basic abc123", want: map[string]string{"Authorization": "Basic abc123"}},
		{name: "multiple with spaces", raw: " a=1 , b = 2 ", want: map[string]string{"a": "1", "b": "2"}},
		{name: "value with equals", raw: "token=x=y", want: map[string]string{"token": "x=y"}},
		{name: "malformed pairs skipped", raw: "novalue,=nokey,ok=1", want: map[string]string{"ok": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseHeaders(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("parseHeaders(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("header %q: got %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestInit_NoEndpointIsNoop(t *testing.T) {
	ctx := context.Background()
	tel, err := Init(ctx, OTELConfig{})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer tel.Shutdown(ctx)

	if tel.Enabled() {
		t.Error("Enabled(): want false without endpoint")
	}
	if tel.Tracer == nil || tel.Metrics == nil {
		t.Fatal("tracer and metrics must be usable without an endpoint")
	}

	// Recording on no-op instruments must not panic.
	tel.Metrics.RecordCycle(ctx, "ok", 0.01)
	tel.Metrics.RecordCapture(ctx, "timeout")
	tel.Metrics.RecordTransition(ctx, "running", "idle")
	_, span := tel.Tracer.Start(ctx, "test")
	span.End()
}

func TestInit_InvalidEndpoint(t *testing.T) {
	if _, err := Init(context.Background(), OTELConfig{Endpoint: "http://[::1"}); err == nil {
		t.Error("expected error for malformed endpoint URL")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordCycle(ctx, "ok", 1)
	m.RecordCapture(ctx, "ok")
	m.RecordCacheHit(ctx)
	m.RecordCacheMiss(ctx)
	m.RecordClassification(ctx, "idle")
	m.RecordTransition(ctx, "idle", "running")
	m.RecordActivation(ctx, "ok")
}
