package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

func TestExtractTraceContext_W3C(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	r.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	r.Header.Set("tracestate", "congo=t61rcWkgMzE")

	tc := ExtractTraceContext(r)

	if tc.Traceparent != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
		t.Errorf("Traceparent = %q", tc.Traceparent)
	}
	if tc.Tracestate != "congo=t61rcWkgMzE" {
		t.Errorf("Tracestate = %q", tc.Tracestate)
	}
	if tc.XRayTraceID != "" {
		t.Errorf("XRayTraceID = %q, want empty", tc.XRayTraceID)
	}
	if tc.IsEmpty() {
		t.Error("expected non-empty TraceContext")
	}
}

func TestExtractTraceContext_XRay(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	r.Header.Set("X-Amzn-Trace-Id", "Root=1-5759e988-bd862e3fe1be46a994272793;Parent=53995c3f42cd8ad8;Sampled=1")

	tc := ExtractTraceContext(r)

	if tc.XRayTraceID != "Root=1-5759e988-bd862e3fe1be46a994272793;Parent=53995c3f42cd8ad8;Sampled=1" {
		t.Errorf("XRayTraceID = %q", tc.XRayTraceID)
	}
	if tc.Traceparent != "" {
		t.Errorf("Traceparent = %q, want empty", tc.Traceparent)
	}
	if tc.IsEmpty() {
		t.Error("expected non-empty TraceContext")
	}
}

func TestExtractTraceContext_Both(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	r.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	r.Header.Set("tracestate", "congo=t61rcWkgMzE")
	r.Header.Set("X-Amzn-Trace-Id", "Root=1-5759e988-bd862e3fe1be46a994272793")

	tc := ExtractTraceContext(r)

	if tc.Traceparent == "" {
		t.Error("expected Traceparent")
	}
	if tc.Tracestate == "" {
		t.Error("expected Tracestate")
	}
	if tc.XRayTraceID == "" {
		t.Error("expected XRayTraceID")
	}
}

func TestExtractTraceContext_None(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)

	tc := ExtractTraceContext(r)

	if !tc.IsEmpty() {
		t.Errorf("expected empty TraceContext, got %+v", tc)
	}
}

func TestExtractTraceContext_InvalidTraceparent(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	r.Header.Set("traceparent", "not-a-valid-traceparent")

	tc := ExtractTraceContext(r)

	if tc.Traceparent != "" {
		t.Errorf("Traceparent = %q, want empty for invalid input", tc.Traceparent)
	}
}

func TestTraceContext_LogAttrs(t *testing.T) {
	tc := TraceContext{Traceparent: "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"}
	attrs := tc.LogAttrs()
	if len(attrs) != 2 || attrs[0] != "traceparent" {
		t.Errorf("LogAttrs = %v", attrs)
	}
	if got := (TraceContext{}).LogAttrs(); len(got) != 0 {
		t.Errorf("expected no attrs, got %v", got)
	}
}

func TestContextRoundTrip(t *testing.T) {
	tc := TraceContext{Tracestate: "congo=t61rcWkgMzE"}
	ctx := ContextWithTrace(context.Background(), tc)
	if got := TraceContextFromContext(ctx); got != tc {
		t.Errorf("got %+v, want %+v", got, tc)
	}
	if got := TraceContextFromContext(context.Background()); !got.IsEmpty() {
		t.Errorf("expected empty, got %+v", got)
	}
}

func TestTraceMiddleware(t *testing.T) {
	wantTP := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

	var gotTC TraceContext
	inner := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotTC = TraceContextFromContext(r.Context())
	})

	handler := TraceMiddleware(inner)
	r := httptest.NewRequest(http.MethodPost, "/bridge", http.NoBody)
	r.Header.Set("traceparent", wantTP)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if gotTC.Traceparent != wantTP {
		t.Errorf("Traceparent = %q, want %q", gotTC.Traceparent, wantTP)
	}
}

func TestTraceMiddleware_NoHeaders(t *testing.T) {
	var gotTC TraceContext
	inner := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		gotTC = TraceContextFromContext(r.Context())
	})

	handler := TraceMiddleware(inner)
	r := httptest.NewRequest(http.MethodPost, "/bridge", http.NoBody)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !gotTC.IsEmpty() {
		t.Errorf("expected empty TraceContext, got %+v", gotTC)
	}
}

func TestTraceMiddleware_ParentsSpans(t *testing.T) {
	orig := otel.GetTextMapPropagator()
	defer otel.SetTextMapPropagator(orig)
	SetupPropagation()

	var got trace.SpanContext
	inner := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = trace.SpanContextFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/bridge", http.NoBody)
	r.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	TraceMiddleware(inner).ServeHTTP(httptest.NewRecorder(), r)

	if !got.IsRemote() {
		t.Fatal("expected a remote span context")
	}
	if got.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("TraceID = %s", got.TraceID())
	}
}
