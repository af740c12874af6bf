package telemetry

import (
	"context"
	"net/http"
	"regexp"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

type traceContextKey struct{}

// traceparentRe validates the W3C traceparent format:
// version-trace_id-parent_id-trace_flags.
var traceparentRe = regexp.MustCompile(`^[0-9a-f]{2}-[0-9a-f]{32}-[0-9a-f]{16}-[0-9a-f]{2}$`)

// TraceContext holds the raw trace headers a page sent with its bridge
// upgrade request. They are kept for logging; span parenting goes through
// the propagator.
type TraceContext struct {
	Traceparent string
	Tracestate  string
	XRayTraceID string
}

// IsEmpty returns true when no trace data is present.
func (tc TraceContext) IsEmpty() bool {
	return tc.Traceparent == "" && tc.Tracestate == "" && tc.XRayTraceID == ""
}

// LogAttrs returns the non-empty headers as slog key/value pairs.
func (tc TraceContext) LogAttrs() []any {
	var attrs []any
	if tc.Traceparent != "" {
		attrs = append(attrs, "traceparent", tc.Traceparent)
	}
	if tc.XRayTraceID != "" {
		attrs = append(attrs, "xray_trace_id", tc.XRayTraceID)
	}
	return attrs
}

// ExtractTraceContext reads trace headers from an inbound HTTP request.
// Invalid traceparent values are silently discarded.
func ExtractTraceContext(r *http.Request) TraceContext {
	tc := TraceContext{
		Tracestate:  r.Header.Get("tracestate"),
		XRayTraceID: r.Header.Get("X-Amzn-Trace-Id"),
	}
	if tp := r.Header.Get("traceparent"); traceparentRe.MatchString(tp) {
		tc.Traceparent = tp
	}
	return tc
}

// ContextWithTrace stores a TraceContext in a Go context.
func ContextWithTrace(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// TraceContextFromContext retrieves a TraceContext from a Go context.
// Returns an empty TraceContext if none is stored.
func TraceContextFromContext(ctx context.Context) TraceContext {
	tc, _ := ctx.Value(traceContextKey{}).(TraceContext)
	return tc
}

// TraceMiddleware makes the caller's trace the parent of spans started from
// the request context, using the global propagator (see SetupPropagation),
// and keeps the raw headers available through TraceContextFromContext.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := ExtractTraceContext(r)
		if !tc.IsEmpty() {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			r = r.WithContext(ContextWithTrace(ctx, tc))
		}
		next.ServeHTTP(w, r)
	})
}
