package tracing

import (
	"fmt"
	"net/http"

	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware wraps next in a server span named after the request pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := extractHTTP(r)
		ctx, span := StartSpan(ctx, r.Method+" "+r.URL.Path, WithSpanKind(SpanKindServer), WithAttributes(map[string]any{
			string(semconv.HTTPRequestMethodKey): r.Method,
			"url.path":                           r.URL.Path,
		}))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		inner := r.WithContext(ctx)
		next.ServeHTTP(rec, inner)

		if inner.Pattern != "" {
			span.SetName(inner.Pattern)
			span.SetAttributes(semconv.HTTPRoute(inner.Pattern))
		}
		span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))
		if rec.status >= http.StatusInternalServerError {
			EndSpan(span, fmt.Errorf("http status %d", rec.status))
			return
		}
		span.End()
	})
}
