package middleware

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/devmarvs/warden"
)

// TraceOptions configures tracing middleware. A nil Tracer uses the global
// provider.
type TraceOptions struct {
	Tracer    trace.Tracer
	SkipPaths []string
}

// DefaultTraceOptions returns default tracing options.
func DefaultTraceOptions() TraceOptions {
	return TraceOptions{SkipPaths: []string{"/metrics", "/health"}}
}

// Trace records request spans with the global tracer provider.
func Trace() warden.Middleware {
	return TraceWithOptions(DefaultTraceOptions())
}

// TraceWithOptions records request spans with options.
func TraceWithOptions(options TraceOptions) warden.Middleware {
	skipper := newPathSkipper(options.SkipPaths)
	return func(next warden.Handler) warden.Handler {
		return func(ctx *warden.Context) error {
			if skipper.skip(ctx.Request.URL.Path) {
				return next(ctx)
			}
			tracer := options.Tracer
			if tracer == nil {
				tracer = otel.Tracer("github.com/devmarvs/warden")
			}

			req := ctx.Request
			spanCtx, span := tracer.Start(req.Context(), req.Method+" "+req.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", req.Method),
					attribute.String("http.target", req.URL.Path),
				))
			defer span.End()
			if ua := req.UserAgent(); ua != "" {
				span.SetAttributes(attribute.String("http.user_agent", ua))
			}
			if id := ctx.RequestID(); id != "" {
				span.SetAttributes(attribute.String("request_id", id))
			}

			recorder := newResponseRecorder(ctx.ResponseWriter)
			ctx.ResponseWriter = recorder
			ctx.Request = req.WithContext(spanCtx)

			err := next(ctx)

			span.SetAttributes(attribute.Int("http.status_code", statusOf(recorder, err)))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		}
	}
}
