package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/devmarvs/warden"
	"github.com/devmarvs/warden/apperr"
)

func TestTraceWithOptionsSkipPath(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	app := warden.New(warden.WithErrorHandler(func(*warden.Context, error) {}))
	app.Use(TraceWithOptions(TraceOptions{Tracer: provider.Tracer("test"), SkipPaths: []string{"/skip"}}))

	app.GET("/skip", func(ctx *warden.Context) error {
		return ctx.Text(http.StatusOK, "ok")
	})
	app.GET("/ok", func(ctx *warden.Context) error {
		return ctx.Text(http.StatusOK, "ok")
	})
	app.GET("/fail", func(ctx *warden.Context) error {
		return apperr.Unauthorized("no", nil)
	})

	for _, path := range []string{"/skip", "/ok", "/fail"} {
		app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "GET /ok" || spans[0].Status().Code != codes.Ok {
		t.Fatalf("unexpected span %s %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error {
		t.Fatalf("expected error status on failing span")
	}
}

func TestRequestIDGeneratesHeader(t *testing.T) {
	app := warden.New()
	app.Use(RequestID())
	var seen string
	app.GET("/", func(ctx *warden.Context) error {
		seen = ctx.RequestID()
		return ctx.NoContent(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(warden.RequestIDHeader) != seen {
		t.Fatalf("expected generated request id echoed, got %q / %q", seen, rec.Header().Get(warden.RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(warden.RequestIDHeader, "given")
	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	if seen != "given" || rec.Header().Get(warden.RequestIDHeader) != "given" {
		t.Fatalf("expected incoming request id kept")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(warden.RequestIDHeader, "bad id\nforged=1")
	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	if seen == "bad id\nforged=1" || !warden.ValidRequestID(seen) {
		t.Fatalf("expected malformed request id replaced, got %q", seen)
	}
}

func TestRecoverConvertsPanic(t *testing.T) {
	app := warden.New()
	app.Use(Recover())
	app.GET("/", func(*warden.Context) error {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
