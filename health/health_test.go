package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarvs/warden"
	"github.com/devmarvs/warden/testutil"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newApp(reg *Registry) *warden.App {
	app := warden.New(warden.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	app.GET("/health", reg.Handler())
	return app
}

func TestHandlerOK(t *testing.T) {
	reg := New()
	reg.Add("db", Ping(pingFunc(func(context.Context) error { return nil })))

	rec := testutil.Do(t, newApp(reg), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report Report
	testutil.DecodeJSON(t, rec, &report)
	assert.Equal(t, "ok", report.Status)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, "db", report.Checks[0].Name)
}

func TestHandlerFailure(t *testing.T) {
	reg := New()
	reg.Add("cache", func(context.Context) error { return nil })
	reg.Add("db", func(context.Context) error { return errors.New("down") })

	rec := testutil.Do(t, newApp(reg), httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	testutil.DecodeJSON(t, rec, &report)
	assert.Equal(t, "fail", report.Status)
	require.Len(t, report.Checks, 2)
	assert.Equal(t, "cache", report.Checks[0].Name)
	assert.Equal(t, "down", report.Checks[1].Error)
}

func TestCheckTimeout(t *testing.T) {
	reg := New(WithTimeout(10 * time.Millisecond))
	reg.Add("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	report, healthy := reg.Check(context.Background())
	assert.False(t, healthy)
	assert.Equal(t, context.DeadlineExceeded.Error(), report.Checks[0].Error)
}

func TestRemove(t *testing.T) {
	reg := New()
	reg.Add("db", func(context.Context) error { return errors.New("down") })
	reg.Remove("db")

	_, healthy := reg.Check(context.Background())
	assert.True(t, healthy)
}
