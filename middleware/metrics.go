package middleware

import (
	"strconv"
	"time"

	"github.com/devmarvs/warden"
	"github.com/devmarvs/warden/metrics"
)

// MetricsOptions configures request metrics.
type MetricsOptions struct {
	SkipPaths []string
}

// Metrics records request counts and latency into the Prometheus collectors.
func Metrics() warden.Middleware {
	return MetricsWithOptions(MetricsOptions{SkipPaths: []string{"/metrics"}})
}

// MetricsWithOptions records request metrics with options.
func MetricsWithOptions(options MetricsOptions) warden.Middleware {
	skipper := newPathSkipper(options.SkipPaths)
	return func(next warden.Handler) warden.Handler {
		return func(ctx *warden.Context) error {
			if skipper.skip(ctx.Request.URL.Path) {
				return next(ctx)
			}

			start := time.Now()
			recorder := newResponseRecorder(ctx.ResponseWriter)
			ctx.ResponseWriter = recorder

			err := next(ctx)

			method := ctx.Request.Method
			metrics.RequestsTotal.WithLabelValues(method, strconv.Itoa(statusOf(recorder, err))).Inc()
			metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
