package middleware

import (
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/devmarvs/warden"
)

// AccessLog is what the access logger observed about a finished request.
type AccessLog struct {
	Status   int
	Bytes    int
	Duration time.Duration
	Err      error
}

// LogField builds one attribute of the access log entry.
type LogField func(*warden.Context, AccessLog) slog.Attr

// Sampler decides whether a successful request is logged. Failed requests
// are always logged.
type Sampler func(*warden.Context) bool

// SampleRate returns a sampler keeping roughly rate of requests.
func SampleRate(rate float64) Sampler {
	switch {
	case rate >= 1:
		return func(*warden.Context) bool { return true }
	case rate <= 0:
		return func(*warden.Context) bool { return false }
	}
	return func(*warden.Context) bool { return rand.Float64() < rate }
}

// LoggerOptions configures access logging.
type LoggerOptions struct {
	Fields    []LogField
	Message   string
	SkipPaths []string
	Sampler   Sampler
	// Level picks the entry level. Defaults to DefaultLogLevel.
	Level func(AccessLog) slog.Level
}

// DefaultLoggerOptions returns default logging options.
func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		Fields:  DefaultLogFields(),
		Message: "request completed",
		Level:   DefaultLogLevel,
	}
}

// DefaultLogLevel logs server errors at error level and everything else at
// info.
func DefaultLogLevel(entry AccessLog) slog.Level {
	if entry.Status >= http.StatusInternalServerError {
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Logger writes one access log entry per request.
func Logger() warden.Middleware {
	return LoggerWithOptions(DefaultLoggerOptions())
}

// LoggerWith logs requests with custom fields.
func LoggerWith(fields ...LogField) warden.Middleware {
	return LoggerWithOptions(LoggerOptions{Fields: fields})
}

// LoggerWithOptions logs requests using options.
func LoggerWithOptions(options LoggerOptions) warden.Middleware {
	defaults := DefaultLoggerOptions()
	if len(options.Fields) == 0 {
		options.Fields = defaults.Fields
	}
	if options.Message == "" {
		options.Message = defaults.Message
	}
	if options.Level == nil {
		options.Level = defaults.Level
	}
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

			entry := AccessLog{
				Status:   statusOf(recorder, err),
				Bytes:    recorder.bytes,
				Duration: time.Since(start),
				Err:      err,
			}
			failed := err != nil || entry.Status >= http.StatusInternalServerError
			if !failed && options.Sampler != nil && !options.Sampler(ctx) {
				return err
			}

			attrs := make([]slog.Attr, 0, len(options.Fields))
			for _, field := range options.Fields {
				attrs = append(attrs, field(ctx, entry))
			}
			ctx.Logger().Slog().LogAttrs(ctx.Context(), options.Level(entry), options.Message, attrs...)
			return err
		}
	}
}

// DefaultLogFields returns the standard access log fields.
func DefaultLogFields() []LogField {
	return []LogField{
		LogMethod(),
		LogRoute(),
		LogStatus(),
		LogDuration(),
		LogBytes(),
		LogAuthenticated(),
	}
}

// LogMethod logs the HTTP method.
func LogMethod() LogField {
	return func(ctx *warden.Context, _ AccessLog) slog.Attr {
		return slog.String("method", ctx.Request.Method)
	}
}

// LogPath logs the request path.
func LogPath() LogField {
	return func(ctx *warden.Context, _ AccessLog) slog.Attr {
		return slog.String("path", ctx.Request.URL.Path)
	}
}

// LogRoute logs the matched route pattern, falling back to the path for
// unmatched requests.
func LogRoute() LogField {
	return func(ctx *warden.Context, _ AccessLog) slog.Attr {
		if pattern := ctx.Request.Pattern; pattern != "" {
			return slog.String("route", pattern)
		}
		return slog.String("route", ctx.Request.URL.Path)
	}
}

// LogStatus logs the response status.
func LogStatus() LogField {
	return func(_ *warden.Context, entry AccessLog) slog.Attr {
		return slog.Int("status", entry.Status)
	}
}

// LogDuration logs request latency.
func LogDuration() LogField {
	return func(_ *warden.Context, entry AccessLog) slog.Attr {
		return slog.Duration("duration", entry.Duration)
	}
}

// LogBytes logs the response size.
func LogBytes() LogField {
	return func(_ *warden.Context, entry AccessLog) slog.Attr {
		return slog.Int("bytes", entry.Bytes)
	}
}

// LogRemoteAddr logs the client IP.
func LogRemoteAddr() LogField {
	return func(ctx *warden.Context, _ AccessLog) slog.Attr {
		if host, _, err := net.SplitHostPort(ctx.Request.RemoteAddr); err == nil {
			return slog.String("remote_addr", host)
		}
		return slog.String("remote_addr", ctx.Request.RemoteAddr)
	}
}

// LogUserAgent logs the user agent.
func LogUserAgent() LogField {
	return func(ctx *warden.Context, _ AccessLog) slog.Attr {
		return slog.String("user_agent", ctx.Request.UserAgent())
	}
}

// LogAuthenticated logs whether any principal was authenticated.
func LogAuthenticated() LogField {
	return func(ctx *warden.Context, _ AccessLog) slog.Attr {
		return slog.Bool("authenticated", ctx.Auth().Len() > 0)
	}
}

// LogPrincipal logs the session id of the authenticated U under key, or an
// empty string when U is absent.
func LogPrincipal[U warden.SessionAuthenticatable](key string) LogField {
	return func(ctx *warden.Context, _ AccessLog) slog.Attr {
		if principal, ok := warden.PrincipalOf[U](ctx); ok {
			return slog.String(key, principal.SessionID())
		}
		return slog.String(key, "")
	}
}

// LogSession logs whether the request carried or started a session.
func LogSession() LogField {
	return func(ctx *warden.Context, _ AccessLog) slog.Attr {
		return slog.Bool("session", ctx.HasSession())
	}
}
