// Package auth provides authentication middleware. Every authenticator
// extracts a credential from the request, hands it to an integrator-supplied
// callback and always continues the chain; rejecting unauthenticated
// requests is left to Guard, Redirect or the handlers themselves.
package auth

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/devmarvs/warden"
	"github.com/devmarvs/warden/metrics"
)

const tracerName = "github.com/devmarvs/warden/auth"

// ErrNoCredentials reports that the request carried nothing to authenticate.
// Middleware treats it as absence and continues unauthenticated.
var ErrNoCredentials = errors.New("no credentials")

// Authenticator attempts to authenticate a request. A successful attempt
// stores a principal with warden.Login; an error other than ErrNoCredentials
// fails the request.
type Authenticator interface {
	Authenticate(ctx *warden.Context) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx *warden.Context) error

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx *warden.Context) error {
	return f(ctx)
}

// Schemer is implemented by authenticators that name their scheme in spans,
// metrics and hooks.
type Schemer interface {
	Scheme() string
}

// Middleware runs a before invoking the next handler. Missing credentials
// never short-circuit the chain; errors returned by a do.
func Middleware(a Authenticator) warden.Middleware {
	return func(next warden.Handler) warden.Handler {
		return func(ctx *warden.Context) error {
			if err := authenticate(ctx, a); err != nil {
				return err
			}
			return next(ctx)
		}
	}
}

func schemeOf(a Authenticator) string {
	if s, ok := a.(Schemer); ok {
		return s.Scheme()
	}
	return "custom"
}

// authenticate runs one attempt with hooks, a span and the attempt counter.
func authenticate(ctx *warden.Context, a Authenticator) error {
	scheme := schemeOf(a)
	hooks := ctx.App().AuthHooks()
	if hooks.BeforeAuthenticate != nil {
		hooks.BeforeAuthenticate(ctx, scheme)
	}

	parent := ctx.Request.Context()
	spanCtx, span := otel.Tracer(tracerName).Start(parent, "auth."+scheme,
		trace.WithAttributes(attribute.String("auth.scheme", scheme)))
	ctx.Request = ctx.Request.WithContext(spanCtx)

	before := ctx.Logins()
	err := a.Authenticate(ctx)
	ctx.Request = ctx.Request.WithContext(detachSpan(ctx.Request.Context(), spanCtx, parent))

	outcome := metrics.OutcomeUnauthenticated
	switch {
	case errors.Is(err, ErrNoCredentials):
		outcome = metrics.OutcomeSkipped
		err = nil
	case err != nil:
		outcome = metrics.OutcomeError
	case ctx.Logins() > before:
		outcome = metrics.OutcomeAuthenticated
	}

	span.SetAttributes(attribute.String("auth.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	metrics.AuthAttempts.WithLabelValues(scheme, outcome).Inc()

	if hooks.AfterAuthenticate != nil {
		hooks.AfterAuthenticate(ctx, scheme, outcome == metrics.OutcomeAuthenticated, err)
	}
	return err
}

// detachSpan drops the finished auth span from current while keeping any
// values the authenticator added on top of spanCtx.
func detachSpan(current, spanCtx, parent context.Context) context.Context {
	if current == spanCtx {
		return parent
	}
	return trace.ContextWithSpan(current, trace.SpanFromContext(parent))
}
