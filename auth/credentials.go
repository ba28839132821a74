package auth

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/devmarvs/warden"
)

// CredentialsAuthenticator verifies credentials decoded from the request body.
type CredentialsAuthenticator[C any] interface {
	AuthenticateCredentials(credentials C, ctx *warden.Context) error
}

// CredentialsFunc adapts a function to CredentialsAuthenticator.
type CredentialsFunc[C any] func(credentials C, ctx *warden.Context) error

// AuthenticateCredentials implements CredentialsAuthenticator.
func (f CredentialsFunc[C]) AuthenticateCredentials(credentials C, ctx *warden.Context) error {
	return f(credentials, ctx)
}

// Credentials returns middleware that decodes the body into C with the app
// decoders. A body that fails to decode is not an attempt: the request
// continues unauthenticated and the callback is not run. The body stays
// readable for downstream handlers.
func Credentials[C any](a CredentialsAuthenticator[C]) warden.Middleware {
	return Middleware(credentialsExtractor[C]{a})
}

type credentialsExtractor[C any] struct {
	CredentialsAuthenticator[C]
}

func (credentialsExtractor[C]) Scheme() string { return "credentials" }

func (e credentialsExtractor[C]) Authenticate(ctx *warden.Context) error {
	raw, err := ctx.ReadBody()
	if err != nil {
		ctx.Logger().Debug("credentials body unreadable", slog.Any("error", err))
		return ErrNoCredentials
	}

	var credentials C
	err = ctx.Decode(&credentials)
	ctx.Request.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		ctx.Logger().Debug("credentials not decoded", slog.Any("error", err))
		return ErrNoCredentials
	}
	return e.AuthenticateCredentials(credentials, ctx)
}
