package auth

import "github.com/devmarvs/warden"

// BearerAuthenticator verifies a token from a Bearer authorization header.
type BearerAuthenticator interface {
	AuthenticateBearer(bearer warden.BearerAuthorization, ctx *warden.Context) error
}

// BearerFunc adapts a function to BearerAuthenticator.
type BearerFunc func(bearer warden.BearerAuthorization, ctx *warden.Context) error

// AuthenticateBearer implements BearerAuthenticator.
func (f BearerFunc) AuthenticateBearer(bearer warden.BearerAuthorization, ctx *warden.Context) error {
	return f(bearer, ctx)
}

// Bearer returns middleware authenticating requests with a Bearer token.
func Bearer(a BearerAuthenticator) warden.Middleware {
	return Middleware(bearerExtractor{a})
}

type bearerExtractor struct {
	BearerAuthenticator
}

func (bearerExtractor) Scheme() string { return "bearer" }

func (e bearerExtractor) Authenticate(ctx *warden.Context) error {
	bearer, ok := ctx.BearerAuthorization()
	if !ok {
		return ErrNoCredentials
	}
	return e.AuthenticateBearer(bearer, ctx)
}
