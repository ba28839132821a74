package auth

import "github.com/devmarvs/warden"

// BasicAuthenticator verifies credentials from a Basic authorization header.
type BasicAuthenticator interface {
	AuthenticateBasic(basic warden.BasicAuthorization, ctx *warden.Context) error
}

// BasicFunc adapts a function to BasicAuthenticator.
type BasicFunc func(basic warden.BasicAuthorization, ctx *warden.Context) error

// AuthenticateBasic implements BasicAuthenticator.
func (f BasicFunc) AuthenticateBasic(basic warden.BasicAuthorization, ctx *warden.Context) error {
	return f(basic, ctx)
}

// Basic returns middleware authenticating requests with Basic credentials.
// Requests without a well-formed Basic header continue unauthenticated.
func Basic(a BasicAuthenticator) warden.Middleware {
	return Middleware(basicExtractor{a})
}

type basicExtractor struct {
	BasicAuthenticator
}

func (basicExtractor) Scheme() string { return "basic" }

func (e basicExtractor) Authenticate(ctx *warden.Context) error {
	basic, ok := ctx.BasicAuthorization()
	if !ok {
		return ErrNoCredentials
	}
	return e.AuthenticateBasic(basic, ctx)
}
