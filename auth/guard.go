package auth

import (
	"net/http"

	"github.com/devmarvs/warden"
	"github.com/devmarvs/warden/apperr"
)

type guardConfig struct {
	message string
}

// GuardOption customizes Guard.
type GuardOption func(*guardConfig)

// GuardMessage sets the unauthorized message.
func GuardMessage(message string) GuardOption {
	return func(cfg *guardConfig) {
		cfg.message = message
	}
}

// Guard rejects requests without an authenticated U.
func Guard[U any](options ...GuardOption) warden.Middleware {
	cfg := guardConfig{message: warden.PrincipalName[U]() + " not authenticated"}
	for _, opt := range options {
		opt(&cfg)
	}

	return func(next warden.Handler) warden.Handler {
		return func(ctx *warden.Context) error {
			if !warden.HasPrincipal[U](ctx) {
				return apperr.Unauthorized(cfg.message, nil)
			}
			return next(ctx)
		}
	}
}

// Redirect sends requests without an authenticated U to path.
func Redirect[U any](path string) warden.Middleware {
	return func(next warden.Handler) warden.Handler {
		return func(ctx *warden.Context) error {
			if !warden.HasPrincipal[U](ctx) {
				return ctx.Redirect(http.StatusSeeOther, path)
			}
			return next(ctx)
		}
	}
}

// Authorizer decides whether an authenticated principal may proceed.
type Authorizer interface {
	Authorize(ctx *warden.Context, principal *warden.Principal) error
}

// Require rejects requests whose *warden.Principal is missing (401) or
// refused by authorizer (403).
func Require(authorizer Authorizer) warden.Middleware {
	return func(next warden.Handler) warden.Handler {
		return func(ctx *warden.Context) error {
			principal, err := warden.RequirePrincipal[*warden.Principal](ctx)
			if err != nil {
				return err
			}
			if authorizer != nil {
				if err := authorizer.Authorize(ctx, principal); err != nil {
					return apperr.Forbidden("forbidden", err)
				}
			}
			return next(ctx)
		}
	}
}
