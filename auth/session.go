package auth

import "github.com/devmarvs/warden"

// SessionAuthenticator re-establishes a principal of type U from the id a
// previous request stored in the session.
type SessionAuthenticator[U warden.SessionAuthenticatable] interface {
	AuthenticateSession(id string, ctx *warden.Context) error
}

// SessionFunc adapts a function to SessionAuthenticator.
type SessionFunc[U warden.SessionAuthenticatable] func(id string, ctx *warden.Context) error

// AuthenticateSession implements SessionAuthenticator.
func (f SessionFunc[U]) AuthenticateSession(id string, ctx *warden.Context) error {
	return f(id, ctx)
}

// SessionKey returns the session value key holding the id of U.
func SessionKey[U any]() string {
	return "_" + warden.PrincipalName[U]() + "Session"
}

// Session returns middleware that keeps U in sync with the request session.
//
// Before the next handler runs, a U already in the auth bag is kept as is;
// otherwise the id stored in the session, if any, is handed to a, whose
// error fails the request. Once the next handler returns without error the
// current U, if any, is written to the session, and a session that no longer
// has one forgets it.
func Session[U warden.SessionAuthenticatable](a SessionAuthenticator[U]) warden.Middleware {
	key := SessionKey[U]()
	extractor := sessionExtractor[U]{SessionAuthenticator: a, key: key}

	return func(next warden.Handler) warden.Handler {
		return func(ctx *warden.Context) error {
			if !warden.HasPrincipal[U](ctx) {
				if err := authenticate(ctx, extractor); err != nil {
					return err
				}
			}

			if err := next(ctx); err != nil {
				return err
			}

			if principal, ok := warden.PrincipalOf[U](ctx); ok {
				ctx.Session().Authenticate(key, principal.SessionID())
			} else if ctx.HasSession() {
				ctx.Session().Unauthenticate(key)
			}
			return nil
		}
	}
}

type sessionExtractor[U warden.SessionAuthenticatable] struct {
	SessionAuthenticator[U]
	key string
}

func (sessionExtractor[U]) Scheme() string { return "session" }

func (e sessionExtractor[U]) Authenticate(ctx *warden.Context) error {
	if !ctx.HasSession() {
		return ErrNoCredentials
	}
	id, ok := ctx.Session().Authenticated(e.key)
	if !ok {
		return ErrNoCredentials
	}
	return e.AuthenticateSession(id, ctx)
}
