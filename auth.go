package warden

import (
	"reflect"

	"github.com/devmarvs/warden/apperr"
	"github.com/devmarvs/warden/storage"
)

// SessionAuthenticatable is a principal that can be persisted in a session
// by its identifier.
type SessionAuthenticatable interface {
	SessionID() string
}

// Principal is a general purpose authenticated actor.
type Principal struct {
	ID     string
	Roles  []string
	Claims map[string]any
}

// SessionID implements SessionAuthenticatable.
func (p *Principal) SessionID() string {
	return p.ID
}

// HasRole reports whether the principal holds role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthHooks provides hook points around authenticators.
type AuthHooks struct {
	BeforeAuthenticate func(ctx *Context, scheme string)
	AfterAuthenticate  func(ctx *Context, scheme string, authenticated bool, err error)
}

// Login stores principal as the authenticated U for this request.
func Login[U any](ctx *Context, principal U) {
	storage.Set(ctx.Auth(), storage.TypeKey[U](), principal)
	ctx.logins++
}

// Logout removes the authenticated U from this request.
func Logout[U any](ctx *Context) {
	storage.Remove(ctx.Auth(), storage.TypeKey[U]())
}

// PrincipalOf returns the authenticated U, if any.
func PrincipalOf[U any](ctx *Context) (U, bool) {
	return storage.Get(ctx.Auth(), storage.TypeKey[U]())
}

// HasPrincipal reports whether U has been authenticated.
func HasPrincipal[U any](ctx *Context) bool {
	return storage.Contains(ctx.Auth(), storage.TypeKey[U]())
}

// RequirePrincipal returns the authenticated U or an unauthorized error.
func RequirePrincipal[U any](ctx *Context) (U, error) {
	principal, ok := PrincipalOf[U](ctx)
	if !ok {
		return principal, apperr.Unauthorized(PrincipalName[U]()+" not authenticated", nil)
	}
	return principal, nil
}

// PrincipalName returns the unqualified type name of U, without pointer
// markers, as used in messages and session keys.
func PrincipalName[U any]() string {
	t := reflect.TypeFor[U]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}
