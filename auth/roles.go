package auth

import (
	"errors"
	"strings"

	"github.com/devmarvs/warden"
)

// Claims consulted for permissions. ScopeClaim holds a space separated list.
const (
	PermissionClaim = "permissions"
	ScopeClaim      = "scope"
)

var (
	// ErrMissingRole is returned by role authorizers.
	ErrMissingRole = errors.New("missing required role")
	// ErrMissingPermission is returned by permission authorizers.
	ErrMissingPermission = errors.New("missing required permission")
)

// Grants is a set of role or permission names.
type Grants map[string]struct{}

// NewGrants builds a set, ignoring empty names.
func NewGrants(names ...string) Grants {
	g := make(Grants, len(names))
	for _, name := range names {
		if name != "" {
			g[name] = struct{}{}
		}
	}
	return g
}

// Has reports whether name is granted.
func (g Grants) Has(name string) bool {
	_, ok := g[name]
	return ok
}

// Any reports whether at least one of names is granted.
func (g Grants) Any(names ...string) bool {
	for _, name := range names {
		if g.Has(name) {
			return true
		}
	}
	return false
}

// All reports whether every one of names is granted. An empty list is
// never satisfied.
func (g Grants) All(names ...string) bool {
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		if !g.Has(name) {
			return false
		}
	}
	return true
}

// RolesOf returns the roles of principal.
func RolesOf(principal *warden.Principal) Grants {
	if principal == nil {
		return Grants{}
	}
	return NewGrants(principal.Roles...)
}

// PermissionsOf collects the PermissionClaim entries and ScopeClaim words of
// principal.
func PermissionsOf(principal *warden.Principal) Grants {
	if principal == nil || principal.Claims == nil {
		return Grants{}
	}
	var names []string
	switch typed := principal.Claims[PermissionClaim].(type) {
	case []string:
		names = append(names, typed...)
	case []any:
		for _, item := range typed {
			if name, ok := item.(string); ok {
				names = append(names, name)
			}
		}
	case string:
		names = append(names, typed)
	}
	if scope, ok := principal.Claims[ScopeClaim].(string); ok {
		names = append(names, strings.Fields(scope)...)
	}
	return NewGrants(names...)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx *warden.Context, principal *warden.Principal) error

// Authorize implements Authorizer.
func (f AuthorizerFunc) Authorize(ctx *warden.Context, principal *warden.Principal) error {
	return f(ctx, principal)
}

// AllOf passes only when every authorizer passes, returning the first refusal.
func AllOf(authorizers ...Authorizer) Authorizer {
	return AuthorizerFunc(func(ctx *warden.Context, principal *warden.Principal) error {
		for _, authorizer := range authorizers {
			if err := authorizer.Authorize(ctx, principal); err != nil {
				return err
			}
		}
		return nil
	})
}

// grantAuthorizer checks names against the grants extracted from a principal.
type grantAuthorizer struct {
	grants func(*warden.Principal) Grants
	names  []string
	all    bool
	err    error
}

func (a grantAuthorizer) Authorize(_ *warden.Context, principal *warden.Principal) error {
	if len(a.names) == 0 {
		return nil
	}
	grants := a.grants(principal)
	ok := grants.Any(a.names...)
	if a.all {
		ok = grants.All(a.names...)
	}
	if !ok {
		return a.err
	}
	return nil
}

// RequireRoles requires every role.
func RequireRoles(roles ...string) Authorizer {
	return grantAuthorizer{grants: RolesOf, names: roles, all: true, err: ErrMissingRole}
}

// RequireAnyRole requires at least one role.
func RequireAnyRole(roles ...string) Authorizer {
	return grantAuthorizer{grants: RolesOf, names: roles, err: ErrMissingRole}
}

// RequirePermissions requires every permission.
func RequirePermissions(permissions ...string) Authorizer {
	return grantAuthorizer{grants: PermissionsOf, names: permissions, all: true, err: ErrMissingPermission}
}

// RequireAnyPermission requires at least one permission.
func RequireAnyPermission(permissions ...string) Authorizer {
	return grantAuthorizer{grants: PermissionsOf, names: permissions, err: ErrMissingPermission}
}
