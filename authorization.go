package warden

import (
	"encoding/base64"
	"strings"
)

// BasicAuthorization holds credentials from a Basic authorization header.
type BasicAuthorization struct {
	Username string
	Password string
}

// BearerAuthorization holds a token from a Bearer authorization header.
type BearerAuthorization struct {
	Token string
}

// ParseBasic parses an Authorization header value using the Basic scheme.
func ParseBasic(header string) (BasicAuthorization, bool) {
	payload, ok := cutScheme(header, "basic")
	if !ok {
		return BasicAuthorization{}, false
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return BasicAuthorization{}, false
	}
	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return BasicAuthorization{}, false
	}
	return BasicAuthorization{Username: username, Password: password}, true
}

// ParseBearer parses an Authorization header value using the Bearer scheme.
func ParseBearer(header string) (BearerAuthorization, bool) {
	token, ok := cutScheme(header, "bearer")
	if !ok {
		return BearerAuthorization{}, false
	}
	return BearerAuthorization{Token: token}, true
}

// BasicAuthorization returns the Basic credentials of the request, if any.
func (c *Context) BasicAuthorization() (BasicAuthorization, bool) {
	return ParseBasic(c.Request.Header.Get("Authorization"))
}

// BearerAuthorization returns the Bearer token of the request, if any.
func (c *Context) BearerAuthorization() (BearerAuthorization, bool) {
	return ParseBearer(c.Request.Header.Get("Authorization"))
}

func cutScheme(header, scheme string) (string, bool) {
	name, rest, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(name, scheme) {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	return rest, rest != ""
}
