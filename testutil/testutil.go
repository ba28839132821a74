// Package testutil runs requests and authentication chains in tests.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devmarvs/warden"
)

// Do executes a request against a handler.
func Do(t *testing.T, handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// MustStatus fails the test unless the response has status.
func MustStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
}

// MustHeader fails the test unless the response header key equals value.
func MustHeader(t *testing.T, rec *httptest.ResponseRecorder, key, value string) {
	t.Helper()
	if got := rec.Header().Get(key); got != value {
		t.Fatalf("expected header %s=%q, got %q", key, value, got)
	}
}

// DecodeJSON decodes a JSON response into dst.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

// BasicAuth returns an Authorization header value for user and password.
func BasicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

// BearerAuth returns an Authorization header value for token.
func BearerAuth(token string) string {
	return "Bearer " + token
}

// LoginAs returns middleware that authenticates principal unconditionally,
// standing in for a real authenticator in front of guards and handlers.
func LoginAs[U any](principal U) warden.Middleware {
	return func(next warden.Handler) warden.Handler {
		return func(ctx *warden.Context) error {
			warden.Login(ctx, principal)
			return next(ctx)
		}
	}
}

// RunMiddleware executes middleware with a handler and request on a fresh
// app, then releases the request context as the app would. The returned
// error is the one the chain produced, before any error handler runs. A nil
// handler succeeds and a nil request is GET /.
func RunMiddleware(t *testing.T, middleware []warden.Middleware, handler warden.Handler, req *http.Request) (*httptest.ResponseRecorder, error) {
	t.Helper()
	return RunMiddlewareWith(t, warden.New(), middleware, handler, req)
}

// RunMiddlewareWith is RunMiddleware against app, so the chain sees its
// config, decoders and auth hooks.
func RunMiddlewareWith(t *testing.T, app *warden.App, middleware []warden.Middleware, handler warden.Handler, req *http.Request) (*httptest.ResponseRecorder, error) {
	t.Helper()
	if req == nil {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
	}
	if handler == nil {
		handler = func(*warden.Context) error { return nil }
	}

	rec := httptest.NewRecorder()
	h := handler
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	ctx := warden.NewContext(rec, req, app)
	defer ctx.Release()
	return rec, h(ctx)
}
