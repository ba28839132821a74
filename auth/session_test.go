package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devmarvs/warden"
	"github.com/devmarvs/warden/apperr"
	"github.com/devmarvs/warden/middleware"
	"github.com/devmarvs/warden/session"
	"github.com/devmarvs/warden/testutil"
)

type sessionHarness struct {
	app     *warden.App
	store   *session.MemoryStore
	lookups []string
	users   map[string]*User
}

func newSessionHarness(t *testing.T, failLookup error) *sessionHarness {
	t.Helper()
	h := &sessionHarness{
		store: session.NewMemoryStore("sid", 0),
		users: map[string]*User{"42": {ID: "42", Name: "ada"}},
	}
	h.app = warden.New(warden.WithErrorHandler(func(ctx *warden.Context, err error) {
		_ = ctx.Text(apperr.StatusOf(err), err.Error())
	}))

	restore := SessionFunc[*User](func(id string, ctx *warden.Context) error {
		h.lookups = append(h.lookups, id)
		if failLookup != nil {
			return failLookup
		}
		if user, ok := h.users[id]; ok {
			warden.Login(ctx, user)
		}
		return nil
	})
	h.app.Use(middleware.Session(h.store), Basic(acceptUserPass), Session[*User](restore))

	h.app.POST("/login", func(ctx *warden.Context) error {
		warden.Login(ctx, h.users["42"])
		return ctx.NoContent(http.StatusNoContent)
	})
	h.app.GET("/me", func(ctx *warden.Context) error {
		user, err := warden.RequirePrincipal[*User](ctx)
		if err != nil {
			return err
		}
		return ctx.Text(http.StatusOK, user.ID)
	})
	h.app.POST("/logout", func(ctx *warden.Context) error {
		warden.Logout[*User](ctx)
		return ctx.NoContent(http.StatusNoContent)
	})
	return h
}

func (h *sessionHarness) do(t *testing.T, method, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return testutil.Do(t, h.app, req)
}

func (h *sessionHarness) stored(t *testing.T, cookie *http.Cookie) (string, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	sess, err := h.store.Get(req)
	require.NoError(t, err)
	return sess.Authenticated(SessionKey[*User]())
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "sid" && cookie.MaxAge >= 0 {
			return cookie
		}
	}
	t.Fatalf("no session cookie in response")
	return nil
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "_UserSession", SessionKey[*User]())
	assert.Equal(t, "_PrincipalSession", SessionKey[*warden.Principal]())
}

func TestSessionRoundTrip(t *testing.T) {
	h := newSessionHarness(t, nil)

	rec := h.do(t, http.MethodPost, "/login", nil)
	testutil.MustStatus(t, rec, http.StatusNoContent)
	assert.Empty(t, h.lookups, "no session yet, nothing to restore")

	cookie := sessionCookie(t, rec)
	id, ok := h.stored(t, cookie)
	require.True(t, ok)
	assert.Equal(t, "42", id)

	rec = h.do(t, http.MethodGet, "/me", cookie)
	testutil.MustStatus(t, rec, http.StatusOK)
	assert.Equal(t, "42", rec.Body.String())
	assert.Equal(t, []string{"42"}, h.lookups)
}

func TestSessionLogoutForgetsPrincipal(t *testing.T) {
	h := newSessionHarness(t, nil)
	cookie := sessionCookie(t, h.do(t, http.MethodPost, "/login", nil))

	rec := h.do(t, http.MethodPost, "/logout", cookie)
	testutil.MustStatus(t, rec, http.StatusNoContent)

	_, ok := h.stored(t, cookie)
	assert.False(t, ok)

	rec = h.do(t, http.MethodGet, "/me", cookie)
	testutil.MustStatus(t, rec, http.StatusUnauthorized)
}

func TestSessionSkipsLookupWhenAlreadyAuthenticated(t *testing.T) {
	h := newSessionHarness(t, nil)
	cookie := sessionCookie(t, h.do(t, http.MethodPost, "/login", nil))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	req.Header.Set("Authorization", testutil.BasicAuth("user", "pass"))
	rec := testutil.Do(t, h.app, req)

	testutil.MustStatus(t, rec, http.StatusOK)
	assert.Equal(t, "1", rec.Body.String())
	assert.Empty(t, h.lookups)

	id, ok := h.stored(t, cookie)
	require.True(t, ok)
	assert.Equal(t, "1", id, "the current principal is written back")
}

func TestSessionUnknownIDContinuesUnauthenticated(t *testing.T) {
	h := newSessionHarness(t, nil)
	cookie := sessionCookie(t, h.do(t, http.MethodPost, "/login", nil))
	delete(h.users, "42")

	rec := h.do(t, http.MethodGet, "/me", cookie)
	testutil.MustStatus(t, rec, http.StatusUnauthorized)
	assert.Equal(t, []string{"42"}, h.lookups)
}

func TestSessionLookupFailurePropagates(t *testing.T) {
	failure := errors.New("user store offline")
	h := newSessionHarness(t, failure)
	cookie := sessionCookie(t, h.do(t, http.MethodPost, "/login", nil))

	rec := h.do(t, http.MethodGet, "/me", cookie)
	testutil.MustStatus(t, rec, http.StatusInternalServerError)
	assert.Contains(t, rec.Body.String(), failure.Error())
}

func TestSessionWithoutStoreIsDetached(t *testing.T) {
	restore := SessionFunc[*User](func(string, *warden.Context) error {
		t.Fatal("no session to restore from")
		return nil
	})

	_, err := testutil.RunMiddleware(t, []warden.Middleware{Session[*User](restore)}, func(ctx *warden.Context) error {
		warden.Login(ctx, &User{ID: "7"})
		return nil
	}, nil)
	require.NoError(t, err)
}
