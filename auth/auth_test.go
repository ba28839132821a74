package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/devmarvs/warden"
	"github.com/devmarvs/warden/apperr"
	"github.com/devmarvs/warden/config"
	"github.com/devmarvs/warden/metrics"
	"github.com/devmarvs/warden/testutil"
)

type User struct {
	ID   string
	Name string
}

func (u *User) SessionID() string { return u.ID }

type loginForm struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

var acceptUserPass = BasicFunc(func(basic warden.BasicAuthorization, ctx *warden.Context) error {
	if basic.Username == "user" && basic.Password == "pass" {
		warden.Login(ctx, &User{ID: "1", Name: basic.Username})
	}
	return nil
})

func TestBasicAuthenticatesValidCredentials(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", testutil.BasicAuth("user", "pass"))

	var principal *User
	_, err := testutil.RunMiddleware(t, []warden.Middleware{Basic(acceptUserPass)}, func(ctx *warden.Context) error {
		principal, _ = warden.PrincipalOf[*User](ctx)
		return nil
	}, req)

	require.NoError(t, err)
	require.NotNil(t, principal)
	assert.Equal(t, "user", principal.Name)
}

func TestBasicWithoutCredentialsContinues(t *testing.T) {
	cases := map[string]string{
		"missing":   "",
		"bearer":    testutil.BearerAuth("abc"),
		"malformed": "Basic !!!",
		"no colon":  "Basic " + base64.StdEncoding.EncodeToString([]byte("user")),
		"wrong":     testutil.BasicAuth("user", "nope"),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			called := false
			_, err := testutil.RunMiddleware(t, []warden.Middleware{Basic(acceptUserPass)}, func(ctx *warden.Context) error {
				called = true
				assert.False(t, warden.HasPrincipal[*User](ctx))
				return nil
			}, req)
			require.NoError(t, err)
			assert.True(t, called)
		})
	}
}

func TestBearerPassesToken(t *testing.T) {
	var token string
	bearer := BearerFunc(func(b warden.BearerAuthorization, ctx *warden.Context) error {
		token = b.Token
		warden.Login(ctx, &User{ID: "svc"})
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer  abc.def ")
	_, err := testutil.RunMiddleware(t, []warden.Middleware{Bearer(bearer)}, func(ctx *warden.Context) error {
		assert.True(t, warden.HasPrincipal[*User](ctx))
		return nil
	}, req)

	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)
}

func TestCallbackErrorsPropagate(t *testing.T) {
	failure := errors.New("directory offline")
	bearer := BearerFunc(func(warden.BearerAuthorization, *warden.Context) error {
		return failure
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", testutil.BearerAuth("abc"))
	_, err := testutil.RunMiddleware(t, []warden.Middleware{Bearer(bearer)}, func(*warden.Context) error {
		t.Fatal("downstream must not run")
		return nil
	}, req)
	assert.ErrorIs(t, err, failure)
}

func TestCredentialsDecodeFailureIsSwallowed(t *testing.T) {
	called := false
	credentials := CredentialsFunc[loginForm](func(loginForm, *warden.Context) error {
		called = true
		return errors.New("should not run")
	})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	reached := false
	_, err := testutil.RunMiddleware(t, []warden.Middleware{Credentials[loginForm](credentials)}, func(ctx *warden.Context) error {
		reached = true
		assert.False(t, warden.HasPrincipal[*User](ctx))
		return nil
	}, req)

	require.NoError(t, err)
	assert.True(t, reached)
	assert.False(t, called)
}

func TestCredentialsAuthenticatesAndKeepsBody(t *testing.T) {
	hash, err := HashPassword("pass")
	require.NoError(t, err)

	credentials := CredentialsFunc[loginForm](func(form loginForm, ctx *warden.Context) error {
		if form.Username == "user" && CheckPassword(hash, form.Password) == nil {
			warden.Login(ctx, &User{ID: "1", Name: form.Username})
		}
		return nil
	})

	for contentType, body := range map[string]string{
		"application/json":                  `{"username":"user","password":"pass"}`,
		"application/x-www-form-urlencoded": "username=user&password=pass",
	} {
		t.Run(contentType, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			req.Header.Set("Content-Type", contentType)
			_, err := testutil.RunMiddleware(t, []warden.Middleware{Credentials[loginForm](credentials)}, func(ctx *warden.Context) error {
				assert.True(t, warden.HasPrincipal[*User](ctx))
				var again loginForm
				require.NoError(t, ctx.Decode(&again))
				assert.Equal(t, "user", again.Username)
				return nil
			}, req)
			require.NoError(t, err)
		})
	}
}

func TestCredentialsOversizedBodyStillTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.MaxBodyBytes = 8
	app := warden.New(warden.WithConfig(cfg), warden.WithErrorHandler(func(ctx *warden.Context, err error) {
		_ = ctx.Text(apperr.StatusOf(err), err.Error())
	}))
	called := false
	app.POST("/login", func(ctx *warden.Context) error {
		var form loginForm
		return ctx.Decode(&form)
	}, Credentials[loginForm](CredentialsFunc[loginForm](func(loginForm, *warden.Context) error {
		called = true
		return nil
	})))

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"user","password":"pass"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := testutil.Do(t, app, req)

	testutil.MustStatus(t, rec, http.StatusRequestEntityTooLarge)
	assert.False(t, called)
}

type requestTag struct{}

func TestCallbackRequestChangesReachHandler(t *testing.T) {
	tag := func(ctx *warden.Context) {
		ctx.Request = ctx.Request.WithContext(context.WithValue(ctx.Context(), requestTag{}, "tagged"))
		ctx.Request.Header.Set("X-Authenticated-By", "callback")
	}
	cases := map[string]struct {
		middleware warden.Middleware
		header     string
	}{
		"basic": {
			middleware: Basic(BasicFunc(func(_ warden.BasicAuthorization, ctx *warden.Context) error {
				tag(ctx)
				return nil
			})),
			header: testutil.BasicAuth("user", "pass"),
		},
		"bearer": {
			middleware: Bearer(BearerFunc(func(_ warden.BearerAuthorization, ctx *warden.Context) error {
				tag(ctx)
				return nil
			})),
			header: testutil.BearerAuth("abc"),
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tc.header)
			_, err := testutil.RunMiddleware(t, []warden.Middleware{tc.middleware}, func(ctx *warden.Context) error {
				assert.Equal(t, "tagged", ctx.Context().Value(requestTag{}))
				assert.Equal(t, "callback", ctx.Request.Header.Get("X-Authenticated-By"))
				assert.False(t, trace.SpanFromContext(ctx.Context()).SpanContext().IsValid())
				return nil
			}, req)
			require.NoError(t, err)
		})
	}
}

func TestReloginCountsAsAuthenticated(t *testing.T) {
	var outcomes []bool
	app := warden.New(warden.WithAuthHooks(warden.AuthHooks{
		AfterAuthenticate: func(_ *warden.Context, _ string, authenticated bool, _ error) {
			outcomes = append(outcomes, authenticated)
		},
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", testutil.BasicAuth("user", "pass"))
	_, err := testutil.RunMiddlewareWith(t, app, []warden.Middleware{Basic(acceptUserPass), Basic(acceptUserPass)}, nil, req)

	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, outcomes)
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "s3cret"))
	assert.ErrorIs(t, CheckPassword(hash, "other"), ErrPasswordMismatch)
	assert.Error(t, CheckPassword("not-a-hash", "s3cret"))
}

func TestMiddlewareRecordsSpanMetricsAndHooks(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	type call struct {
		scheme        string
		authenticated bool
	}
	var before []string
	var after []call
	app := warden.New(warden.WithAuthHooks(warden.AuthHooks{
		BeforeAuthenticate: func(_ *warden.Context, scheme string) { before = append(before, scheme) },
		AfterAuthenticate: func(_ *warden.Context, scheme string, authenticated bool, _ error) {
			after = append(after, call{scheme, authenticated})
		},
	}))

	authenticated := metrics.AuthAttempts.WithLabelValues("basic", metrics.OutcomeAuthenticated)
	unauthenticated := metrics.AuthAttempts.WithLabelValues("basic", metrics.OutcomeUnauthenticated)
	skipped := metrics.AuthAttempts.WithLabelValues("basic", metrics.OutcomeSkipped)
	authBefore, unauthBefore, skippedBefore := prom.ToFloat64(authenticated), prom.ToFloat64(unauthenticated), prom.ToFloat64(skipped)

	for _, header := range []string{testutil.BasicAuth("user", "pass"), testutil.BasicAuth("user", "bad"), ""} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		_, err := testutil.RunMiddlewareWith(t, app, []warden.Middleware{Basic(acceptUserPass)}, nil, req)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"basic", "basic", "basic"}, before)
	assert.Equal(t, []call{{"basic", true}, {"basic", false}, {"basic", false}}, after)
	assert.Equal(t, 1.0, prom.ToFloat64(authenticated)-authBefore)
	assert.Equal(t, 1.0, prom.ToFloat64(unauthenticated)-unauthBefore)
	assert.Equal(t, 1.0, prom.ToFloat64(skipped)-skippedBefore)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "auth.basic", spans[0].Name())
	outcomes := make([]string, 0, len(spans))
	for _, span := range spans {
		for _, attr := range span.Attributes() {
			if attr.Key == "auth.outcome" {
				outcomes = append(outcomes, attr.Value.AsString())
			}
		}
	}
	assert.Equal(t, []string{metrics.OutcomeAuthenticated, metrics.OutcomeUnauthenticated, metrics.OutcomeSkipped}, outcomes)
}

func TestCustomAuthenticator(t *testing.T) {
	apiKey := AuthenticatorFunc(func(ctx *warden.Context) error {
		key := ctx.Request.Header.Get("X-API-Key")
		if key == "" {
			return ErrNoCredentials
		}
		if key != "k1" {
			return apperr.Unauthorized("unknown api key", nil)
		}
		warden.Login(ctx, &warden.Principal{ID: "integration"})
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := testutil.RunMiddleware(t, []warden.Middleware{Middleware(apiKey)}, nil, req)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "nope")
	_, err = testutil.RunMiddleware(t, []warden.Middleware{Middleware(apiKey)}, nil, req)
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))
}

func TestGuardAndRedirect(t *testing.T) {
	app := warden.New(warden.WithErrorHandler(func(ctx *warden.Context, err error) {
		_ = ctx.Text(apperr.StatusOf(err), err.Error())
	}))
	app.GET("/api", func(ctx *warden.Context) error {
		return ctx.Text(http.StatusOK, "ok")
	}, Basic(acceptUserPass), Guard[*User](GuardMessage("login required")))
	app.GET("/page", func(ctx *warden.Context) error {
		return ctx.Text(http.StatusOK, "ok")
	}, Basic(acceptUserPass), Redirect[*User]("/login"))

	rec := testutil.Do(t, app, httptest.NewRequest(http.MethodGet, "/api", nil))
	testutil.MustStatus(t, rec, http.StatusUnauthorized)
	assert.Contains(t, rec.Body.String(), "login required")

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Authorization", testutil.BasicAuth("user", "pass"))
	testutil.MustStatus(t, testutil.Do(t, app, req), http.StatusOK)

	rec = testutil.Do(t, app, httptest.NewRequest(http.MethodGet, "/page", nil))
	testutil.MustStatus(t, rec, http.StatusSeeOther)
	testutil.MustHeader(t, rec, "Location", "/login")
}

func TestRequireAuthorizer(t *testing.T) {
	login := func(roles ...string) warden.Middleware {
		return testutil.LoginAs(&warden.Principal{ID: "p", Roles: roles})
	}

	_, err := testutil.RunMiddleware(t, []warden.Middleware{Require(RequireRoles("admin"))}, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, apperr.StatusOf(err))

	_, err = testutil.RunMiddleware(t, []warden.Middleware{login("viewer"), Require(RequireRoles("admin"))}, nil, nil)
	assert.Equal(t, http.StatusForbidden, apperr.StatusOf(err))

	_, err = testutil.RunMiddleware(t, []warden.Middleware{login("admin"), Require(RequireRoles("admin"))}, nil, nil)
	assert.NoError(t, err)
}
