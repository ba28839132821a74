package warden

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/devmarvs/warden/apperr"
	"github.com/devmarvs/warden/config"
	"github.com/devmarvs/warden/content"
	"github.com/devmarvs/warden/logging"
	"github.com/devmarvs/warden/storage"
)

// Handler handles a request and returns an error for centralized handling.
type Handler func(*Context) error

// Middleware wraps a handler with additional behavior.
type Middleware func(Handler) Handler

// ErrorHandler processes errors returned by handlers.
type ErrorHandler func(*Context, error)

// App is the main framework entrypoint.
type App struct {
	mux          *http.ServeMux
	middleware   []Middleware
	logger       *slog.Logger
	config       config.Config
	decoders     *content.Registry
	errorHandler ErrorHandler
	authHooks    AuthHooks

	storageMu    sync.Mutex
	storage      *storage.Storage
	shutdownOnce sync.Once
}

// Option customizes the app instance.
type Option func(*App)

// New creates a new App with defaults.
func New(options ...Option) *App {
	app := &App{
		mux:          http.NewServeMux(),
		config:       config.Default(),
		decoders:     content.NewRegistry(),
		errorHandler: defaultErrorHandler,
	}

	for _, opt := range options {
		opt(app)
	}

	if app.logger == nil {
		app.logger = logging.NewLogger(logging.Options{Level: app.config.LogLevel, Format: app.config.LogFormat})
	}
	app.storage = storage.New(app.logger.With(slog.String("logger", "warden.storage")))

	return app
}

// WithConfig overrides the default config.
func WithConfig(cfg config.Config) Option {
	return func(app *App) {
		app.config = cfg
	}
}

// WithLogger uses a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(app *App) {
		app.logger = logger
	}
}

// WithErrorHandler overrides the default error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(app *App) {
		app.errorHandler = handler
	}
}

// WithDecoder registers a body decoder for a media type.
func WithDecoder(mediaType string, decoder content.Decoder) Option {
	return func(app *App) {
		app.decoders.Register(mediaType, decoder)
	}
}

// WithAuthHooks installs hooks run around every authenticator.
func WithAuthHooks(hooks AuthHooks) Option {
	return func(app *App) {
		app.authHooks = hooks
	}
}

// Logger returns the app logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Config returns the app configuration.
func (a *App) Config() config.Config {
	return a.config
}

// AuthHooks returns the configured authentication hooks.
func (a *App) AuthHooks() AuthHooks {
	return a.authHooks
}

// Storage runs fn with exclusive access to the application storage.
func (a *App) Storage(fn func(*storage.Storage)) {
	a.storageMu.Lock()
	defer a.storageMu.Unlock()
	fn(a.storage)
}

// Use registers global middleware.
func (a *App) Use(middleware ...Middleware) {
	a.middleware = append(a.middleware, middleware...)
}

// GET registers a GET route.
func (a *App) GET(path string, handler Handler, middleware ...Middleware) {
	a.Handle(http.MethodGet, path, handler, middleware...)
}

// POST registers a POST route.
func (a *App) POST(path string, handler Handler, middleware ...Middleware) {
	a.Handle(http.MethodPost, path, handler, middleware...)
}

// PUT registers a PUT route.
func (a *App) PUT(path string, handler Handler, middleware ...Middleware) {
	a.Handle(http.MethodPut, path, handler, middleware...)
}

// PATCH registers a PATCH route.
func (a *App) PATCH(path string, handler Handler, middleware ...Middleware) {
	a.Handle(http.MethodPatch, path, handler, middleware...)
}

// DELETE registers a DELETE route.
func (a *App) DELETE(path string, handler Handler, middleware ...Middleware) {
	a.Handle(http.MethodDelete, path, handler, middleware...)
}

// Handle registers a route for an arbitrary method. Paths use http.ServeMux
// pattern syntax, so {name} segments are available through Context.Param.
func (a *App) Handle(method, path string, handler Handler, middleware ...Middleware) {
	pattern := strings.ToUpper(method) + " " + path
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("route registration failed", slog.String("method", method), slog.String("path", path), slog.Any("error", rec))
		}
	}()

	h := chain(handler, middleware)
	a.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.serve(w, r, h)
	}))
}

// Mount registers a plain http.Handler, bypassing the middleware chain.
func (a *App) Mount(pattern string, handler http.Handler) {
	a.mux.Handle(pattern, handler)
}

// ServeHTTP implements http.Handler.
// Unmatched requests run through the global middleware and end in a 404, or
// a 405 with an Allow header when the path exists for other methods.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fallback, pattern := a.mux.Handler(r)
	if pattern != "" {
		a.mux.ServeHTTP(w, r)
		return
	}

	// ServeMux reports both cases with an empty pattern; its fallback
	// handler tells them apart.
	var recorded fallbackWriter
	fallback.ServeHTTP(&recorded, r)
	if recorded.status == http.StatusMethodNotAllowed {
		allow := recorded.Header().Get("Allow")
		a.serve(w, r, func(ctx *Context) error {
			ctx.ResponseWriter.Header().Set("Allow", allow)
			return apperr.MethodNotAllowed("method not allowed", nil)
		})
		return
	}
	a.serve(w, r, func(*Context) error {
		return apperr.NotFound("not found", nil)
	})
}

// fallbackWriter records what the mux fallback handler would have written.
type fallbackWriter struct {
	header http.Header
	status int
}

func (w *fallbackWriter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *fallbackWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *fallbackWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return len(p), nil
}

func (a *App) serve(w http.ResponseWriter, r *http.Request, handler Handler) {
	ctx := NewContext(w, r, a)
	defer ctx.Release()

	h := chain(handler, a.middleware)
	if err := h(ctx); err != nil {
		a.errorHandler(ctx, err)
	}
}

func chain(handler Handler, middleware []Middleware) Handler {
	h := handler
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// Shutdown runs the application storage shutdown hooks. Only the first call
// has any effect.
func (a *App) Shutdown(ctx context.Context) {
	a.shutdownOnce.Do(func() {
		a.logger.Info("app storage shutting down")
		a.storageMu.Lock()
		defer a.storageMu.Unlock()
		a.storage.ShutdownContext(ctx)
	})
}

// Run starts the server and shuts down when the context is canceled.
func (a *App) Run(ctx context.Context) error {
	server := a.newServer()
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("server starting", slog.String("address", a.config.Address))
		errCh <- server.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		err = <-errCh
		a.Shutdown(shutdownCtx)
	case err = <-errCh:
		a.Shutdown(context.Background())
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunWithSignals starts the server and handles SIGINT/SIGTERM for shutdown.
func (a *App) RunWithSignals() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}

// ShutdownTimeout returns the configured graceful shutdown timeout.
func (a *App) ShutdownTimeout() time.Duration {
	return a.config.ShutdownTimeout
}

func (a *App) newServer() *http.Server {
	return &http.Server{
		Addr:              a.config.Address,
		Handler:           a,
		ReadTimeout:       a.config.ReadTimeout,
		WriteTimeout:      a.config.WriteTimeout,
		IdleTimeout:       a.config.IdleTimeout,
		ReadHeaderTimeout: a.config.ReadHeaderTimeout,
	}
}

func defaultErrorHandler(ctx *Context, err error) {
	appErr := apperr.As(err)
	status := http.StatusInternalServerError
	code := apperr.CodeInternal
	message := "internal server error"

	if appErr != nil {
		status = appErr.Status
		code = appErr.Code
		message = appErr.Message
	}

	ctx.Logger().Error("request failed",
		slog.String("code", code),
		slog.String("error", err.Error()),
	)

	if wantsJSON(ctx.Request) {
		_ = ctx.JSON(status, map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		})
		return
	}

	_ = ctx.Text(status, message)
}

func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(strings.ToLower(accept), "application/json")
}
