package warden

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/devmarvs/warden/apperr"
	"github.com/devmarvs/warden/content"
	"github.com/devmarvs/warden/session"
	"github.com/devmarvs/warden/storage"
)

// Context holds request-specific data.
type Context struct {
	ResponseWriter http.ResponseWriter
	Request        *http.Request

	app     *App
	storage *storage.Storage
	auth    *storage.Storage
	session *session.Session
	logins  int
}

// NewContext constructs a Context.
func NewContext(w http.ResponseWriter, r *http.Request, app *App) *Context {
	return &Context{
		ResponseWriter: w,
		Request:        r,
		app:            app,
	}
}

// App returns the application serving the request.
func (c *Context) App() *App {
	return c.app
}

// Context returns the request context.
func (c *Context) Context() context.Context {
	return c.Request.Context()
}

// Param returns a route param.
func (c *Context) Param(name string) string {
	return c.Request.PathValue(name)
}

// Query returns a query param.
func (c *Context) Query(name string) string {
	return c.Request.URL.Query().Get(name)
}

// Storage returns the request-scoped storage. Its shutdown hooks run when the
// request finishes.
func (c *Context) Storage() *storage.Storage {
	if c.storage == nil {
		c.storage = storage.New(c.app.logger.With(slog.String("logger", "warden.storage"), slog.String("request_id", c.RequestID())))
	}
	return c.storage
}

// Auth returns the request's authentication bag, holding at most one
// principal per principal type.
func (c *Context) Auth() *storage.Storage {
	if c.auth == nil {
		c.auth = storage.New(c.app.logger.With(slog.String("logger", "warden.auth"), slog.String("request_id", c.RequestID())))
	}
	return c.auth
}

// Logins returns how many times Login has run on this request, counting
// logins that replace a principal of the same type.
func (c *Context) Logins() int {
	return c.logins
}

// Session returns the request session. Without a session middleware in the
// chain the session is detached and never persisted.
func (c *Context) Session() *session.Session {
	if c.session == nil {
		c.session = session.New("", nil)
	}
	return c.session
}

// SetSession attaches a loaded session to the request.
func (c *Context) SetSession(sess *session.Session) {
	c.session = sess
}

// HasSession reports whether the request carries a session that already
// existed or was written during this request.
func (c *Context) HasSession() bool {
	return c.session != nil && (!c.session.IsNew() || c.session.Modified())
}

// Logger returns the app logger tagged with the request id.
func (c *Context) Logger() Logger {
	return newLogger(c.app.logger, c.RequestID())
}

// RequestID returns the request id header.
func (c *Context) RequestID() string {
	return RequestIDFromHeader(c.Request)
}

// Decode decodes the body using the decoder registered for its content type.
func (c *Context) Decode(dst any) error {
	body := c.Request.Body
	if body == nil {
		return apperr.BadRequest("request body required", nil)
	}
	if limit := c.app.config.MaxBodyBytes; limit > 0 {
		body = http.MaxBytesReader(c.ResponseWriter, body, limit)
	}
	if err := c.app.decoders.Decode(c.Request.Header.Get("Content-Type"), body, dst); err != nil {
		return decodeError(err)
	}
	return nil
}

// ReadBody reads the whole body, honoring MaxBodyBytes, and leaves a copy in
// place so the body can be read again. When the body is over the limit the
// request keeps it unread, so a later Decode reports the same error.
func (c *Context) ReadBody() ([]byte, error) {
	original := c.Request.Body
	if original == nil {
		return nil, apperr.BadRequest("request body required", nil)
	}

	var consumed bytes.Buffer
	body := io.NopCloser(io.TeeReader(original, &consumed))
	if limit := c.app.config.MaxBodyBytes; limit > 0 {
		body = http.MaxBytesReader(c.ResponseWriter, body, limit)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		c.Request.Body = replayBody{
			Reader: io.MultiReader(bytes.NewReader(consumed.Bytes()), original),
			Closer: original,
		}
		return nil, decodeError(err)
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	return raw, nil
}

// replayBody serves bytes already consumed before the rest of the original
// body.
type replayBody struct {
	io.Reader
	io.Closer
}

// BindJSON decodes a JSON body, rejecting unknown fields.
func (c *Context) BindJSON(dst any) error {
	if err := (content.JSON{Strict: true}).Decode(c.Request.Body, dst); err != nil {
		return decodeError(err)
	}
	return nil
}

func decodeError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return apperr.PayloadTooLarge("request body too large", err)
	case errors.Is(err, content.ErrUnsupportedMediaType):
		return apperr.UnsupportedMediaType("unsupported content type", err)
	default:
		return apperr.BadRequest("invalid request body", err)
	}
}

// JSON responds with JSON.
func (c *Context) JSON(status int, payload any) error {
	c.ResponseWriter.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.ResponseWriter.WriteHeader(status)
	return json.NewEncoder(c.ResponseWriter).Encode(payload)
}

// Text responds with plain text.
func (c *Context) Text(status int, message string) error {
	c.ResponseWriter.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.ResponseWriter.WriteHeader(status)
	_, err := c.ResponseWriter.Write([]byte(message))
	return err
}

// NoContent responds with an empty body.
func (c *Context) NoContent(status int) error {
	c.ResponseWriter.WriteHeader(status)
	return nil
}

// Redirect responds with a redirect to location.
func (c *Context) Redirect(status int, location string) error {
	http.Redirect(c.ResponseWriter, c.Request, location, status)
	return nil
}

// Release runs the shutdown hooks of the request storage and the auth bag.
// The app calls it once the chain has returned; later calls are no-ops.
func (c *Context) Release() {
	ctx := context.WithoutCancel(c.Request.Context())
	if c.storage != nil {
		c.storage.ShutdownContext(ctx)
	}
	if c.auth != nil {
		c.auth.ShutdownContext(ctx)
	}
}
