package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/devmarvs/warden"
	"github.com/devmarvs/warden/apperr"
	"github.com/devmarvs/warden/metrics"
	"github.com/devmarvs/warden/session"
)

type sessionConfig struct {
	clearInvalid bool
}

// SessionOption customizes session middleware behavior.
type SessionOption func(*sessionConfig)

// SessionClearInvalid clears invalid session cookies when enabled.
func SessionClearInvalid(enabled bool) SessionOption {
	return func(cfg *sessionConfig) {
		cfg.clearInvalid = enabled
	}
}

// Session loads the request session from store and writes it back once the
// rest of the chain has run: invalidated sessions are cleared, modified ones
// saved. The response is buffered until then so the session cookie can still
// be set. Place it outside any session authenticator.
func Session(store session.Store, options ...SessionOption) warden.Middleware {
	cfg := sessionConfig{clearInvalid: true}
	for _, opt := range options {
		opt(&cfg)
	}

	return func(next warden.Handler) warden.Handler {
		return func(ctx *warden.Context) error {
			if store == nil {
				return apperr.Internal("session store not configured", nil)
			}

			sess, err := store.Get(ctx.Request)
			switch {
			case errors.Is(err, session.ErrInvalidCookie):
				ctx.Logger().Debug("invalid session cookie", slog.Any("error", err))
				if cfg.clearInvalid {
					store.Clear(ctx.ResponseWriter, sess)
				}
			case err != nil:
				return apperr.Internal("session load failed", err)
			}
			if sess == nil {
				sess = session.New("", nil)
			}
			ctx.SetSession(sess)

			original := ctx.ResponseWriter
			buffered := &bufferedWriter{ResponseWriter: original}
			ctx.ResponseWriter = buffered
			err = next(ctx)
			ctx.ResponseWriter = original

			switch {
			case sess.Invalidated():
				store.Clear(ctx.ResponseWriter, sess)
				metrics.SessionWrites.WithLabelValues("clear").Inc()
			case sess.Modified():
				if saveErr := store.Save(ctx.ResponseWriter, sess); saveErr != nil {
					ctx.Logger().Error("session save failed", slog.Any("error", saveErr))
					if err == nil {
						err = apperr.Internal("session save failed", saveErr)
					}
				} else {
					metrics.SessionWrites.WithLabelValues("save").Inc()
				}
			}

			if flushErr := buffered.flush(); flushErr != nil && err == nil {
				err = flushErr
			}
			return err
		}
	}
}

// bufferedWriter holds the status and body back while sharing the header map
// with the underlying writer.
type bufferedWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *bufferedWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(p)
}

func (w *bufferedWriter) flush() error {
	if w.status == 0 {
		return nil
	}
	w.ResponseWriter.WriteHeader(w.status)
	_, err := w.ResponseWriter.Write(w.body.Bytes())
	return err
}
