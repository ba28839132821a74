package middleware

import (
	"fmt"
	"log/slog"

	"github.com/devmarvs/warden"
	"github.com/devmarvs/warden/apperr"
)

// RequestID ensures a request id header is present on the request and the
// response. Missing or malformed client ids are replaced.
func RequestID() warden.Middleware {
	return func(next warden.Handler) warden.Handler {
		return func(ctx *warden.Context) error {
			requestID := ctx.RequestID()
			if !warden.ValidRequestID(requestID) {
				requestID = warden.NewRequestID()
				ctx.Request.Header.Set(warden.RequestIDHeader, requestID)
			}
			ctx.ResponseWriter.Header().Set(warden.RequestIDHeader, requestID)
			return next(ctx)
		}
	}
}

// Recover converts panics into internal errors.
func Recover() warden.Middleware {
	return func(next warden.Handler) warden.Handler {
		return func(ctx *warden.Context) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					ctx.Logger().Error("panic recovered", slog.Any("panic", rec))
					err = apperr.Internal("panic", fmt.Errorf("%v", rec))
				}
			}()
			return next(ctx)
		}
	}
}
