package warden

import (
	"net/http"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// NewRequestID generates a new request id.
func NewRequestID() string {
	return uuid.NewString()
}

// ValidRequestID reports whether a client supplied id is safe to echo and
// log: non-empty, bounded, and limited to URL-safe characters.
func ValidRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		switch c := id[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

// RequestIDFromHeader returns the request id from headers.
func RequestIDFromHeader(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.Header.Get(RequestIDHeader)
}
