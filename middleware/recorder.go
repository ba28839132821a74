package middleware

import (
	"bufio"
	"net"
	"net/http"

	"github.com/devmarvs/warden/apperr"
)

// responseRecorder captures status and response size.
type responseRecorder struct {
	writer http.ResponseWriter
	status int
	bytes  int
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{writer: w}
}

func (r *responseRecorder) Header() http.Header {
	return r.writer.Header()
}

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.writer.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.writer.Write(p)
	r.bytes += n
	return n, err
}

func (r *responseRecorder) Flush() {
	if flusher, ok := r.writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.writer.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hijacker.Hijack()
}

func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.writer
}

// statusOf returns the status the error handler will write for err, or the
// recorded status when the handler succeeded.
func statusOf(recorder *responseRecorder, err error) int {
	switch {
	case err == nil && recorder.status == 0:
		return http.StatusOK
	case err == nil:
		return recorder.status
	}
	if appErr := apperr.As(err); appErr != nil {
		return appErr.Status
	}
	if recorder.status != 0 {
		return recorder.status
	}
	return http.StatusInternalServerError
}
