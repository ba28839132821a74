package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAuthAttemptsCounts(t *testing.T) {
	before := testutil.ToFloat64(AuthAttempts.WithLabelValues("basic", OutcomeAuthenticated))
	AuthAttempts.WithLabelValues("basic", OutcomeAuthenticated).Inc()
	after := testutil.ToFloat64(AuthAttempts.WithLabelValues("basic", OutcomeAuthenticated))
	if after-before != 1 {
		t.Fatalf("expected counter to grow by 1, got %v", after-before)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	StorageShutdownFailures.WithLabelValues("metrics.test").Inc()
	AuthAttempts.WithLabelValues("bearer", OutcomeSkipped).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"warden_storage_shutdown_failures_total", "warden_auth_attempts_total"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}
