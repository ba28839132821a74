// Package health reports the state of the backends an app depends on, such
// as the session store's database pool.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/devmarvs/warden"
)

// CheckFunc probes a single dependency.
type CheckFunc func(context.Context) error

// Pinger is satisfied by connection pools such as *pgxpool.Pool.
type Pinger interface {
	Ping(context.Context) error
}

// Ping adapts a Pinger into a check.
func Ping(p Pinger) CheckFunc {
	return p.Ping
}

// CheckResult reports a single check.
type CheckResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Report is the body served by Handler.
type Report struct {
	Status     string        `json:"status"`
	Checks     []CheckResult `json:"checks"`
	DurationMS int64         `json:"duration_ms"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout bounds every check.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		r.timeout = timeout
	}
}

// Registry holds named checks. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

// New creates a Registry.
func New(options ...Option) *Registry {
	registry := &Registry{checks: make(map[string]CheckFunc)}
	for _, opt := range options {
		opt(registry)
	}
	return registry
}

// Add registers a check, replacing any check with the same name.
func (r *Registry) Add(name string, check CheckFunc) {
	r.mu.Lock()
	r.checks[name] = check
	r.mu.Unlock()
}

// Remove deletes a check.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.checks, name)
	r.mu.Unlock()
}

// Check runs every registered check in name order.
func (r *Registry) Check(ctx context.Context) (Report, bool) {
	checks := r.snapshot()
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	start := time.Now()
	healthy := true
	results := make([]CheckResult, 0, len(names))
	for _, name := range names {
		result := r.run(ctx, checks[name])
		result.Name = name
		if result.Status != "ok" {
			healthy = false
		}
		results = append(results, result)
	}

	report := Report{
		Status:     "ok",
		Checks:     results,
		DurationMS: time.Since(start).Milliseconds(),
		CheckedAt:  time.Now().UTC(),
	}
	if !healthy {
		report.Status = "fail"
	}
	return report, healthy
}

// Handler serves the report, answering 503 when any check fails.
func (r *Registry) Handler() warden.Handler {
	return func(ctx *warden.Context) error {
		report, healthy := r.Check(ctx.Context())
		if !healthy {
			for _, result := range report.Checks {
				if result.Status != "ok" {
					ctx.Logger().Warn("health check failed", slog.String("check", result.Name), slog.String("error", result.Error))
				}
			}
			return ctx.JSON(http.StatusServiceUnavailable, report)
		}
		return ctx.JSON(http.StatusOK, report)
	}
}

func (r *Registry) run(ctx context.Context, check CheckFunc) CheckResult {
	if check == nil {
		return CheckResult{Status: "ok"}
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	err := check(ctx)
	result := CheckResult{Status: "ok", DurationMS: time.Since(start).Milliseconds()}
	if err != nil {
		result.Status = "fail"
		result.Error = err.Error()
	}
	return result
}

func (r *Registry) snapshot() map[string]CheckFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	checks := make(map[string]CheckFunc, len(r.checks))
	for name, check := range r.checks {
		checks[name] = check
	}
	return checks
}
