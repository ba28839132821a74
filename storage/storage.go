// Package storage provides a container of arbitrarily typed values keyed by
// typed keys, with optional shutdown hooks run when a value is removed or the
// container is torn down.
//
// A Storage is not safe for concurrent use. Request-scoped containers are
// owned by the goroutine serving the request; shared containers must be
// guarded by the owner.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/devmarvs/warden/metrics"
)

type keyID struct {
	name string
}

type typeID struct {
	t reflect.Type
}

// Key identifies a value of type V. Keys built by NewKey are distinct from
// every other key, even when they share V. The zero Key is not usable.
type Key[V any] struct {
	id   any
	name string
}

// NewKey returns a new key for values of type V.
func NewKey[V any](name string) Key[V] {
	return Key[V]{id: &keyID{name: name}, name: name}
}

// TypeKey returns the key identified by the type V itself. All calls with the
// same V return equal keys.
func TypeKey[V any]() Key[V] {
	t := reflect.TypeFor[V]()
	return Key[V]{id: typeID{t: t}, name: t.String()}
}

// String returns the key name.
func (k Key[V]) String() string {
	return k.name
}

func (k Key[V]) mustID() any {
	if k.id == nil {
		panic("storage: zero Key used")
	}
	return k.id
}

type entry struct {
	value         any
	typeName      string
	onShutdown    func() error
	onShutdownCtx func(context.Context) error
}

// Storage holds values keyed by Key.
type Storage struct {
	entries map[any]*entry
	logger  *slog.Logger
}

// New creates an empty Storage. Shutdown failures are reported to logger;
// a nil logger falls back to slog.Default tagged as warden.storage.
func New(logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default().With(slog.String("logger", "warden.storage"))
	}
	return &Storage{entries: make(map[any]*entry), logger: logger}
}

type hooks[V any] struct {
	onShutdown    func(V) error
	onShutdownCtx func(context.Context, V) error
}

// Option attaches a shutdown hook to a stored value.
type Option[V any] func(*hooks[V])

// OnShutdown registers a hook run when the value is removed or the storage
// shuts down.
func OnShutdown[V any](fn func(V) error) Option[V] {
	return func(h *hooks[V]) {
		h.onShutdown = fn
	}
}

// OnShutdownContext registers a hook run by RemoveContext and
// ShutdownContext. It takes precedence over OnShutdown on those paths.
func OnShutdownContext[V any](fn func(context.Context, V) error) Option[V] {
	return func(h *hooks[V]) {
		h.onShutdownCtx = fn
	}
}

func newEntry[V any](key Key[V], value V, h hooks[V]) *entry {
	e := &entry{value: value, typeName: reflect.TypeFor[V]().String()}
	if key.name != "" && key.name != e.typeName {
		e.typeName = key.name + " (" + e.typeName + ")"
	}
	if fn := h.onShutdown; fn != nil {
		e.onShutdown = func() error { return fn(value) }
	}
	if fn := h.onShutdownCtx; fn != nil {
		e.onShutdownCtx = func(ctx context.Context) error { return fn(ctx, value) }
	}
	return e
}

// Get returns the value stored under key.
func Get[V any](s *Storage, key Key[V]) (V, bool) {
	var zero V
	e, ok := s.entries[key.mustID()]
	if !ok {
		return zero, false
	}
	value, ok := e.value.(V)
	if !ok {
		return zero, false
	}
	return value, true
}

// Set stores value under key, replacing any previous entry. The replaced
// entry's shutdown hooks are dropped without running.
func Set[V any](s *Storage, key Key[V], value V, options ...Option[V]) {
	var h hooks[V]
	for _, opt := range options {
		opt(&h)
	}
	s.entries[key.mustID()] = newEntry(key, value, h)
}

// SetFirstTime stores value with both hook kinds at once. It panics if key is
// already present.
func SetFirstTime[V any](s *Storage, key Key[V], value V, onShutdown func(V) error, onShutdownCtx func(context.Context, V) error) {
	id := key.mustID()
	if _, exists := s.entries[id]; exists {
		panic(fmt.Sprintf("storage: SetFirstTime called for occupied key %s", key.name))
	}
	s.entries[id] = newEntry(key, value, hooks[V]{onShutdown: onShutdown, onShutdownCtx: onShutdownCtx})
}

// Remove deletes the entry for key and runs its OnShutdown hook.
func Remove[V any](s *Storage, key Key[V]) {
	id := key.mustID()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entries, id)
	s.shutdownEntry(e)
}

// RemoveContext deletes the entry for key and waits for its context hook,
// falling back to the OnShutdown hook.
func RemoveContext[V any](ctx context.Context, s *Storage, key Key[V]) {
	id := key.mustID()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	delete(s.entries, id)
	s.shutdownEntryContext(ctx, e)
}

// Contains reports whether key has a value.
func Contains[V any](s *Storage, key Key[V]) bool {
	_, ok := s.entries[key.mustID()]
	return ok
}

// GetOrSet returns the value under key, storing the result of fn first when
// the key is empty. fn runs at most once per missing key.
func GetOrSet[V any](s *Storage, key Key[V], fn func() V) V {
	if value, ok := Get(s, key); ok {
		return value
	}
	value := fn()
	Set(s, key, value)
	return value
}

// Len returns the number of stored entries.
func (s *Storage) Len() int {
	return len(s.entries)
}

// Clear drops every entry without running shutdown hooks.
func (s *Storage) Clear() {
	s.entries = make(map[any]*entry)
}

// Shutdown runs the OnShutdown hook of every remaining entry and empties the
// storage. Hook failures are logged; remaining hooks still run.
func (s *Storage) Shutdown() {
	for _, e := range s.drain() {
		s.shutdownEntry(e)
	}
}

// ShutdownContext is Shutdown for context hooks, falling back to OnShutdown
// for entries that registered no context hook.
func (s *Storage) ShutdownContext(ctx context.Context) {
	for _, e := range s.drain() {
		s.shutdownEntryContext(ctx, e)
	}
}

func (s *Storage) drain() []*entry {
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.entries = make(map[any]*entry)
	return entries
}

func (s *Storage) shutdownEntry(e *entry) {
	if e.onShutdown == nil {
		if e.onShutdownCtx != nil {
			s.logger.Debug("storage shutdown skipped context hook", slog.String("value_type", e.typeName))
		}
		return
	}
	s.run(e, e.onShutdown)
}

func (s *Storage) shutdownEntryContext(ctx context.Context, e *entry) {
	switch {
	case e.onShutdownCtx != nil:
		s.run(e, func() error { return e.onShutdownCtx(ctx) })
	case e.onShutdown != nil:
		s.run(e, e.onShutdown)
	}
}

func (s *Storage) run(e *entry, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.reportFailure(e, fmt.Errorf("panic: %v", rec))
		}
	}()
	if err := fn(); err != nil {
		s.reportFailure(e, err)
	}
}

func (s *Storage) reportFailure(e *entry, err error) {
	metrics.StorageShutdownFailures.WithLabelValues(e.typeName).Inc()
	s.logger.Warn("storage shutdown failed",
		slog.String("value_type", e.typeName),
		slog.String("error", err.Error()),
	)
}
