package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"maps"
	"net/http"
	"time"
)

var (
	// ErrInvalidCookie indicates an invalid or tampered session cookie.
	ErrInvalidCookie = errors.New("invalid session cookie")
	// ErrMissingSession is returned by stores asked to save a nil session.
	ErrMissingSession = errors.New("session missing")
)

// Store loads and persists sessions for requests.
type Store interface {
	Get(r *http.Request) (*Session, error)
	Save(w http.ResponseWriter, session *Session) error
	Clear(w http.ResponseWriter, session *Session)
}

// Session is a string key/value bag tied to a client cookie.
type Session struct {
	ID     string
	Values map[string]string

	isNew       bool
	modified    bool
	invalidated bool
}

// New returns a session with the given id and values. An empty id marks the
// session as new.
func New(id string, values map[string]string) *Session {
	if values == nil {
		values = map[string]string{}
	}
	return &Session{ID: id, Values: values, isNew: id == ""}
}

func newEmpty(id string) *Session {
	return &Session{ID: id, Values: map[string]string{}, isNew: true}
}

// Get returns a value, or "" when missing.
func (s *Session) Get(key string) string {
	return s.Values[key]
}

// Lookup returns a value and whether it was present.
func (s *Session) Lookup(key string) (string, bool) {
	value, ok := s.Values[key]
	return value, ok
}

// Set sets a key value.
func (s *Session) Set(key, value string) {
	s.Values[key] = value
	s.modified = true
}

// Delete removes a key.
func (s *Session) Delete(key string) {
	if _, ok := s.Values[key]; !ok {
		return
	}
	delete(s.Values, key)
	s.modified = true
}

// Authenticated returns the principal id stored under key.
func (s *Session) Authenticated(key string) (string, bool) {
	return s.Lookup(key)
}

// Authenticate records id as the authenticated principal for key. The
// session is marked modified even when the id is unchanged so the store
// refreshes its expiry.
func (s *Session) Authenticate(key, id string) {
	s.Values[key] = id
	s.modified = true
}

// Unauthenticate forgets the principal stored under key.
func (s *Session) Unauthenticate(key string) {
	s.Delete(key)
}

// Invalidate drops all values; the session middleware clears it from the
// store once the request finishes.
func (s *Session) Invalidate() {
	s.Values = map[string]string{}
	s.invalidated = true
	s.modified = false
}

// IsNew reports whether the session was created for this request.
func (s *Session) IsNew() bool {
	return s.isNew
}

// Modified reports whether values changed since load.
func (s *Session) Modified() bool {
	return s.modified
}

// Invalidated reports whether Invalidate was called.
func (s *Session) Invalidated() bool {
	return s.invalidated
}

func (s *Session) markSaved() {
	s.isNew = false
	s.modified = false
}

func (s *Session) reset() {
	s.Values = map[string]string{}
	s.ID = ""
	s.isNew = true
	s.modified = false
}

// CookieOptions describes the client cookie carrying session state.
type CookieOptions struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// DefaultCookieOptions returns HttpOnly, SameSite=Lax options for name.
func DefaultCookieOptions(name string) CookieOptions {
	return CookieOptions{
		Name:     name,
		Path:     "/",
		HTTPOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (o CookieOptions) write(w http.ResponseWriter, value string, ttl time.Duration, now time.Time) {
	cookie := o.cookie(value)
	if ttl > 0 {
		cookie.MaxAge = int(ttl.Seconds())
		cookie.Expires = now.Add(ttl)
	}
	http.SetCookie(w, cookie)
}

func (o CookieOptions) expire(w http.ResponseWriter) {
	cookie := o.cookie("")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)
}

func (o CookieOptions) cookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     o.Path,
		Domain:   o.Domain,
		Secure:   o.Secure,
		HttpOnly: o.HTTPOnly,
		SameSite: o.SameSite,
	}
}

func (o CookieOptions) read(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(o.Name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func newSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func copyValues(values map[string]string) map[string]string {
	out := make(map[string]string, len(values))
	maps.Copy(out, values)
	return out
}
