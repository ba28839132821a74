package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// CookieStore keeps all session values in a signed cookie. The first key
// signs; every key is accepted on read so keys can be rotated.
type CookieStore struct {
	CookieOptions
	Keys   [][]byte
	MaxAge time.Duration
}

// NewCookieStore creates a cookie store with key rotation support.
func NewCookieStore(name string, key []byte, oldKeys ...[]byte) *CookieStore {
	keys := make([][]byte, 0, 1+len(oldKeys))
	keys = append(keys, key)
	keys = append(keys, oldKeys...)
	return &CookieStore{CookieOptions: DefaultCookieOptions(name), Keys: keys}
}

// Get loads a session from the request. A tampered cookie yields an empty
// session together with ErrInvalidCookie.
func (s *CookieStore) Get(r *http.Request) (*Session, error) {
	value, ok := s.read(r)
	if !ok {
		return newEmpty(""), nil
	}

	decoded, err := decode(value, s.Keys)
	if err != nil {
		return newEmpty(""), ErrInvalidCookie
	}
	return &Session{Values: decoded}, nil
}

// Save writes the signed session cookie.
func (s *CookieStore) Save(w http.ResponseWriter, session *Session) error {
	if session == nil {
		return ErrMissingSession
	}
	value, err := encode(session.Values, s.Keys)
	if err != nil {
		return err
	}
	s.write(w, value, s.MaxAge, time.Now())
	session.markSaved()
	return nil
}

// Clear expires the session cookie.
func (s *CookieStore) Clear(w http.ResponseWriter, session *Session) {
	s.expire(w)
	if session != nil {
		session.reset()
	}
}

func encode(values map[string]string, keys [][]byte) (string, error) {
	if len(keys) == 0 || len(keys[0]) == 0 {
		return "", errors.New("session key required")
	}

	payload, err := json.Marshal(values)
	if err != nil {
		return "", err
	}

	sig := sign(payload, keys[0])
	return base64.RawURLEncoding.EncodeToString(payload) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

func decode(value string, keys [][]byte) (map[string]string, error) {
	encodedPayload, encodedSig, ok := strings.Cut(value, ".")
	if !ok {
		return nil, ErrInvalidCookie
	}

	payload, err := base64.RawURLEncoding.DecodeString(encodedPayload)
	if err != nil {
		return nil, ErrInvalidCookie
	}
	signature, err := base64.RawURLEncoding.DecodeString(encodedSig)
	if err != nil {
		return nil, ErrInvalidCookie
	}

	if !verify(payload, signature, keys) {
		return nil, ErrInvalidCookie
	}

	values := map[string]string{}
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, ErrInvalidCookie
	}
	return values, nil
}

func verify(payload, signature []byte, keys [][]byte) bool {
	for _, key := range keys {
		if len(key) == 0 {
			continue
		}
		if hmac.Equal(signature, sign(payload, key)) {
			return true
		}
	}
	return false
}

func sign(payload []byte, key []byte) []byte {
	h := hmac.New(sha256.New, key)
	_, _ = h.Write(payload)
	return h.Sum(nil)
}
