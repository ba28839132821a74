// Package jwt verifies JWT bearer tokens and logs in the principal they
// describe.
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/devmarvs/warden"
	"github.com/devmarvs/warden/apperr"
	"github.com/devmarvs/warden/auth"
	"github.com/devmarvs/warden/config"
)

var (
	// ErrInvalidKey indicates a missing signing key.
	ErrInvalidKey = errors.New("invalid signing key")
	// ErrInvalidToken wraps every verification failure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSubject indicates a token without a sub claim.
	ErrMissingSubject = errors.New("token subject missing")
)

// Key is an HMAC secret with an optional key id.
type Key struct {
	ID     string
	Secret []byte
}

// KeySet signs with the primary key and verifies with every key, so secrets
// can be rotated without invalidating live tokens.
type KeySet struct {
	Primary  Key
	Fallback []Key
}

// Keys returns the usable keys, primary first.
func (s KeySet) Keys() []Key {
	keys := make([]Key, 0, 1+len(s.Fallback))
	if len(s.Primary.Secret) > 0 {
		keys = append(keys, s.Primary)
	}
	for _, key := range s.Fallback {
		if len(key.Secret) > 0 {
			keys = append(keys, key)
		}
	}
	return keys
}

// Lookup finds a key by id.
func (s KeySet) Lookup(id string) (Key, bool) {
	if id == "" {
		return Key{}, false
	}
	for _, key := range s.Keys() {
		if key.ID == id {
			return key, true
		}
	}
	return Key{}, false
}

// Sign creates an HS256 token with the primary key.
func (s KeySet) Sign(claims jwtlib.MapClaims) (string, error) {
	return SignHS256(s.Primary, claims)
}

// SignHS256 creates an HS256 token, setting the kid header when key has an id.
func SignHS256(key Key, claims jwtlib.MapClaims) (string, error) {
	if len(key.Secret) == 0 {
		return "", ErrInvalidKey
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	if key.ID != "" {
		token.Header["kid"] = key.ID
	}
	return token.SignedString(key.Secret)
}

// Config configures a Verifier. Keys verifies HS256 tokens and PublicKey
// RS256 tokens; at least one is required.
type Config struct {
	Keys      KeySet
	PublicKey *rsa.PublicKey
	Issuer    string
	Audience  string
	Leeway    time.Duration
	RoleClaim string
	Now       func() time.Time
}

// Verifier validates tokens and maps their claims to a warden.Principal.
type Verifier struct {
	config Config
}

// New builds a Verifier.
func New(cfg Config) (*Verifier, error) {
	if len(cfg.Keys.Keys()) == 0 && cfg.PublicKey == nil {
		return nil, ErrInvalidKey
	}
	if cfg.RoleClaim == "" {
		cfg.RoleClaim = "roles"
	}
	return &Verifier{config: cfg}, nil
}

// FromConfig builds an HS256 Verifier from application config.
func FromConfig(cfg config.JWTConfig) (*Verifier, error) {
	return New(Config{
		Keys:     KeySet{Primary: Key{Secret: []byte(cfg.Key)}},
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   cfg.Leeway,
	})
}

// Verify parses token and returns its claims.
func (v *Verifier) Verify(token string) (jwtlib.MapClaims, error) {
	kid, err := v.keyID(token)
	if err != nil {
		return nil, err
	}

	if key, ok := v.config.Keys.Lookup(kid); ok {
		return v.parse(token, key.Secret)
	}

	var lastErr error
	for _, key := range v.config.Keys.Keys() {
		claims, err := v.parse(token, key.Secret)
		if err == nil {
			return claims, nil
		}
		lastErr = err
		// Only a signature mismatch is worth retrying with the next key.
		if !errors.Is(err, jwtlib.ErrTokenSignatureInvalid) {
			return nil, err
		}
	}
	if v.config.PublicKey != nil {
		return v.parse(token, v.config.PublicKey)
	}
	return nil, lastErr
}

// Principal maps verified claims to a principal.
func (v *Verifier) Principal(claims jwtlib.MapClaims) (*warden.Principal, error) {
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrMissingSubject
	}
	return &warden.Principal{
		ID:     subject,
		Roles:  stringList(claims[v.config.RoleClaim]),
		Claims: claims,
	}, nil
}

// AuthenticateBearer implements auth.BearerAuthenticator, logging in a
// *warden.Principal. An invalid token fails the request with 401.
func (v *Verifier) AuthenticateBearer(bearer warden.BearerAuthorization, ctx *warden.Context) error {
	claims, err := v.Verify(bearer.Token)
	if err != nil {
		return apperr.Unauthorized("invalid token", err)
	}
	principal, err := v.Principal(claims)
	if err != nil {
		return apperr.Unauthorized("invalid token", err)
	}
	warden.Login(ctx, principal)
	return nil
}

// Middleware returns bearer middleware backed by v.
func (v *Verifier) Middleware() warden.Middleware {
	return auth.Bearer(v)
}

func (v *Verifier) keyID(token string) (string, error) {
	parsed, _, err := jwtlib.NewParser().ParseUnverified(token, jwtlib.MapClaims{})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	kid, _ := parsed.Header["kid"].(string)
	return kid, nil
}

func (v *Verifier) parse(token string, key any) (jwtlib.MapClaims, error) {
	claims := jwtlib.MapClaims{}
	_, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (any, error) {
		return key, nil
	}, v.options(key)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

func (v *Verifier) options(key any) []jwtlib.ParserOption {
	methods := []string{"HS256"}
	if _, ok := key.(*rsa.PublicKey); ok {
		methods = []string{"RS256", "RS384", "RS512"}
	}
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods(methods)}
	if v.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(v.config.Audience))
	}
	if v.config.Leeway > 0 {
		opts = append(opts, jwtlib.WithLeeway(v.config.Leeway))
	}
	if v.config.Now != nil {
		opts = append(opts, jwtlib.WithTimeFunc(v.config.Now))
	}
	return opts
}

func stringList(value any) []string {
	switch typed := value.(type) {
	case []string:
		return append([]string{}, typed...)
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		return []string{typed}
	default:
		return nil
	}
}
