package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv applies environment overrides with a prefix (e.g. WARDEN_).
func LoadFromEnv(prefix string, base Config) Config {
	env := envReader{prefix: prefix}

	env.string("ADDRESS", &base.Address)
	env.duration("READ_TIMEOUT", &base.ReadTimeout)
	env.duration("WRITE_TIMEOUT", &base.WriteTimeout)
	env.duration("IDLE_TIMEOUT", &base.IdleTimeout)
	env.duration("READ_HEADER_TIMEOUT", &base.ReadHeaderTimeout)
	env.duration("SHUTDOWN_TIMEOUT", &base.ShutdownTimeout)
	env.int64("MAX_BODY_BYTES", &base.MaxBodyBytes)
	env.string("LOG_LEVEL", &base.LogLevel)
	env.string("LOG_FORMAT", &base.LogFormat)

	env.string("SESSION_DRIVER", &base.Session.Driver)
	env.string("SESSION_COOKIE_NAME", &base.Session.CookieName)
	env.duration("SESSION_TTL", &base.Session.TTL)
	env.bool("SESSION_SECURE", &base.Session.Secure)
	env.string("SESSION_KEY", &base.Session.Key)
	env.string("SESSION_POSTGRES_DSN", &base.Session.PostgresDSN)
	env.string("SESSION_TABLE", &base.Session.Table)
	env.duration("SESSION_TIMEOUT", &base.Session.Timeout)

	env.string("JWT_KEY", &base.JWT.Key)
	env.string("JWT_ISSUER", &base.JWT.Issuer)
	env.string("JWT_AUDIENCE", &base.JWT.Audience)
	env.duration("JWT_LEEWAY", &base.JWT.Leeway)

	return base
}

// envReader applies set, parseable variables; invalid values are ignored.
type envReader struct {
	prefix string
}

func (e envReader) lookup(key string) (string, bool) {
	value := os.Getenv(e.prefix + key)
	return value, value != ""
}

func (e envReader) string(key string, dst *string) {
	if value, ok := e.lookup(key); ok {
		*dst = value
	}
}

func (e envReader) duration(key string, dst *time.Duration) {
	if value, ok := e.lookup(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			*dst = d
		}
	}
}

func (e envReader) int64(key string, dst *int64) {
	if value, ok := e.lookup(key); ok {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			*dst = n
		}
	}
}

func (e envReader) bool(key string, dst *bool) {
	if value, ok := e.lookup(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			*dst = b
		}
	}
}
