package config

import "time"

// Config holds app configuration.
type Config struct {
	Address           string        `yaml:"address"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Session SessionConfig `yaml:"session"`
	JWT     JWTConfig     `yaml:"jwt"`
}

// SessionConfig selects and configures the session store. Driver is one of
// memory, cookie or postgres; Key signs cookie sessions.
type SessionConfig struct {
	Driver      string        `yaml:"driver"`
	CookieName  string        `yaml:"cookie_name"`
	TTL         time.Duration `yaml:"ttl"`
	Secure      bool          `yaml:"secure"`
	Key         string        `yaml:"key"`
	PostgresDSN string        `yaml:"postgres_dsn"`
	Table       string        `yaml:"table"`
	Timeout     time.Duration `yaml:"timeout"`
}

// JWTConfig configures bearer token verification.
type JWTConfig struct {
	Key      string        `yaml:"key"`
	Issuer   string        `yaml:"issuer"`
	Audience string        `yaml:"audience"`
	Leeway   time.Duration `yaml:"leeway"`
}

// Default returns safe defaults.
func Default() Config {
	return Config{
		Address:           ":8080",
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxBodyBytes:      1 << 20,
		LogLevel:          "info",
		LogFormat:         "text",
		Session: SessionConfig{
			Driver:     "memory",
			CookieName: "warden_session",
			TTL:        24 * time.Hour,
			Table:      "warden_sessions",
			Timeout:    2 * time.Second,
		},
	}
}
