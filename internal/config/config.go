// Package config loads the tracker configuration.
//
// Sources are layered with koanf, lowest priority first:
//  1. built-in defaults (defaultConfig)
//  2. an optional YAML file (CONFIG_PATH, ./config.yaml, /etc/tracker/config.yaml)
//  3. environment variables (see envMappings)
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds runtime settings for the tracker server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Security SecurityConfig `koanf:"security"`
	Admin    AdminConfig    `koanf:"admin"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Path is the SQLite file. ":memory:" is accepted for throwaway runs.
	Path string `koanf:"path"`
}

// SessionConfig controls the server-side session store and its cookie.
type SessionConfig struct {
	// Store is "memory" or "badger".
	Store           string        `koanf:"store"`
	StorePath       string        `koanf:"store_path"`
	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	CookieName      string        `koanf:"cookie_name"`
	// CookieSecure forces the Secure flag. Requests served over TLS always get it.
	CookieSecure bool `koanf:"cookie_secure"`
}

type SecurityConfig struct {
	// LoginRateLimit is the number of POSTs to /login and /register allowed
	// per client IP within LoginRateWindow.
	LoginRateLimit    int           `koanf:"login_rate_limit"`
	LoginRateWindow   time.Duration `koanf:"login_rate_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// AdminConfig is the account seeded at startup when missing.
type AdminConfig struct {
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

const (
	SessionStoreMemory = "memory"
	SessionStoreBadger = "badger"

	// DefaultAdminPassword is only meant for local development.
	DefaultAdminPassword = "admin123"
)

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "tracker.db",
		},
		Session: SessionConfig{
			Store:           SessionStoreMemory,
			StorePath:       "data/sessions",
			TTL:             24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
			CookieName:      "session",
			CookieSecure:    false,
		},
		Security: SecurityConfig{
			LoginRateLimit:    10,
			LoginRateWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Admin: AdminConfig{
			Email:    "admin@tracker.com",
			Password: DefaultAdminPassword,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreBadger:
		if strings.TrimSpace(c.Session.StorePath) == "" {
			errs = append(errs, errors.New("session.store_path is required for the badger store"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.store must be %q or %q, got %q", SessionStoreMemory, SessionStoreBadger, c.Session.Store))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Session.CleanupInterval <= 0 {
		errs = append(errs, errors.New("session.cleanup_interval must be positive"))
	}
	if strings.TrimSpace(c.Session.CookieName) == "" {
		errs = append(errs, errors.New("session.cookie_name is required"))
	}

	if !c.Security.RateLimitDisabled {
		if c.Security.LoginRateLimit <= 0 {
			errs = append(errs, errors.New("security.login_rate_limit must be positive"))
		}
		if c.Security.LoginRateWindow <= 0 {
			errs = append(errs, errors.New("security.login_rate_window must be positive"))
		}
	}

	if strings.TrimSpace(c.Admin.Email) == "" {
		errs = append(errs, errors.New("admin.email is required"))
	}
	if c.Admin.Password == "" {
		errs = append(errs, errors.New("admin.password is required"))
	}

	return errors.Join(errs...)
}

// UsesDefaultAdminPassword is true when the seed account would get the
// development password.
func (c *Config) UsesDefaultAdminPassword() bool {
	return c.Admin.Password == DefaultAdminPassword
}
