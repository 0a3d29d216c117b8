package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no config file lookup.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(ConfigPathEnvVar, "")
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "tracker.db", cfg.Database.Path)
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, "session", cfg.Session.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "admin@tracker.com", cfg.Admin.Email)
	assert.True(t, cfg.UsesDefaultAdminPassword())
	require.NoError(t, cfg.Validate())
}

func TestEnvTransformFunc(t *testing.T) {
	assert.Equal(t, "server.addr", envTransformFunc("HTTP_ADDR"))
	assert.Equal(t, "session.ttl", envTransformFunc("SESSION_TTL"))
	assert.Equal(t, "admin.password", envTransformFunc("ADMIN_PASSWORD"))
	assert.Empty(t, envTransformFunc("PATH"))
	assert.Empty(t, envTransformFunc("HOME"))
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultConfig().Server.Addr, cfg.Server.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Session.CleanupInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DATABASE_PATH", "/tmp/t.db")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("LOGIN_RATE_LIMIT", "3")
	t.Setenv("ADMIN_PASSWORD", "s3cret-pass")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/tmp/t.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.True(t, cfg.Session.CookieSecure)
	assert.Equal(t, 3, cfg.Security.LoginRateLimit)
	assert.False(t, cfg.UsesDefaultAdminPassword())
}

func TestLoad_ConfigFileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	yaml := `
server:
  addr: ":7000"
session:
  store: badger
  store_path: /var/lib/tracker/sessions
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, SessionStoreBadger, cfg.Session.Store)
	assert.Equal(t, "/var/lib/tracker/sessions", cfg.Session.StorePath)
	assert.Equal(t, "error", cfg.Logging.Level, "env wins over file")
}

func TestFindConfigFile(t *testing.T) {
	dir := isolate(t)

	assert.Empty(t, findConfigFile())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{}"), 0o600))
	assert.Equal(t, "config.yaml", findConfigFile())

	t.Setenv(ConfigPathEnvVar, "/does/not/exist.yaml")
	assert.Equal(t, "config.yaml", findConfigFile(), "missing CONFIG_PATH falls back to search")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"unknown store", func(c *Config) { c.Session.Store = "redis" }, "session.store"},
		{"badger without path", func(c *Config) {
			c.Session.Store = SessionStoreBadger
			c.Session.StorePath = ""
		}, "session.store_path"},
		{"zero ttl", func(c *Config) { c.Session.TTL = 0 }, "session.ttl"},
		{"zero rate limit", func(c *Config) { c.Security.LoginRateLimit = 0 }, "security.login_rate_limit"},
		{"empty admin password", func(c *Config) { c.Admin.Password = "" }, "admin.password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("rate limit ignored when disabled", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.Security.RateLimitDisabled = true
		cfg.Security.LoginRateLimit = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestLoad_InvalidEnvFails(t *testing.T) {
	isolate(t)
	t.Setenv("SESSION_STORE", "redis")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
