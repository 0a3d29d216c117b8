package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tracker/config.yaml",
}

// envMappings maps environment variables (lower-cased) to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"http_addr":                "server.addr",
	"read_timeout":             "server.read_timeout",
	"write_timeout":            "server.write_timeout",
	"shutdown_timeout":         "server.shutdown_timeout",
	"database_path":            "database.path",
	"session_store":            "session.store",
	"session_store_path":       "session.store_path",
	"session_ttl":              "session.ttl",
	"session_cleanup_interval": "session.cleanup_interval",
	"session_cookie_name":      "session.cookie_name",
	"cookie_secure":            "session.cookie_secure",
	"login_rate_limit":         "security.login_rate_limit",
	"login_rate_window":        "security.login_rate_window",
	"rate_limit_disabled":      "security.rate_limit_disabled",
	"admin_email":              "admin.email",
	"admin_password":           "admin.password",
	"log_level":                "logging.level",
	"log_format":               "logging.format",
	"log_caller":               "logging.caller",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
