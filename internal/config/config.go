package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Alert     AlertConfig     `koanf:"alert"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type DatabaseConfig struct {
	// Path is the SQLite database file. ":memory:" is accepted for tests.
	Path string `koanf:"path"`
}

type AuthConfig struct {
	APIToken      string `koanf:"api_token"`
	BasicUsername string `koanf:"basic_username"`
	BasicPassword string `koanf:"basic_password"`
}

type RateLimitConfig struct {
	Enabled              bool `koanf:"enabled"`
	AnonymousLimit       int  `koanf:"anonymous_limit"`
	AuthenticatedLimit   int  `koanf:"authenticated_limit"`
	WindowSeconds        int  `koanf:"window_seconds"`
	SweepIntervalSeconds int  `koanf:"sweep_interval_seconds"`
}

// Window returns the sliding window length as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// SweepInterval returns the background cleanup cadence as a duration.
func (c RateLimitConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

type AlertConfig struct {
	WebhookURL     string `koanf:"webhook_url"`
	TimeoutSeconds int    `koanf:"timeout_seconds"`
}

func (c AlertConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Load reads configuration from an optional YAML file and TRACKER_-prefixed
// environment variables. Environment variables win over the file; defaults
// fill anything left unset. A double underscore in an environment variable
// name separates nesting levels (TRACKER_AUTH__API_TOKEN -> auth.api_token).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider("TRACKER_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "TRACKER_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	defaults := map[string]interface{}{
		"server.port":                       8000,
		"database.path":                     "./data/tracker.db",
		"auth.basic_username":               "admin",
		"auth.basic_password":               "password",
		"rate_limit.enabled":                true,
		"rate_limit.anonymous_limit":        60,
		"rate_limit.authenticated_limit":    300,
		"rate_limit.window_seconds":         60,
		"rate_limit.sweep_interval_seconds": 300,
		"alert.timeout_seconds":             10,
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Auth.APIToken == "" {
		return nil, fmt.Errorf("auth.api_token (TRACKER_AUTH__API_TOKEN) is required")
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		return nil, fmt.Errorf("rate_limit.window_seconds must be positive")
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.AnonymousLimit <= 0 {
			return nil, fmt.Errorf("rate_limit.anonymous_limit must be positive when rate limiting is enabled")
		}
		if cfg.RateLimit.AuthenticatedLimit <= 0 {
			return nil, fmt.Errorf("rate_limit.authenticated_limit must be positive when rate limiting is enabled")
		}
	}

	return &cfg, nil
}
