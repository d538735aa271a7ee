package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TRACKER_AUTH__API_TOKEN", "secret-token")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Auth.APIToken != "secret-token" {
		t.Errorf("Auth.APIToken = %q, want %q", cfg.Auth.APIToken, "secret-token")
	}
	if cfg.Auth.BasicUsername != "admin" {
		t.Errorf("Auth.BasicUsername = %q, want %q", cfg.Auth.BasicUsername, "admin")
	}
	if !cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = false, want true by default")
	}
	if cfg.RateLimit.AnonymousLimit != 60 {
		t.Errorf("RateLimit.AnonymousLimit = %d, want 60", cfg.RateLimit.AnonymousLimit)
	}
	if cfg.RateLimit.WindowSeconds != 60 {
		t.Errorf("RateLimit.WindowSeconds = %d, want 60", cfg.RateLimit.WindowSeconds)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRACKER_AUTH__API_TOKEN", "tok")
	t.Setenv("TRACKER_SERVER__PORT", "9100")
	t.Setenv("TRACKER_RATE_LIMIT__ENABLED", "false")
	t.Setenv("TRACKER_RATE_LIMIT__ANONYMOUS_LIMIT", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = true, want false")
	}
	if cfg.RateLimit.AnonymousLimit != 5 {
		t.Errorf("RateLimit.AnonymousLimit = %d, want 5", cfg.RateLimit.AnonymousLimit)
	}
}

func TestLoad_MissingToken(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("Load() without api_token should fail")
	}
}

func TestLoad_RejectsNonPositiveQuotas(t *testing.T) {
	t.Setenv("TRACKER_AUTH__API_TOKEN", "secret")

	t.Setenv("TRACKER_RATE_LIMIT__ANONYMOUS_LIMIT", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("Load() with anonymous_limit=0 should fail")
	}

	t.Setenv("TRACKER_RATE_LIMIT__ANONYMOUS_LIMIT", "60")
	t.Setenv("TRACKER_RATE_LIMIT__AUTHENTICATED_LIMIT", "-1")
	if _, err := Load(""); err == nil {
		t.Fatal("Load() with authenticated_limit=-1 should fail")
	}

	// Quotas are only enforced while the limiter is active.
	t.Setenv("TRACKER_RATE_LIMIT__ENABLED", "false")
	if _, err := Load(""); err != nil {
		t.Fatalf("Load() with limiter disabled should ignore quotas, got: %v", err)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "server:\n  port: 9200\nauth:\n  api_token: from-file\n  basic_username: fileuser\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	// Env wins over the file for keys set in both.
	t.Setenv("TRACKER_AUTH__API_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9200 {
		t.Errorf("Server.Port = %d, want 9200 from file", cfg.Server.Port)
	}
	if cfg.Auth.APIToken != "from-env" {
		t.Errorf("Auth.APIToken = %q, want env override", cfg.Auth.APIToken)
	}
	if cfg.Auth.BasicUsername != "fileuser" {
		t.Errorf("Auth.BasicUsername = %q, want %q", cfg.Auth.BasicUsername, "fileuser")
	}
}

func TestRateLimitConfig_Durations(t *testing.T) {
	c := RateLimitConfig{WindowSeconds: 60, SweepIntervalSeconds: 300}
	if c.Window().Seconds() != 60 {
		t.Errorf("Window() = %v, want 60s", c.Window())
	}
	if c.SweepInterval().Seconds() != 300 {
		t.Errorf("SweepInterval() = %v, want 300s", c.SweepInterval())
	}
}
