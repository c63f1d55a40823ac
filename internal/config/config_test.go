package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")
	t.Setenv(PathEnvVar, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.Secret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.Auth.Secret)
	}
	if cfg.Auth.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.Auth.ManagerPIN)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	t.Setenv("PORT", "")
	t.Setenv("UPSELL_DEFAULT_LIMIT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected default address :8080, got %q", cfg.Address())
	}
	if cfg.Upsell.DefaultLimit != 4 {
		t.Fatalf("expected default limit 4, got %d", cfg.Upsell.DefaultLimit)
	}
	if cfg.ResponseTTL() != 15*time.Second {
		t.Fatalf("expected 15s response ttl, got %s", cfg.ResponseTTL())
	}
	if cfg.TokenTTL() != 8*time.Hour {
		t.Fatalf("expected 8h token ttl, got %s", cfg.TokenTTL())
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: \"9000\"\nupsell:\n  default_limit: 6\n  image_root: /srv/public\nlog:\n  level: debug\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(PathEnvVar, path)
	t.Setenv("PORT", "9100")
	for _, name := range []string{"UPSELL_DEFAULT_LIMIT", "IMAGE_ROOT", "LOG_LEVEL"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	t.Setenv("REDIS_DB", "3")
	t.Setenv("AUTH_SECRET", "  padded-secret  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9100" {
		t.Fatalf("expected env port to win, got %q", cfg.Server.Port)
	}
	if cfg.Upsell.ImageRoot != "/srv/public" || cfg.Log.Level != "debug" {
		t.Fatalf("expected file values to apply, got %+v %+v", cfg.Upsell, cfg.Log)
	}
	if cfg.Upsell.DefaultLimit != 6 {
		t.Fatalf("expected file default limit 6, got %d", cfg.Upsell.DefaultLimit)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("expected redis db 3, got %d", cfg.Redis.DB)
	}
	if cfg.Auth.Secret != "padded-secret" {
		t.Fatalf("expected trimmed secret, got %q", cfg.Auth.Secret)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	t.Setenv(PathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected missing config file to fail")
	}
}

func TestNormalizeReplacesOutOfRangeValues(t *testing.T) {
	cfg := Config{}
	cfg.Upsell.DefaultLimit = -2
	cfg.Ranking.QueryTimeoutSeconds = 0

	cfg.normalize()

	if cfg.Upsell.DefaultLimit != 4 {
		t.Fatalf("expected default limit restored, got %d", cfg.Upsell.DefaultLimit)
	}
	if cfg.QueryTimeout() != 5*time.Second {
		t.Fatalf("expected 5s query timeout, got %s", cfg.QueryTimeout())
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Server.Port)
	}
}
