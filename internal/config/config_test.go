package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ADMIN_PASSWORD", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.AdminPassword != "" {
		t.Fatalf("expected empty ADMIN_PASSWORD when unset, got %q", cfg.AdminPassword)
	}
}

func TestLoadFallsBackOnInvalidNumbers(t *testing.T) {
	t.Setenv("CATALOG_CACHE_TTL_SECONDS", "abc")
	t.Setenv("STALE_SHIFT_HOURS", "-3")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "60")

	cfg := Load()
	if cfg.CatalogCacheTTL() != 5*time.Minute {
		t.Fatalf("expected default cache ttl, got %s", cfg.CatalogCacheTTL())
	}
	if cfg.StaleShiftAfter() != 14*time.Hour {
		t.Fatalf("expected default stale threshold, got %s", cfg.StaleShiftAfter())
	}
	if cfg.AccessTokenTTLMinutes != 60 {
		t.Fatalf("expected token ttl 60, got %d", cfg.AccessTokenTTLMinutes)
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	cfg := Config{Timezone: "Mars/Olympus"}
	if cfg.Location() != time.UTC {
		t.Fatalf("expected UTC fallback")
	}
}

func TestLoadDotEnvKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("PORT=9999\nSTALE_SHIFT_HOURS=6\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("PORT", "8081")
	t.Setenv("STALE_SHIFT_HOURS", "")
	os.Unsetenv("STALE_SHIFT_HOURS")

	LoadDotEnv(path)
	cfg := Load()
	if cfg.Port != "8081" {
		t.Fatalf("existing PORT must win over .env, got %s", cfg.Port)
	}
	if cfg.StaleShiftHours != 6 {
		t.Fatalf("expected STALE_SHIFT_HOURS from .env, got %d", cfg.StaleShiftHours)
	}

	LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"))
}
