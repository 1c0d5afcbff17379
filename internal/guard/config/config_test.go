package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	// No env overrides
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "prod" {
		t.Errorf("expected Env=prod, got %q", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel=info, got %q", cfg.LogLevel)
	}
	if cfg.Port != 8000 {
		t.Errorf("expected Port=8000, got %d", cfg.Port)
	}
	if cfg.UpstreamHost != "http://127.0.0.1" {
		t.Errorf("expected UpstreamHost=http://127.0.0.1, got %q", cfg.UpstreamHost)
	}
	if cfg.UpstreamPort != 3000 {
		t.Errorf("expected UpstreamPort=3000, got %d", cfg.UpstreamPort)
	}
	if cfg.UpstreamTimeout != 10 {
		t.Errorf("expected UpstreamTimeout=10, got %d", cfg.UpstreamTimeout)
	}
	if cfg.BackupDir != "/var/lib/guardhome/backups/" {
		t.Errorf("expected BackupDir=/var/lib/guardhome/backups/, got %q", cfg.BackupDir)
	}
	if cfg.JournalDB != "/var/lib/guardhome/journal.db" {
		t.Errorf("expected JournalDB=/var/lib/guardhome/journal.db, got %q", cfg.JournalDB)
	}
	if cfg.HealthTTL != 5 {
		t.Errorf("expected HealthTTL=5, got %d", cfg.HealthTTL)
	}
	if cfg.UpstreamUser != "" || cfg.UpstreamPass != "" {
		t.Errorf("expected empty upstream credentials by default")
	}
}

func TestLoad_ValidOverrides(t *testing.T) {
	t.Setenv("GUARD_ENV", "dev")
	t.Setenv("GUARD_LOG_LEVEL", "debug")
	t.Setenv("GUARD_PORT", "9000")
	t.Setenv("GUARD_UPSTREAM_HOST", "https://adguard.lan")
	t.Setenv("GUARD_UPSTREAM_PORT", "8080")
	t.Setenv("GUARD_UPSTREAM_USER", "admin")
	t.Setenv("GUARD_UPSTREAM_PASS", "hunter2")
	t.Setenv("GUARD_UPSTREAM_TIMEOUT", "3")
	t.Setenv("GUARD_BACKUP_DIR", "/tmp/backups/")
	t.Setenv("GUARD_JOURNAL_DB", "/tmp/journal.db")
	t.Setenv("GUARD_HEALTH_TTL", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "dev" {
		t.Errorf("expected Env=dev, got %q", cfg.Env)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel=debug, got %q", cfg.LogLevel)
	}
	if cfg.Port != 9000 {
		t.Errorf("expected Port=9000, got %d", cfg.Port)
	}
	if cfg.UpstreamHost != "https://adguard.lan" {
		t.Errorf("expected UpstreamHost=https://adguard.lan, got %q", cfg.UpstreamHost)
	}
	if cfg.UpstreamPort != 8080 {
		t.Errorf("expected UpstreamPort=8080, got %d", cfg.UpstreamPort)
	}
	if cfg.UpstreamUser != "admin" || cfg.UpstreamPass != "hunter2" {
		t.Errorf("expected credentials to be set, got %q/%q", cfg.UpstreamUser, cfg.UpstreamPass)
	}
	if cfg.UpstreamTimeout != 3 {
		t.Errorf("expected UpstreamTimeout=3, got %d", cfg.UpstreamTimeout)
	}
	if cfg.BackupDir != "/tmp/backups/" {
		t.Errorf("expected BackupDir=/tmp/backups/, got %q", cfg.BackupDir)
	}
	if cfg.JournalDB != "/tmp/journal.db" {
		t.Errorf("expected JournalDB=/tmp/journal.db, got %q", cfg.JournalDB)
	}
	if cfg.HealthTTL != 30 {
		t.Errorf("expected HealthTTL=30, got %d", cfg.HealthTTL)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad env", key: "GUARD_ENV", value: "staging"},
		{name: "bad log level", key: "GUARD_LOG_LEVEL", value: "verbose"},
		{name: "port zero", key: "GUARD_PORT", value: "0"},
		{name: "port too large", key: "GUARD_PORT", value: "70000"},
		{name: "upstream host without scheme", key: "GUARD_UPSTREAM_HOST", value: "adguard.lan"},
		{name: "upstream host with path", key: "GUARD_UPSTREAM_HOST", value: "http://adguard.lan/control"},
		{name: "upstream host bad scheme", key: "GUARD_UPSTREAM_HOST", value: "ftp://adguard.lan"},
		{name: "timeout zero", key: "GUARD_UPSTREAM_TIMEOUT", value: "0"},
		{name: "timeout too large", key: "GUARD_UPSTREAM_TIMEOUT", value: "600"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			if err == nil {
				t.Fatalf("Load() succeeded with %s=%s, want validation error", tc.key, tc.value)
			}
			if !strings.Contains(err.Error(), "validation failed") {
				t.Errorf("expected validation error, got: %v", err)
			}
		})
	}
}

func TestUpstreamBaseURL(t *testing.T) {
	cfg := AppConfig{UpstreamHost: "http://adguard.lan/", UpstreamPort: 3000}
	if got := cfg.UpstreamBaseURL(); got != "http://adguard.lan:3000" {
		t.Errorf("UpstreamBaseURL() = %q, want http://adguard.lan:3000", got)
	}
}
