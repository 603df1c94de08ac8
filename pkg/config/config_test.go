package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildDefaults(t *testing.T) {
	cfg, err := Build("", nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if cfg.Remote.Backend != "local" {
		t.Errorf("default backend = %q, want local", cfg.Remote.Backend)
	}
	if cfg.Sync.Retries != 3 {
		t.Errorf("default retries = %d", cfg.Sync.Retries)
	}
	if cfg.Sealer.Time == 0 || cfg.Sealer.MemoryKiB == 0 || cfg.Sealer.Threads == 0 {
		t.Errorf("default sealer params incomplete: %+v", cfg.Sealer)
	}
	if len(cfg.Import.HidePatterns) == 0 {
		t.Error("default hide patterns missing")
	}
	if len(cfg.Rules.NormalizePatterns) == 0 {
		t.Error("default normalize patterns missing")
	}
}

func TestBuildFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kasa.yaml")
	content := "user: alice\nremote:\n  backend: gcs\n  bucket: my-bucket\nsync:\n  retries: 7\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Build(path, nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if cfg.User != "alice" {
		t.Errorf("user = %q", cfg.User)
	}
	if cfg.Remote.Backend != "gcs" || cfg.Remote.Bucket != "my-bucket" {
		t.Errorf("remote = %+v", cfg.Remote)
	}
	if cfg.Sync.Retries != 7 {
		t.Errorf("retries = %d", cfg.Sync.Retries)
	}
	// Untouched sections keep their defaults.
	if cfg.Sync.BackoffMS != 500 {
		t.Errorf("backoff_ms = %d", cfg.Sync.BackoffMS)
	}
}

func TestBuildMissingExplicitFile(t *testing.T) {
	if _, err := Build(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestBuildEnvOverride(t *testing.T) {
	t.Setenv("KASA_REMOTE_BACKEND", "gcs")
	t.Setenv("KASA_USER", "bob")

	cfg, err := Build("", nil)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if cfg.Remote.Backend != "gcs" {
		t.Errorf("env override ignored, backend = %q", cfg.Remote.Backend)
	}
	if cfg.User != "bob" {
		t.Errorf("env override ignored, user = %q", cfg.User)
	}
}
