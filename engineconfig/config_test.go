package engineconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LockCacheSize() != 1024 {
		t.Fatalf("expected default lock cache size 1024, got %d", cfg.LockCacheSize())
	}
	if cfg.DefaultIsolation() != "read-committed" {
		t.Fatalf("expected default isolation read-committed, got %q", cfg.DefaultIsolation())
	}
	if !cfg.BackupBeforeMigration() {
		t.Fatalf("expected backup-before-migration to default true")
	}
}

func TestLoadReadsDiscoveredFile(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	entidbDir := filepath.Join(dir, ".entidb")
	if err := os.MkdirAll(entidbDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(entidbDir, "config.yaml"), []byte("lock-cache-size: 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LockCacheSize() != 42 {
		t.Fatalf("expected lock cache size from discovered file, got %d", cfg.LockCacheSize())
	}
}

func TestEnvironmentOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ENTIDB_LOCK_CACHE_SIZE", "77")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LockCacheSize() != 77 {
		t.Fatalf("expected env override to win, got %d", cfg.LockCacheSize())
	}
}
