// Package engineconfig wraps viper the way the teacher's
// internal/config package wraps it: a discovered-or-defaulted YAML
// file, environment-variable overrides, and typed accessors for the
// engine-wide tunables (lock cache size, default isolation level,
// index persistence directory, migration settings).
package engineconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/entidb/entidb/internal/debug"
)

// Config wraps a *viper.Viper instance with EntiDB's discovery order
// and defaults. The zero value is not usable; construct with Load.
type Config struct {
	v *viper.Viper

	watcher *watcher
}

// Load builds a Config, locating a config file via the discovery
// order: ./.entidb/config.yaml walking up from cwd, then
// $XDG_CONFIG_HOME/entidb/config.yaml, then ~/.entidb/config.yaml. No
// file existing is not an error — defaults and environment variables
// still apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path := discoverConfigFile(); path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("ENTIDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("engineconfig: reading %s: %w", v.ConfigFileUsed(), err)
		}
	}

	return &Config{v: v}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("lock-cache-size", 1024)
	v.SetDefault("bulk-concurrency", 8)
	v.SetDefault("default-isolation", "read-committed")
	v.SetDefault("index-dir", ".entidb/indexes")
	v.SetDefault("migration.auto-migrate", false)
	v.SetDefault("migration.backup-before-migration", true)
	v.SetDefault("migration.max-log-entries", 100)
	v.SetDefault("debug", false)
}

func discoverConfigFile() string {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, ".entidb", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidate := filepath.Join(xdg, "entidb", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".entidb", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func (c *Config) LockCacheSize() int           { return c.v.GetInt("lock-cache-size") }
func (c *Config) BulkConcurrency() int         { return c.v.GetInt("bulk-concurrency") }
func (c *Config) DefaultIsolation() string     { return c.v.GetString("default-isolation") }
func (c *Config) IndexDir() string             { return c.v.GetString("index-dir") }
func (c *Config) AutoMigrate() bool            { return c.v.GetBool("migration.auto-migrate") }
func (c *Config) BackupBeforeMigration() bool  { return c.v.GetBool("migration.backup-before-migration") }
func (c *Config) MaxLogEntries() int           { return c.v.GetInt("migration.max-log-entries") }
func (c *Config) DebugEnabled() bool           { return c.v.GetBool("debug") }

// ConfigFileUsed returns the path of the config file actually loaded,
// or "" if none was found.
func (c *Config) ConfigFileUsed() string { return c.v.ConfigFileUsed() }

// Set overrides a single key, primarily for tests and CLI flag
// binding.
func (c *Config) Set(key string, value interface{}) { c.v.Set(key, value) }

// ApplyDebugGate pushes DebugEnabled into the internal/debug package's
// global gate, matching the teacher's pattern of config driving a
// process-wide logging flag at startup.
func (c *Config) ApplyDebugGate() {
	if c.DebugEnabled() {
		debug.Enable()
	} else {
		debug.Disable()
	}
}
