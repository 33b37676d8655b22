// Package config loads the device-side settings of the setlog client.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Storage backends for the local queue.
const (
	StorageSQLite   = "sqlite"
	StorageDisabled = "disabled"
)

// Config captures the client settings.
type Config struct {
	ServerURL     string
	DBPath        string
	Storage       string
	SyncInterval  time.Duration
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BatchSize     int
	ProbeInterval time.Duration
	StatusWindow  time.Duration
}

const (
	defaultConfigPath    = "~/.config/setlog/config.toml"
	defaultDBPath        = "~/.local/share/setlog/queue.db"
	defaultServerURL     = "http://127.0.0.1:8080"
	defaultSyncInterval  = 30 * time.Second
	defaultBaseDelay     = 2 * time.Second
	defaultMaxDelay      = 5 * time.Minute
	defaultBatchSize     = 1
	defaultProbeInterval = 15 * time.Second
	defaultStatusWindow  = 3 * time.Second
)

// MaxBatchSize is the largest batch the server accepts by default (-max-batch).
const MaxBatchSize = 100

// Defaults returns the settings used when no config file exists.
func Defaults() Config {
	return Config{
		ServerURL:     defaultServerURL,
		DBPath:        mustExpand(defaultDBPath),
		Storage:       StorageSQLite,
		SyncInterval:  defaultSyncInterval,
		BaseDelay:     defaultBaseDelay,
		MaxDelay:      defaultMaxDelay,
		BatchSize:     defaultBatchSize,
		ProbeInterval: defaultProbeInterval,
		StatusWindow:  defaultStatusWindow,
	}
}

// Load locates and parses the config, falling back to defaults when missing.
// Blank values also fall back to defaults.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Defaults()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		ServerURL     string `toml:"server_url"`
		DBPath        string `toml:"db_path"`
		Storage       string `toml:"storage"`
		SyncInterval  string `toml:"sync_interval"`
		BaseDelay     string `toml:"base_delay"`
		MaxDelay      string `toml:"max_delay"`
		BatchSize     int    `toml:"batch_size"`
		ProbeInterval string `toml:"probe_interval"`
		StatusWindow  string `toml:"status_window"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.ServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := strings.TrimSpace(raw.DBPath); v != "" {
		cfg.DBPath = mustExpand(v)
	}
	switch v := strings.ToLower(strings.TrimSpace(raw.Storage)); v {
	case "":
	case StorageSQLite, StorageDisabled:
		cfg.Storage = v
	default:
		return Config{}, fmt.Errorf("parse config: storage must be %q or %q, got %q", StorageSQLite, StorageDisabled, v)
	}
	switch {
	case raw.BatchSize > MaxBatchSize:
		return Config{}, fmt.Errorf("parse config: batch_size %d exceeds the server limit %d", raw.BatchSize, MaxBatchSize)
	case raw.BatchSize > 0:
		cfg.BatchSize = raw.BatchSize
	}

	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"sync_interval", raw.SyncInterval, &cfg.SyncInterval},
		{"base_delay", raw.BaseDelay, &cfg.BaseDelay},
		{"max_delay", raw.MaxDelay, &cfg.MaxDelay},
		{"probe_interval", raw.ProbeInterval, &cfg.ProbeInterval},
		{"status_window", raw.StatusWindow, &cfg.StatusWindow},
	} {
		v := strings.TrimSpace(d.raw)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("parse config: %s %q is not a positive duration", d.key, v)
		}
		*d.dst = parsed
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		return Config{}, fmt.Errorf("parse config: max_delay %s is below base_delay %s", cfg.MaxDelay, cfg.BaseDelay)
	}

	return cfg, nil
}

// StorageEnabled reports whether the queue should be persisted.
func (c Config) StorageEnabled() bool {
	return c.Storage != StorageDisabled && strings.TrimSpace(c.DBPath) != ""
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
