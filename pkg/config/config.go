// Copyright 2025 Radicle Link
//
// Runtime configuration for the replication core.
//
// Configuration comes from environment variables with safe defaults, or
// from a YAML file when one is given. Load and LoadFile run Validate()
// before returning, so required settings are checked on every load.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a peer's replication core
type Config struct {
	// Storage Configuration
	GitDir      string // Directory of the bare monorepo
	KeyPath     string // Path to the Ed25519 device key file
	LogLevel    string // zap level: debug, info, warn, error
	MetricsAddr string // Prometheus listen address, empty disables

	// Transport Configuration
	DialTimeout   time.Duration // Per stream-open attempt
	StreamTimeout time.Duration // Whole-exchange deadline, 0 means none
}

// Load reads configuration from environment variables.
//
// GIT_DIR and DEVICE_KEY_PATH are required and have no defaults.
func Load() (*Config, error) {
	cfg := &Config{
		GitDir:      getEnv("GIT_DIR", ""),
		KeyPath:     getEnv("DEVICE_KEY_PATH", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),

		DialTimeout:   getEnvDuration("DIAL_TIMEOUT", 10*time.Second),
		StreamTimeout: getEnvDuration("STREAM_TIMEOUT", 0),
	}
	return cfg, cfg.Validate()
}

// fileConfig is the YAML schema; durations are strings in time.Duration
// syntax ("10s", "1m30s").
type fileConfig struct {
	GitDir        string `yaml:"git_dir"`
	KeyPath       string `yaml:"key_path"`
	LogLevel      string `yaml:"log_level"`
	MetricsAddr   string `yaml:"metrics_addr"`
	DialTimeout   string `yaml:"dial_timeout"`
	StreamTimeout string `yaml:"stream_timeout"`
}

// LoadFile reads configuration from a YAML file, with environment
// variables filling anything the file leaves unset.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{
		GitDir:      getEnv("GIT_DIR", ""),
		KeyPath:     getEnv("DEVICE_KEY_PATH", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),

		DialTimeout:   getEnvDuration("DIAL_TIMEOUT", 10*time.Second),
		StreamTimeout: getEnvDuration("STREAM_TIMEOUT", 0),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if file.GitDir != "" {
		cfg.GitDir = file.GitDir
	}
	if file.KeyPath != "" {
		cfg.KeyPath = file.KeyPath
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.MetricsAddr != "" {
		cfg.MetricsAddr = file.MetricsAddr
	}
	if file.DialTimeout != "" {
		d, err := time.ParseDuration(file.DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: dial_timeout: %w", path, err)
		}
		cfg.DialTimeout = d
	}
	if file.StreamTimeout != "" {
		d, err := time.ParseDuration(file.StreamTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: stream_timeout: %w", path, err)
		}
		cfg.StreamTimeout = d
	}
	return cfg, cfg.Validate()
}

// Validate checks that required settings are present and well-formed.
func (c *Config) Validate() error {
	if c.GitDir == "" {
		return fmt.Errorf("git_dir is required")
	}
	if !filepath.IsAbs(c.GitDir) {
		abs, err := filepath.Abs(c.GitDir)
		if err != nil {
			return fmt.Errorf("git_dir: %w", err)
		}
		c.GitDir = abs
	}
	if c.KeyPath == "" {
		return fmt.Errorf("key_path is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unknown level %q", c.LogLevel)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
