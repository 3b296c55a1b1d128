// Package config loads cardamom's configuration from a YAML file, with
// environment variable overrides, following fenilsonani-email-server's
// koanf-based layering.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds everything the sync engine needs from its caller (spec
// §6 "Configuration inputs the core receives from its caller").
type Config struct {
	Server      ServerConfig  `koanf:"server"`
	Credentials CredsConfig   `koanf:"credentials"`
	Sync        SyncConfig    `koanf:"sync"`
	Logging     LoggingConfig `koanf:"logging"`
}

// ServerConfig locates the CardDAV server.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"` // default 8843
}

// CredsConfig describes how to authenticate.
type CredsConfig struct {
	Login     string `koanf:"login"`
	PasswdCmd string `koanf:"passwd_cmd"` // external command whose stdout is the password
}

// SyncConfig points at the local sync directory.
type SyncConfig struct {
	Dir string `koanf:"dir"`
}

// LoggingConfig mirrors the teacher's zerolog-backed logging config
// (internal/logging.Config), so the CLI can wire one struct straight
// through to logging.Init.
type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, console
}

// DefaultConfig returns the configuration cardamom runs with if no file
// and no environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8843,
		},
		Sync: SyncConfig{
			Dir: "~/.local/share/cardamom",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// envKeys maps each supported CARDAMOM_-prefixed environment variable
// (suffix only) to its koanf dotted key. A plain "split on every
// underscore" transform can't tell a section boundary from an
// underscore inside a field name like passwd_cmd, so overrides are
// listed explicitly instead; anything not listed here is ignored.
var envKeys = map[string]string{
	"SERVER_HOST":            "server.host",
	"SERVER_PORT":            "server.port",
	"CREDENTIALS_LOGIN":      "credentials.login",
	"CREDENTIALS_PASSWD_CMD": "credentials.passwd_cmd",
	"SYNC_DIR":               "sync.dir",
	"LOGGING_LEVEL":          "logging.level",
	"LOGGING_FORMAT":         "logging.format",
}

// Load reads YAML from path, if present, over the defaults, then applies
// CARDAMOM_-prefixed environment overrides (e.g. CARDAMOM_SERVER_HOST).
// A missing file is not an error: defaults (plus env) are returned as-is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
		if err := k.Unmarshal("", cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat config file %s: %w", path, err)
	}

	envProvider := env.Provider("CARDAMOM_", ".", func(s string) string {
		key, ok := envKeys[strings.TrimPrefix(s, "CARDAMOM_")]
		if !ok {
			return ""
		}
		return key
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment overrides: %w", err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal environment overrides: %w", err)
	}

	return cfg, nil
}

// Validate reports whether the configuration is complete enough to run a
// sync.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if c.Credentials.Login == "" {
		return fmt.Errorf("credentials.login is required")
	}
	if c.Credentials.PasswdCmd == "" {
		return fmt.Errorf("credentials.passwd_cmd is required")
	}
	if c.Sync.Dir == "" {
		return fmt.Errorf("sync.dir is required")
	}
	return nil
}
