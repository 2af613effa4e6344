package server

import (
	"fmt"
	"net"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Themes lists the built-in stylesheet names.
var Themes = []string{"default", "homebrew", "solarized-light", "solarized-dark"}

// Config holds the full server configuration. Environment variables override
// the YAML file, which overrides defaults.
type Config struct {
	Listen   string `yaml:"listen" env:"BIND_ADDR"`
	DocRoot  string `yaml:"doc_root" env:"DOC_ROOT"`
	Theme    string `yaml:"theme" env:"THEME"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL"`
	APIKey   string `yaml:"api_key" env:"MDEASY_API_KEY"`
	Watch    bool   `yaml:"watch" env:"WATCH"`
	StatsDB  string `yaml:"stats_db" env:"STATS_DB"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// DefaultConfig returns sane defaults: loopback bind, current directory as
// document root, watching enabled, no stats database.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8765",
		DocRoot:  ".",
		Theme:    "default",
		Watch:    true,
		LogLevel: "info",
	}
}

// LoadConfig builds the effective configuration: defaults, then the YAML
// file at path (skipped when path is empty), then environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks required fields and enforces the bind security invariant:
// a non-loopback listen address without an API key must refuse to start.
// An unknown theme falls back to "default" rather than failing.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.DocRoot == "" {
		return fmt.Errorf("doc_root is required")
	}
	if !slices.Contains(Themes, c.Theme) {
		c.Theme = "default"
	}
	if !isLoopback(c.Listen) && c.APIKey == "" {
		return fmt.Errorf("refusing to bind %s without an API key: set api_key or MDEASY_API_KEY", c.Listen)
	}
	return nil
}

// isLoopback reports whether addr binds only the loopback interface.
// An empty host, "0.0.0.0" and "::" bind all interfaces and are not loopback.
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
