// Package config handles shadowquery configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xul8tr/shadowquery/query"
)

// Config is the top-level shadowquery configuration.
type Config struct {
	Listen   ListenConfig   `yaml:"listen"`
	Auth     AuthConfig     `yaml:"auth"`
	Browser  BrowserConfig  `yaml:"browser"`
	Store    StoreConfig    `yaml:"store"`
	MCP      MCPConfig      `yaml:"mcp"`
	Override OverrideConfig `yaml:"override"`
}

// ListenConfig controls the HTTP service.
type ListenConfig struct {
	Addr    string `yaml:"addr"`
	MaxBody int64  `yaml:"max_body"`
}

// AuthConfig carries the bcrypt hash of the bearer token accepted by the
// HTTP service. Empty = no auth.
type AuthConfig struct {
	TokenHash string `yaml:"token_hash"`
}

// BrowserConfig controls the Chrome-backed live-page path.
type BrowserConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Remote          string        `yaml:"remote"`
	Stealth         bool          `yaml:"stealth"`
	Headful         bool          `yaml:"headful"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
}

// StoreConfig controls the SQLite query-run log.
type StoreConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MCPConfig controls the MCP-over-QUIC listener. Without a certificate pair
// the listener falls back to an ephemeral self-signed certificate.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// OverrideConfig selects the default override mode for page patching.
type OverrideConfig struct {
	Mode string `yaml:"mode"` // implicit | marker-gated
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a Config with defaults applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Listen.Addr == "" {
		c.Listen.Addr = ":8377"
	}
	if c.Listen.MaxBody <= 0 {
		c.Listen.MaxBody = 1 << 20
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if c.Store.Path == "" {
		c.Store.Path = "shadowquery.db"
	}
	if c.MCP.Addr == "" {
		c.MCP.Addr = ":9444"
	}
	if c.Override.Mode == "" {
		c.Override.Mode = "marker-gated"
	}
}

func (c *Config) validate() error {
	if c.Override.Mode != "" {
		if _, ok := query.ParseMode(c.Override.Mode); !ok {
			return fmt.Errorf("config: unknown override mode %q", c.Override.Mode)
		}
	}
	return nil
}

// Mode returns the configured override mode.
func (c *Config) Mode() query.Mode {
	m, _ := query.ParseMode(c.Override.Mode)
	return m
}
