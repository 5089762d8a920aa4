// Package config provides configuration management for the authproxy server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration structure
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Admin   AdminConfig   `yaml:"admin"`
	Storage StorageConfig `yaml:"storage"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Logging LoggingConfig `yaml:"logging"`
	Mgmt    MgmtConfig    `yaml:"mgmt"`
}

// ServerConfig contains public HTTP server settings
type ServerConfig struct {
	// Listen is the host:port the public server binds to
	Listen string `yaml:"listen"`

	// BaseURL is the public base used to build share links; the new
	// mapping identifier is appended to it verbatim
	BaseURL string `yaml:"base_url"`

	// StaticDir is the directory served for unmatched requests
	StaticDir string `yaml:"static_dir"`
}

// AdminConfig contains the administrative endpoint settings
type AdminConfig struct {
	Users []AdminUser `yaml:"users"`
}

// AdminUser is one username/password pair allowed to create mappings
type AdminUser struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"` //#nosec G117 -- admin credentials are configuration by design
}

// StorageConfig contains mapping table storage settings
type StorageConfig struct {
	Type  string      `yaml:"type"` // "file", "memory" or "redis"
	Path  string      `yaml:"path"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"` //#nosec G117 -- Password field is intentional for Redis auth config
	DB       int    `yaml:"db"`
}

// FetchConfig contains outbound fetch settings
type FetchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string      `yaml:"level"`
	Audit AuditConfig `yaml:"audit"`
}

// AuditConfig contains audit trail settings
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Output  string `yaml:"output"`
	Format  string `yaml:"format"`
}

// MgmtConfig contains management server settings
type MgmtConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:    ":8080",
			BaseURL:   "http://localhost:8080/",
			StaticDir: "./public",
		},
		Storage: StorageConfig{
			Type: "file",
			Path: "./storage/urls.json",
			Redis: RedisConfig{
				Address: "localhost:6379",
				DB:      0,
			},
		},
		Fetch: FetchConfig{
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			Audit: AuditConfig{
				Enabled: true,
				Output:  "stdout",
				Format:  "json",
			},
		},
		Mgmt: MgmtConfig{
			Enabled: true,
			Listen:  ":9090",
		},
	}
}

// Load loads the configuration from path. An empty path falls back to
// the CONFIG_PATH environment variable, then to "config.yaml". A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}

	// Sanitize and validate path to prevent path traversal
	path = sanitizeConfigPath(path)

	data, err := os.ReadFile(path) //#nosec G304 -- config path is sanitized above
	if err != nil {
		if os.IsNotExist(err) {
			// No config file, use defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints and normalizes derived
// values. The base URL always carries a trailing slash so identifiers
// can be appended directly.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "file", "memory", "redis":
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	if c.Storage.Type == "file" && c.Storage.Path == "" {
		return fmt.Errorf("storage path is required for the file backend")
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("server base_url must not be empty")
	}
	if !strings.HasSuffix(c.Server.BaseURL, "/") {
		c.Server.BaseURL += "/"
	}

	return nil
}

// sanitizeConfigPath cleans and validates a config file path
func sanitizeConfigPath(path string) string {
	// Clean the path to remove any . or .. components
	cleaned := filepath.Clean(path)

	// If path is absolute, use it as-is (operator explicitly set full path)
	// If relative, ensure it doesn't escape the current directory
	if !filepath.IsAbs(cleaned) {
		for len(cleaned) > 2 && cleaned[:3] == "../" {
			cleaned = cleaned[3:]
		}
		if cleaned == ".." {
			cleaned = "config.yaml"
		}
	}

	return cleaned
}
