// Package config handles loading and managing mamvault configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Data    DataConfig    `toml:"data"`
	Server  ServerConfig  `toml:"server"`
	Archive ArchiveConfig `toml:"archive"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// DataConfig holds data storage configuration.
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	APIPort      int    `toml:"api_port"`       // HTTP server port (default: 8080)
	APIKey       string `toml:"api_key"`        // API authentication key
	MCPEnabled   bool   `toml:"mcp_enabled"`    // Enable MCP server endpoint
	RateLimitQPS int    `toml:"rate_limit_qps"` // Per-server query rate limit
}

// ArchiveConfig holds query-engine and tracker configuration.
type ArchiveConfig struct {
	DefaultPageSize int    `toml:"default_page_size"` // page size when a query leaves max unset
	MaxPageSize     int    `toml:"max_page_size"`     // hard cap on requested page sizes
	IdleTimeout     string `toml:"idle_timeout"`      // Go duration, e.g. "1h"
	SweepSchedule   string `toml:"sweep_schedule"`    // cron expression for the idle sweep
}

// DefaultHome returns the default mamvault home directory.
// Respects MAMVAULT_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("MAMVAULT_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mamvault"
	}
	return filepath.Join(home, ".mamvault")
}

// Load reads the configuration from the specified file.
// If path is empty, uses the default location (~/.mamvault/config.toml).
func Load(path string) (*Config, error) {
	homeDir := DefaultHome()

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		// Defaults
		Data: DataConfig{
			DataDir: homeDir,
		},
		Server: ServerConfig{
			APIPort:      8080,
			MCPEnabled:   false,
			RateLimitQPS: 25,
		},
		Archive: ArchiveConfig{
			DefaultPageSize: 50,
			MaxPageSize:     250,
			IdleTimeout:     "1h",
			SweepSchedule:   "*/15 * * * *",
		},
	}

	// Config file is optional - use defaults if not present
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)

	return cfg, nil
}

// DatabasePath returns the path to the SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.DataDir, "mamvault.db")
}

// IdleTimeout parses the configured idle timeout.
func (c *Config) IdleTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Archive.IdleTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid idle_timeout %q: %w", c.Archive.IdleTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("idle_timeout %q must be positive", c.Archive.IdleTimeout)
	}
	return d, nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
