// Package config handles loading and managing retext configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the retext configuration.
type Config struct {
	Data   DataConfig   `toml:"data"`
	Server ServerConfig `toml:"server"`
	Import ImportConfig `toml:"import"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// DataConfig holds data storage configuration.
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     int    `toml:"port"`      // HTTP server port (default: 8080)
	BindAddr string `toml:"bind_addr"` // Bind address (default: 127.0.0.1)

	// PasswordHash is the pre-computed bcrypt hash the login form is checked
	// against. With no hash configured the server refuses to start.
	PasswordHash string `toml:"password_hash"`

	SessionTTLMinutes int `toml:"session_ttl_minutes"` // default: 720 (12h)
	PerPage           int `toml:"per_page"`             // search page size (default: 50)
}

// ImportConfig holds ingestion configuration.
type ImportConfig struct {
	BatchSize int `toml:"batch_size"` // records per commit (default: 1000)

	// WatchDir plus Schedule enable scheduled auto-import under `serve`:
	// every run scans WatchDir for *.xml backups and imports each one.
	// Fingerprint dedup makes repeated imports of the same backup a no-op.
	WatchDir string `toml:"watch_dir"`
	Schedule string `toml:"schedule"` // cron expression, e.g. "30 3 * * *"
}

// DefaultHome returns the default retext home directory.
// Respects RETEXT_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("RETEXT_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".retext"
	}
	return filepath.Join(home, ".retext")
}

// Load reads the configuration from the specified file. If path is empty,
// uses the default location (<home>/config.toml). If home is empty, the
// default home directory applies.
func Load(path, home string) (*Config, error) {
	homeDir := home
	if homeDir == "" {
		homeDir = DefaultHome()
	}

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			DataDir: homeDir,
		},
		Server: ServerConfig{
			Port:              8080,
			BindAddr:          "127.0.0.1",
			SessionTTLMinutes: 720,
			PerPage:           50,
		},
		Import: ImportConfig{
			BatchSize: 1000,
		},
	}

	// Config file is optional - use defaults if not present
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnv()
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)
	cfg.Import.WatchDir = expandPath(cfg.Import.WatchDir)
	cfg.applyEnv()

	return cfg, nil
}

// applyEnv lets the password hash come from the environment, which keeps it
// out of the config file in container deployments.
func (c *Config) applyEnv() {
	if h := os.Getenv("RETEXT_PASSWORD_HASH"); h != "" {
		c.Server.PasswordHash = h
	}
}

// EnsureHomeDir creates the data directory if it does not exist.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.Data.DataDir, 0755)
}

// DatabasePath returns the path to the SQLite database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Data.DataDir, "retext.db")
}

// ConfigFilePath returns the path of the config file in the home directory.
func (c *Config) ConfigFilePath() string {
	return filepath.Join(c.HomeDir, "config.toml")
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
