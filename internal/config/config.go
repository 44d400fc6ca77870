package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Iron-Ham/pagebook/internal/medium"
	"github.com/spf13/viper"
)

// Config represents the complete pagebook configuration
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Journal JournalConfig `mapstructure:"journal"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig selects where pages are persisted
type StoreConfig struct {
	// Backend is the persistence medium: "memory", "file", or "sqlite" (default: "file")
	Backend string `mapstructure:"backend"`
	// DataDir is the directory holding pages, the index, the lock file and logs.
	// Empty means the platform data directory. Supports ~ expansion.
	DataDir string `mapstructure:"data_dir"`
	// SQLiteFile is the database file for the sqlite backend, relative to DataDir
	// unless absolute (default: "pagebook.db")
	SQLiteFile string `mapstructure:"sqlite_file"`
}

// AuthConfig controls the admission gate
type AuthConfig struct {
	// Token is the shared secret a session must present before touching pages
	Token string `mapstructure:"token"`
	// MaxAttempts bounds interactive token prompts; 0 means unbounded (default: 3)
	MaxAttempts int `mapstructure:"max_attempts"`
}

// JournalConfig controls the git history of the pages directory
type JournalConfig struct {
	// Enabled records every mutation as a commit (file backend only, default: false)
	Enabled bool `mapstructure:"enabled"`
	// AuthorName is the commit author name (default: "pagebook")
	AuthorName string `mapstructure:"author_name"`
	// AuthorEmail is the commit author email (default: "pagebook@localhost")
	AuthorEmail string `mapstructure:"author_email"`
}

// WatchConfig controls adoption of edits made outside pagebook
type WatchConfig struct {
	// Enabled watches the pages directory while serving (file backend only, default: true)
	Enabled bool `mapstructure:"enabled"`
	// DebounceMs coalesces bursts of writes to the same file (default: 100)
	DebounceMs int `mapstructure:"debounce_ms"`
}

// ServerConfig controls the HTTP API served by `pagebook serve`
type ServerConfig struct {
	// Address is the listen address (default: "127.0.0.1:8420")
	Address string `mapstructure:"address"`
	// ReadTimeoutSeconds bounds reading a request (default: 15)
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds"`
	// WriteTimeoutSeconds bounds writing a response (default: 15)
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
	// MaxBodyBytes caps request bodies (default: 8MB)
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Enabled writes logs to {data_dir}/pagebook.log; otherwise they go to stderr (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated log files (default: false)
	Compress bool `mapstructure:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:    medium.BackendFile,
			DataDir:    "",
			SQLiteFile: medium.DefaultSQLiteFile,
		},
		Auth: AuthConfig{
			Token:       "changeme",
			MaxAttempts: 3,
		},
		Journal: JournalConfig{
			Enabled:     false,
			AuthorName:  "pagebook",
			AuthorEmail: "pagebook@localhost",
		},
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMs: 100,
		},
		Server: ServerConfig{
			Address:             "127.0.0.1:8420",
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 15,
			MaxBodyBytes:        8 << 20, // 8MB
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
	}
}

// ResolveDataDir returns the absolute data directory.
// An empty DataDir resolves to DataDir(); relative paths resolve against baseDir.
func (s *StoreConfig) ResolveDataDir(baseDir string) string {
	if s.DataDir == "" {
		return DataDir()
	}

	path := s.DataDir

	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// MediumOptions converts the store section into options for medium.Open.
func (s *StoreConfig) MediumOptions(baseDir string) medium.Options {
	return medium.Options{
		Backend:    s.Backend,
		DataDir:    s.ResolveDataDir(baseDir),
		SQLiteFile: s.SQLiteFile,
	}
}

// Debounce returns the watcher debounce as a time.Duration
func (c *WatchConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// ReadTimeout returns the server read timeout as a time.Duration
func (c *ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the server write timeout as a time.Duration
func (c *ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Store defaults
	viper.SetDefault("store.backend", defaults.Store.Backend)
	viper.SetDefault("store.data_dir", defaults.Store.DataDir)
	viper.SetDefault("store.sqlite_file", defaults.Store.SQLiteFile)

	// Auth defaults
	viper.SetDefault("auth.token", defaults.Auth.Token)
	viper.SetDefault("auth.max_attempts", defaults.Auth.MaxAttempts)

	// Journal defaults
	viper.SetDefault("journal.enabled", defaults.Journal.Enabled)
	viper.SetDefault("journal.author_name", defaults.Journal.AuthorName)
	viper.SetDefault("journal.author_email", defaults.Journal.AuthorEmail)

	// Watch defaults
	viper.SetDefault("watch.enabled", defaults.Watch.Enabled)
	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)

	// Server defaults
	viper.SetDefault("server.address", defaults.Server.Address)
	viper.SetDefault("server.read_timeout_seconds", defaults.Server.ReadTimeoutSeconds)
	viper.SetDefault("server.write_timeout_seconds", defaults.Server.WriteTimeoutSeconds)
	viper.SetDefault("server.max_body_bytes", defaults.Server.MaxBodyBytes)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults on error
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the configuration directory path
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pagebook")
	}
	// Fall back to ~/.config/pagebook
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pagebook"
	}
	return filepath.Join(home, ".config", "pagebook")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the default data directory path
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "pagebook")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pagebook"
	}
	return filepath.Join(home, ".local", "share", "pagebook")
}
