package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Iron-Ham/pagebook/internal/medium"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Store
	if cfg.Store.Backend != medium.BackendFile {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, medium.BackendFile)
	}
	if cfg.Store.DataDir != "" {
		t.Errorf("Store.DataDir = %q, want empty", cfg.Store.DataDir)
	}
	if cfg.Store.SQLiteFile != medium.DefaultSQLiteFile {
		t.Errorf("Store.SQLiteFile = %q, want %q", cfg.Store.SQLiteFile, medium.DefaultSQLiteFile)
	}

	// Auth
	if cfg.Auth.Token == "" {
		t.Error("Auth.Token should have a default")
	}
	if cfg.Auth.MaxAttempts != 3 {
		t.Errorf("Auth.MaxAttempts = %d, want 3", cfg.Auth.MaxAttempts)
	}

	// Journal
	if cfg.Journal.Enabled {
		t.Error("Journal.Enabled should be false by default")
	}
	if cfg.Journal.AuthorName != "pagebook" {
		t.Errorf("Journal.AuthorName = %q, want %q", cfg.Journal.AuthorName, "pagebook")
	}

	// Watch
	if !cfg.Watch.Enabled {
		t.Error("Watch.Enabled should be true by default")
	}
	if cfg.Watch.DebounceMs != 100 {
		t.Errorf("Watch.DebounceMs = %d, want 100", cfg.Watch.DebounceMs)
	}

	// Server
	if cfg.Server.Address != "127.0.0.1:8420" {
		t.Errorf("Server.Address = %q, want %q", cfg.Server.Address, "127.0.0.1:8420")
	}
	if cfg.Server.MaxBodyBytes != 8<<20 {
		t.Errorf("Server.MaxBodyBytes = %d, want %d", cfg.Server.MaxBodyBytes, 8<<20)
	}

	// Logging
	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.MaxSizeMB != 10 {
		t.Errorf("Logging.MaxSizeMB = %d, want 10", cfg.Logging.MaxSizeMB)
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()

	if got := cfg.Watch.Debounce(); got != 100*time.Millisecond {
		t.Errorf("Watch.Debounce() = %v, want 100ms", got)
	}
	if got := cfg.Server.ReadTimeout(); got != 15*time.Second {
		t.Errorf("Server.ReadTimeout() = %v, want 15s", got)
	}

	cfg.Server.WriteTimeoutSeconds = 2
	if got := cfg.Server.WriteTimeout(); got != 2*time.Second {
		t.Errorf("Server.WriteTimeout() = %v, want 2s", got)
	}
}

func TestStoreConfig_ResolveDataDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		name    string
		dataDir string
		baseDir string
		want    string
	}{
		{"absolute", "/srv/pages", "/work", "/srv/pages"},
		{"relative", "notes", "/work", "/work/notes"},
		{"tilde", "~/notes", "/work", filepath.Join(home, "notes")},
		{"bare tilde", "~", "/work", home},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := StoreConfig{DataDir: tt.dataDir}
			if got := s.ResolveDataDir(tt.baseDir); got != tt.want {
				t.Errorf("ResolveDataDir() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("empty uses data home", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "/custom/data")
		s := StoreConfig{}
		if got, want := s.ResolveDataDir("/work"), "/custom/data/pagebook"; got != want {
			t.Errorf("ResolveDataDir() = %q, want %q", got, want)
		}
	})
}

func TestStoreConfig_MediumOptions(t *testing.T) {
	s := StoreConfig{Backend: medium.BackendSQLite, DataDir: "/srv/pages", SQLiteFile: "book.db"}

	opts := s.MediumOptions("/work")
	if opts.Backend != medium.BackendSQLite {
		t.Errorf("Backend = %q, want %q", opts.Backend, medium.BackendSQLite)
	}
	if opts.DataDir != "/srv/pages" {
		t.Errorf("DataDir = %q, want %q", opts.DataDir, "/srv/pages")
	}
	if opts.SQLiteFile != "book.db" {
		t.Errorf("SQLiteFile = %q, want %q", opts.SQLiteFile, "book.db")
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		result := ConfigDir()
		expected := "/custom/config/pagebook"
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		result := ConfigDir()

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, ".config", "pagebook")
		if result != expected {
			t.Errorf("ConfigDir() = %q, want %q", result, expected)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	result := ConfigFile()
	expected := "/custom/config/pagebook/config.yaml"
	if result != expected {
		t.Errorf("ConfigFile() = %q, want %q", result, expected)
	}
}

func TestDataDir(t *testing.T) {
	t.Run("with XDG_DATA_HOME", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "/custom/data")
		if got, want := DataDir(), "/custom/data/pagebook"; got != want {
			t.Errorf("DataDir() = %q, want %q", got, want)
		}
	})

	t.Run("without XDG_DATA_HOME", func(t *testing.T) {
		t.Setenv("XDG_DATA_HOME", "")
		home, _ := os.UserHomeDir()
		if got, want := DataDir(), filepath.Join(home, ".local", "share", "pagebook"); got != want {
			t.Errorf("DataDir() = %q, want %q", got, want)
		}
	})
}

func TestGet(t *testing.T) {
	// Set defaults in viper first (normally done by cmd init)
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}

	if cfg.Store.Backend != medium.BackendFile {
		t.Errorf("Get().Store.Backend = %q, want %q", cfg.Store.Backend, medium.BackendFile)
	}
	if cfg.Server.Address != Default().Server.Address {
		t.Errorf("Get().Server.Address = %q, want %q", cfg.Server.Address, Default().Server.Address)
	}
}
