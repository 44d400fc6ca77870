package config

import (
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/Iron-Ham/pagebook/internal/medium"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "store.backend")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateAuth()...)
	errors = append(errors, c.validateJournal()...)
	errors = append(errors, c.validateWatch()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(medium.Backends(), c.Store.Backend) {
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Value:   c.Store.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(medium.Backends(), ", ")),
		})
	}

	if strings.ContainsRune(c.Store.DataDir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "store.data_dir",
			Value:   c.Store.DataDir,
			Message: "path contains invalid null character",
		})
	}

	// Most filesystems cap paths around 4096
	const maxPathLength = 4096
	if len(c.Store.DataDir) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   "store.data_dir",
			Value:   c.Store.DataDir,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	if c.Store.Backend == medium.BackendSQLite && strings.TrimSpace(c.Store.SQLiteFile) == "" {
		errors = append(errors, ValidationError{
			Field:   "store.sqlite_file",
			Value:   c.Store.SQLiteFile,
			Message: "required when store.backend is sqlite",
		})
	}

	return errors
}

func (c *Config) validateAuth() []ValidationError {
	var errors []ValidationError

	if c.Auth.Token == "" {
		errors = append(errors, ValidationError{
			Field:   "auth.token",
			Value:   "",
			Message: "must not be empty",
		})
	}

	if c.Auth.MaxAttempts < 0 {
		errors = append(errors, ValidationError{
			Field:   "auth.max_attempts",
			Value:   c.Auth.MaxAttempts,
			Message: "must be non-negative (0 means unbounded)",
		})
	}

	return errors
}

func (c *Config) validateJournal() []ValidationError {
	var errors []ValidationError

	if !c.Journal.Enabled {
		return errors
	}

	// The journal versions the pages directory, which only the file backend has
	if c.Store.Backend != medium.BackendFile {
		errors = append(errors, ValidationError{
			Field:   "journal.enabled",
			Value:   c.Journal.Enabled,
			Message: "requires store.backend to be file",
		})
	}

	if strings.TrimSpace(c.Journal.AuthorName) == "" {
		errors = append(errors, ValidationError{
			Field:   "journal.author_name",
			Value:   c.Journal.AuthorName,
			Message: "must not be empty when the journal is enabled",
		})
	}

	if c.Journal.AuthorEmail != "" && !strings.Contains(c.Journal.AuthorEmail, "@") {
		errors = append(errors, ValidationError{
			Field:   "journal.author_email",
			Value:   c.Journal.AuthorEmail,
			Message: "must be an email address",
		})
	}

	return errors
}

func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError

	if c.Watch.DebounceMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: "must be non-negative",
		})
	}

	const maxDebounceMs = 60000 // 1 minute
	if c.Watch.DebounceMs > maxDebounceMs {
		errors = append(errors, ValidationError{
			Field:   "watch.debounce_ms",
			Value:   c.Watch.DebounceMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxDebounceMs),
		})
	}

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if _, port, err := net.SplitHostPort(c.Server.Address); err != nil || port == "" {
		errors = append(errors, ValidationError{
			Field:   "server.address",
			Value:   c.Server.Address,
			Message: "must be host:port",
		})
	}

	if c.Server.ReadTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.read_timeout_seconds",
			Value:   c.Server.ReadTimeoutSeconds,
			Message: "must be positive",
		})
	}

	if c.Server.WriteTimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.write_timeout_seconds",
			Value:   c.Server.WriteTimeoutSeconds,
			Message: "must be positive",
		})
	}

	if c.Server.MaxBodyBytes <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.max_body_bytes",
			Value:   c.Server.MaxBodyBytes,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
