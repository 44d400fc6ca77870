// Package logging provides structured logging for Pagebook.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// persistent context attributes. Every store mutation, conflict, and
// admission decision is logged so that lost-update reports can be
// reconstructed after the fact.
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. The [Logger] type
// uses slog internally, which is designed for concurrent access. The
// [RotatingWriter] type uses a mutex to protect file operations during
// rotation. Child loggers created via With* methods share the underlying
// writer.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/data", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("page saved", "title", "Intro", "version", tag.String())
//
// # Context Propagation
//
//	sessionLogger := logger.WithSession("7d3f...")
//	pageLogger := sessionLogger.WithPage("Intro")
//	pageLogger.Warn("version conflict")
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"version conflict","session_id":"7d3f...","page":"Intro"}
//
// # Log Rotation
//
//	cfg := logging.RotationConfig{MaxSizeMB: 10, MaxBackups: 3, Compress: true}
//	logger, err := logging.NewLoggerWithRotation("/path/to/data", "INFO", cfg)
//
// Rotated files are named pagebook.log.1, pagebook.log.2, etc., where .1 is
// the most recent backup. With compression enabled they become
// pagebook.log.1.gz, etc.
//
// # Testing
//
// Use [NopLogger] to discard all output.
package logging
