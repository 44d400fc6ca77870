package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	perrors "github.com/Iron-Ham/pagebook/internal/errors"
	"github.com/Iron-Ham/pagebook/internal/logging"
	"github.com/Iron-Ham/pagebook/internal/page"
)

func TestLogLevelFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want slog.Level
	}{
		{"nil", nil, slog.LevelDebug},
		{"plain", io.EOF, slog.LevelError},
		{"not found", perrors.NewNotFoundError("page", "x"), slog.LevelWarn},
		{"wrapped conflict", perrors.Wrap(perrors.NewConflictError("x", "1-a", "2-a"), "save"), slog.LevelWarn},
		{"invalid", perrors.NewValidationError("bad title"), slog.LevelWarn},
		{"storage", perrors.NewStorageError("put page", "x", io.ErrShortWrite), slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := logLevelFor(tt.err); got != tt.want {
				t.Errorf("logLevelFor(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteStoreError_LogsBySeverity(t *testing.T) {
	dir := t.TempDir()
	logger, err := logging.NewLogger(dir, logging.LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	s := New(DefaultConfig(), page.NewStore(), nil, logger)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/pages/Missing", nil)
	s.writeStoreError(httptest.NewRecorder(), req, perrors.NewNotFoundError("page", "Missing"))

	rec := httptest.NewRecorder()
	s.writeStoreError(rec, req, perrors.NewStorageError("put page", "Missing", io.ErrShortWrite))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "short write") {
		t.Errorf("storage detail leaked to the client: %s", rec.Body.String())
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, logging.LogFileName))
	if err != nil {
		t.Fatal(err)
	}

	var levels []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		if entry["msg"] != "request failed" {
			continue
		}
		if entry["path"] != "/api/v1/pages/Missing" {
			t.Errorf("path = %v", entry["path"])
		}
		levels = append(levels, entry["level"].(string))
	}
	if got := strings.Join(levels, ","); got != "WARN,ERROR" {
		t.Errorf("logged levels = %q, want %q", got, "WARN,ERROR")
	}
}
