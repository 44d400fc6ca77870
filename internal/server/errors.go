package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Iron-Ham/pagebook/internal/errors"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// statusFor maps a store or admission error to an HTTP status and a short
// machine-readable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrPageNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errors.ErrVersionConflict):
		return http.StatusPreconditionFailed, "version_conflict"
	case errors.Is(err, errors.ErrPageExists):
		return http.StatusConflict, "page_exists"
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, errors.ErrAuthFailed),
		errors.Is(err, errors.ErrNotAdmitted),
		errors.Is(err, errors.ErrSessionClosed):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errors.ErrCanceled):
		return http.StatusServiceUnavailable, "canceled"
	case errors.Is(err, errors.ErrStorage):
		return http.StatusInternalServerError, "storage_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// logLevelFor maps an error's severity to the level the failed request is
// logged at. Errors that carry no severity are logged as errors.
func logLevelFor(err error) slog.Level {
	switch errors.GetSeverity(err) {
	case errors.SeverityDebug:
		return slog.LevelDebug
	case errors.SeverityInfo:
		return slog.LevelInfo
	case errors.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// writeStoreError logs err and writes it using statusFor. Messages of errors
// that are not user facing are replaced so storage paths do not leak to
// clients.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	s.logger.Log(logLevelFor(err), "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"code", code,
		"error", err,
	)
	message := "internal server error"
	if errors.IsUserFacing(err) {
		message = err.Error()
	}

	writeError(w, status, code, message)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Code:    status,
		Message: message,
	})
}
