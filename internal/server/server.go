package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Iron-Ham/pagebook/internal/auth"
	"github.com/Iron-Ham/pagebook/internal/logging"
	"github.com/Iron-Ham/pagebook/internal/page"
)

const (
	healthPath      = "/api/v1/health"
	shutdownTimeout = 5 * time.Second
	idleTimeout     = 120 * time.Second
)

// Config holds HTTP server settings.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Address:      "127.0.0.1:8420",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		MaxBodyBytes: 8 << 20,
	}
}

// Server serves one page store to any number of admitted sessions.
type Server struct {
	cfg      Config
	store    *page.Store
	sessions *auth.Sessions
	logger   *logging.Logger
	handler  http.Handler
}

// New builds a Server. Sessions are created by POST /api/v1/auth and
// presented as bearer tokens on every other route.
func New(cfg Config, store *page.Store, sessions *auth.Sessions, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s := &Server{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		logger:   logger.WithComponent("server"),
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.handler = chain(mux,
		LoggingMiddleware(s.logger),
		RecoveryMiddleware(s.logger),
		BodyLimitMiddleware(cfg.MaxBodyBytes),
	)
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+healthPath, s.handleHealth)

	mux.HandleFunc("POST /api/v1/auth", s.handleLogin)
	mux.HandleFunc("DELETE /api/v1/auth", s.authed(s.handleLogout))

	mux.HandleFunc("GET /api/v1/pages", s.authed(s.handleList))
	mux.HandleFunc("POST /api/v1/pages", s.authed(s.handleCreate))
	mux.HandleFunc("GET /api/v1/pages/{title}", s.authed(s.handleGet))
	mux.HandleFunc("PUT /api/v1/pages/{title}", s.authed(s.handleSave))
	mux.HandleFunc("DELETE /api/v1/pages/{title}", s.authed(s.handleDelete))
	mux.HandleFunc("POST /api/v1/pages/{title}/rename", s.authed(s.handleRename))

	mux.HandleFunc("GET /api/v1/notebook", s.authed(s.handleExport))
	mux.HandleFunc("POST /api/v1/notebook", s.authed(s.handleImport))
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe listens on the configured address and serves until ctx is
// canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts down
// gracefully and ends every session.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("server started", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		s.sessions.CloseAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.sessions.CloseAll()
	s.logger.Info("server stopped")
	return err
}
