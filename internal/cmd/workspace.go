package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/pagebook/internal/auth"
	"github.com/Iron-Ham/pagebook/internal/config"
	"github.com/Iron-Ham/pagebook/internal/event"
	"github.com/Iron-Ham/pagebook/internal/journal"
	"github.com/Iron-Ham/pagebook/internal/logging"
	"github.com/Iron-Ham/pagebook/internal/medium"
	"github.com/Iron-Ham/pagebook/internal/page"
	"github.com/Iron-Ham/pagebook/internal/service"
)

// tokenEnv holds the admission credential when --token is not given.
const tokenEnv = "PAGEBOOK_TOKEN"

// workspace is everything a command needs to touch pages: the loaded
// configuration, the locked data directory and the store opened on it.
type workspace struct {
	cfg     *config.Config
	dataDir string
	logger  *logging.Logger
	lock    *medium.FileLock
	medium  medium.Medium
	bus     *event.Bus
	store   *page.Store
	journal *journal.Journal
}

// openWorkspace loads configuration, takes the data directory lock and
// opens the store. The caller must Close the workspace.
func openWorkspace(ctx context.Context) (_ *workspace, err error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	dataDir := cfg.Store.ResolveDataDir(cwd)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	ws := &workspace{cfg: cfg, dataDir: dataDir}
	defer func() {
		if err != nil {
			ws.Close()
		}
	}()

	if ws.logger, err = newLogger(cfg, dataDir); err != nil {
		return nil, err
	}

	ws.lock = medium.NewFileLock(dataDir)
	acquired, err := ws.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock data directory: %w", err)
	}
	if !acquired {
		holder := "another process"
		if pid, ok := ws.lock.Holder(); ok {
			holder = fmt.Sprintf("process %d", pid)
		}
		ws.lock = nil
		return nil, fmt.Errorf("data directory %s is in use by %s (is pagebook serve running?)", dataDir, holder)
	}

	mopts := cfg.Store.MediumOptions(cwd)
	mopts.Logger = ws.logger
	m, err := medium.Open(mopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	ws.medium = m

	ws.bus = event.NewBus(ws.logger)
	ws.store, err = page.Open(ctx, ws.medium,
		page.WithMedium(ws.medium),
		page.WithPublisher(ws.bus),
		page.WithLogger(ws.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}

	if cfg.Journal.Enabled {
		ws.journal, err = journal.Open(dataDir, journal.Author{
			Name:  cfg.Journal.AuthorName,
			Email: cfg.Journal.AuthorEmail,
		}, ws.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		ws.journal.Attach(ws.bus)
	}

	ws.logger.Debug("workspace opened",
		"data_dir", dataDir,
		"backend", cfg.Store.Backend,
		"pages", ws.store.Len())
	return ws, nil
}

// newLogger writes rotated JSON logs into the data directory, or discards
// them when logging is disabled.
func newLogger(cfg *config.Config, dataDir string) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	logger, err := logging.NewLoggerWithRotation(dataDir, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	return logger, nil
}

// session admits the caller and returns a Service bound to the admitted
// gate. The credential comes from --token, then $PAGEBOOK_TOKEN, then an
// interactive prompt.
func (ws *workspace) session(cmd *cobra.Command) (*service.Service, error) {
	gate, err := auth.NewGate(ws.cfg.Auth.Token, ws.logger)
	if err != nil {
		return nil, err
	}

	credential := flagToken
	if credential == "" {
		credential = os.Getenv(tokenEnv)
	}

	if credential != "" {
		if ok, err := gate.Authenticate(credential); !ok {
			return nil, err
		}
	} else if err := auth.Admit(gate, secretReader(cmd), ws.cfg.Auth.MaxAttempts); err != nil {
		return nil, err
	}
	return service.New(ws.store, gate, ws.logger), nil
}

func secretReader(cmd *cobra.Command) auth.ReadSecretFunc {
	if f, ok := cmd.InOrStdin().(*os.File); ok {
		return auth.TerminalReader(f, cmd.ErrOrStderr())
	}
	return auth.LineReader(cmd.InOrStdin(), cmd.ErrOrStderr())
}

// Close releases everything openWorkspace acquired, in reverse order.
func (ws *workspace) Close() {
	if ws.journal != nil {
		ws.journal.Detach()
	}
	if ws.medium != nil {
		if err := ws.medium.Close(); err != nil {
			ws.logger.Warn("failed to close store", "error", err)
		}
	}
	if ws.lock != nil {
		_ = ws.lock.Unlock()
	}
	if ws.logger != nil {
		_ = ws.logger.Close()
	}
}

// dir returns the file backend, if that is what the workspace uses.
func (ws *workspace) dir() (*medium.Dir, bool) {
	d, ok := ws.medium.(*medium.Dir)
	return d, ok
}
