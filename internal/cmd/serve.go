package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/pagebook/internal/auth"
	"github.com/Iron-Ham/pagebook/internal/event"
	"github.com/Iron-Ham/pagebook/internal/server"
	"github.com/Iron-Ham/pagebook/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve pages over HTTP",
	Long: `Serve the page store over HTTP until interrupted.

Clients exchange the admission token for a session:

  curl -X POST localhost:8420/api/v1/auth -d '{"token":"..."}'

and send the session as a bearer token. Page versions travel in the ETag
and If-Match headers.

With the file backend, edits made to page files by other programs are
picked up while serving and advance the page's version.

The data directory stays locked while serving, so other pagebook commands
against it fail until the server stops.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveAddr string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.address)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := openWorkspace(ctx)
	if err != nil {
		return err
	}
	defer ws.Close()

	sessions, err := auth.NewSessions(ws.cfg.Auth.Token, ws.logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ws.bus.Subscribe(event.TypePageConflict, func(e event.Event) {
		if c, ok := e.(event.PageConflictEvent); ok {
			fmt.Fprintf(out, "%s %s\n", warningStyle.Render("conflict:"), c.Title)
		}
	})

	w, err := startWatcher(ctx, ws, out)
	if err != nil {
		return err
	}
	if w != nil {
		defer w.Stop()
	}

	cfg := server.Config{
		Address:      ws.cfg.Server.Address,
		ReadTimeout:  ws.cfg.Server.ReadTimeout(),
		WriteTimeout: ws.cfg.Server.WriteTimeout(),
		MaxBodyBytes: ws.cfg.Server.MaxBodyBytes,
	}
	if serveAddr != "" {
		cfg.Address = serveAddr
	}

	fmt.Fprintf(out, "%s %s\n", titleStyle.Render("Serving pages on"), cfg.Address)
	fmt.Fprintf(out, "%s %s (%d pages, %s backend)\n",
		mutedStyle.Render("data:"), ws.dataDir, ws.store.Len(), ws.cfg.Store.Backend)

	srv := server.New(cfg, ws.store, sessions, ws.logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("%s %w", errorStyle.Render("server failed:"), err)
	}
	fmt.Fprintln(out, mutedStyle.Render("Server stopped"))
	return nil
}

// startWatcher follows external edits of the file backend. It returns nil
// when watching is disabled or the backend has no page files.
func startWatcher(ctx context.Context, ws *workspace, out io.Writer) (*watch.Watcher, error) {
	if !ws.cfg.Watch.Enabled {
		return nil, nil
	}
	dir, ok := ws.dir()
	if !ok {
		ws.logger.Debug("watch skipped: backend has no page files", "backend", ws.cfg.Store.Backend)
		return nil, nil
	}

	w, err := watch.New(dir, ws.store,
		watch.WithDebounce(ws.cfg.Watch.Debounce()),
		watch.WithLogger(ws.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to watch pages: %w", err)
	}
	w.SetRefreshCallback(func(title string) {
		fmt.Fprintf(out, "%s %s\n", mutedStyle.Render("external edit:"), title)
	})
	w.Start(ctx)
	return w, nil
}
