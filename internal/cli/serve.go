package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conorfennell/mamanxue/internal/session"
	"github.com/conorfennell/mamanxue/internal/sync"
	"github.com/conorfennell/mamanxue/internal/web"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	sessions := session.New(a.db, session.Options{
		NewCardLimit: a.cfg.Review.SessionNewCardLimit(),
		Logger:       a.logger,
	})
	syncer := sync.New(a.db, sync.Options{ReposDir: a.cfg.Sources.ReposDir, Logger: a.logger})

	srv, err := web.New(web.Options{
		DB:       a.db,
		Sessions: sessions,
		Syncer:   syncer,
		Logger:   a.logger,
		Version:  VersionString(),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server listening", "addr", a.cfg.Server.Addr, "db", a.cfg.Database.Path)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
