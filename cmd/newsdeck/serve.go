package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsdeck/internal/server"
	"github.com/fyrsmithlabs/newsdeck/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the latest persisted snapshot over HTTP",
	Long: `Serve the most recently generated snapshot artifact.

The server never regenerates inline with a request; run "newsdeck generate"
out-of-band (manually or on a schedule) to refresh the artifact. Starting
without an existing artifact is a fatal error.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The store is only needed for the login callback's user upsert; skip
	// the connection entirely when login is disabled.
	var users server.UserStore
	if cfg.Auth.ClientID != "" {
		st, err := store.Open(ctx, cfg.Store.URI.Value(), cfg.Store.Database, logger)
		if err != nil {
			return err
		}
		defer func() {
			_ = st.Close(context.Background())
		}()
		users = st
	}

	srv, err := server.NewServer(cfg, users, logger.Named("server"))
	if err != nil {
		return err
	}

	logger.Info("serving snapshot",
		zap.Int("port", cfg.Server.Port),
		zap.String("artifact", cfg.Pipeline.ArtifactPath),
		zap.Bool("login_enabled", cfg.Auth.ClientID != ""),
	)

	if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}
