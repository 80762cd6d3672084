package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daniacca/bouncefield/internal/bounce"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := loadServerConfigFromProcess()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := NewLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("Server error: %v", err)
	}
}

// run serves until ctx is cancelled or the listener fails, then shuts down
// gracefully: in-flight requests finish, simulations stop and notifiers close.
func run(ctx context.Context, cfg ServerConfig, logger *Logger) error {
	physics, err := bounce.LoadConfig(cfg.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading physics config: %w", err)
	}
	if cfg.ConfigFile != "" {
		logger.Infof("Loaded physics config: path=%s", cfg.ConfigFile)
	}

	srv := NewServer(logger, physics, cfg.SnapshotDir, cfg.SnapshotEveryTicks)

	if cfg.DefaultSimID != "" {
		field := bounce.Field{Width: cfg.DefaultWidth, Height: cfg.DefaultHeight}
		if err := srv.CreateStartupSimulation(bounce.SimulationID(cfg.DefaultSimID), field, cfg.AutoStart); err != nil {
			_ = srv.Close()
			return err
		}
		logger.Infof("Startup simulation ready: sim_id=%s width=%v height=%v", cfg.DefaultSimID, field.Width, field.Height)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("bounce-server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if closeErr := srv.Close(); closeErr != nil {
		logger.Errorf("Error closing server: %v", closeErr)
	}
	return err
}
