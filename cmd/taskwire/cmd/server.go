package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tidelock/taskwire/pkg/taskwire/config"
	"github.com/tidelock/taskwire/pkg/taskwire/otel"
	"github.com/tidelock/taskwire/pkg/taskwire/server"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server [config-file]",
	Short: "Start the taskwire sync relay",
	Long: `Start the sync relay server.

The relay accepts WebSocket connections from devices, answers their
requests, and fans each mutation out to the account's other sessions.
Clients that cannot hold a WebSocket open can poll /v1/sync/status.

Examples:
  taskwire server
  taskwire server relay.hcl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	cfg := config.Default()
	if len(args) == 1 {
		cfg, err = config.Load(args[0])
		if err != nil {
			return err
		}
	}

	logger.Info("Starting taskwire relay",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.Duration("sweep_interval", cfg.SweepEvery()),
		zap.Duration("registration_ttl", cfg.KeepRegistered()),
	)

	provider := otel.NewProvider("taskwire-relay", version)

	listenerConfig := server.NewListenerConfig().
		WithLogger(logger).
		WithMetrics(provider)
	if cfg.Limits != nil {
		listenerConfig.
			WithQueueSize(cfg.Limits.QueueSize).
			WithFrameRate(cfg.Limits.FrameRate, cfg.Limits.FrameBurst)
	}
	listener, err := listenerConfig.Build()
	if err != nil {
		return fmt.Errorf("failed to build listener: %w", err)
	}

	// Stale device registrations are swept on a schedule so the
	// registry only reflects devices seen recently.
	sweeper := cron.New()
	_, err = sweeper.AddFunc(fmt.Sprintf("@every %s", cfg.SweepEvery()), func() {
		if removed := listener.Registry().Sweep(cfg.KeepRegistered(), time.Now()); removed > 0 {
			logger.Info("Swept stale device registrations", zap.Int("removed", removed))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule registry sweep: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	router := httprouter.New()
	listener.Routes(router)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainFor())
	defer cancel()

	if err := listener.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket shutdown incomplete", zap.Error(err))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}
