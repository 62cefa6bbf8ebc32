package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/stockdash/internal/api"
	"github.com/newthinker/stockdash/internal/logger"
	"github.com/newthinker/stockdash/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Initialize logger
	log := logger.Must(debug)
	defer log.Sync()

	c, err := buildComponents(log)
	if err != nil {
		return err
	}
	defer c.manager.Close()

	log.Info("starting stockdash server",
		zap.String("host", c.cfg.Server.Host),
		zap.Int("port", c.cfg.Server.Port),
		zap.String("backend", c.backend.BaseURL()),
		zap.String("price_source", c.cfg.Price.Source),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Directory and (when signed in) watchlists; failures leave the
	// dashboard usable with an error message.
	if err := c.manager.Initialize(ctx); err != nil {
		log.Warn("initial load incomplete", zap.Error(err))
	}

	var reg *metrics.Registry
	if c.cfg.Metrics.Enabled {
		reg = c.metrics
	}

	server, err := api.NewServer(api.Config{
		Host:        c.cfg.Server.Host,
		Port:        c.cfg.Server.Port,
		APIKey:      c.cfg.Server.APIKey,
		MetricsPath: c.cfg.Metrics.Path,
	}, api.Dependencies{
		Watchlists: c.manager,
		Session:    c.session,
		Market:     c.backend,
		Exporter:   c.exporter,
		Metrics:    reg,
	}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down stockdash server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
