// Package main runs the price monitor as a long-lived service:
// - Scheduler: a sweep every SWEEP_INTERVAL, overlapping runs are skipped
// - HTTP: /health, /metrics, /status and POST /sweep for on-demand sweeps
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"price-monitor/internal/app"
	"price-monitor/internal/config"
	"price-monitor/internal/logging"
)

func main() {
	// Load .env file if exists
	if err := config.LoadEnvFile(); err != nil {
		logrus.WithError(err).Fatal("load .env")
	}
	cfg := config.Load()

	// Flags override env
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (optional)")
	flag.BoolVar(&cfg.UseMemory, "use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	flag.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Log notifications instead of sending email")
	flag.DurationVar(&cfg.SweepInterval, "interval", cfg.SweepInterval, "Sweep interval")
	flag.IntVar(&cfg.SweepConcurrency, "concurrency", cfg.SweepConcurrency, "Max products processed at once (0 = unbounded)")
	flag.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP address for health, metrics and status")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	flag.Parse()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithField("component", "server")

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		log.WithError(err).Fatal("open stores")
	}
	defer stores.Close()

	orch := app.NewOrchestrator(cfg, stores, app.NewScraper(cfg), app.NewSender(cfg, logger), logger)
	server := NewServer(orch, cfg.SweepInterval, logger)

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Warn("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("HTTP server error")
			cancel()
		}
	}()

	err = server.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown")
	}
	shutdownCancel()

	// In-flight sweeps finish their units before returning
	server.Wait()
	close(done)

	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("server error")
	}
	log.Info("shutdown complete")
}
