// Package main runs a single monitoring sweep and prints its report.
//
// Passing --sweep-id retries a sweep: products already updated by that sweep
// are not appended to twice.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"price-monitor/internal/app"
	"price-monitor/internal/config"
	"price-monitor/internal/logging"
	"price-monitor/internal/reporting"
	"price-monitor/internal/sweep"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		logrus.WithError(err).Fatal("load .env")
	}
	cfg := config.Load()

	sweepID := flag.String("sweep-id", "", "Reuse a sweep ID to retry an interrupted sweep")
	outputDir := flag.String("output-dir", "", "Write SWEEP_<id>.md and SWEEP_<id>.csv to this directory")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (optional)")
	flag.BoolVar(&cfg.UseMemory, "use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	flag.BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "Log notifications instead of sending email")
	flag.IntVar(&cfg.SweepConcurrency, "concurrency", cfg.SweepConcurrency, "Max products processed at once (0 = unbounded)")
	flag.Parse()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *sweepID, *outputDir, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, sweepID, outputDir string, logger *logrus.Logger) error {
	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	orch := app.NewOrchestrator(cfg, stores, app.NewScraper(cfg), app.NewSender(cfg, logger), logger)

	var report *sweep.Report
	if sweepID != "" {
		report, err = orch.RunWithID(ctx, sweepID)
	} else {
		report, err = orch.Run(ctx)
	}
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	r, err := reporting.NewGenerator(stores.Observations).Generate(ctx, report)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	md := reporting.RenderMarkdown(r)
	fmt.Print(md)

	if outputDir != "" {
		if err := writeReport(outputDir, r, md); err != nil {
			return err
		}
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("sweep %s interrupted, %d products cancelled", report.SweepID, report.Cancelled)
	}
	return nil
}

func writeReport(dir string, r *reporting.Report, md string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	csv, err := reporting.RenderCSV(r)
	if err != nil {
		return fmt.Errorf("render csv: %w", err)
	}

	base := filepath.Join(dir, "SWEEP_"+r.SweepID)
	if err := os.WriteFile(base+".md", []byte(md), 0o644); err != nil {
		return fmt.Errorf("write markdown: %w", err)
	}
	if err := os.WriteFile(base+".csv", []byte(csv), 0o644); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Report written to %s.md and %s.csv\n", base, base)
	return nil
}
