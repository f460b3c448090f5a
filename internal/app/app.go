// Package app wires configuration into stores, scraper, notifier and the
// sweep orchestrator. It is shared by the server and the one-shot commands.
package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"price-monitor/internal/classify"
	"price-monitor/internal/config"
	"price-monitor/internal/logging"
	"price-monitor/internal/notify"
	"price-monitor/internal/observability"
	"price-monitor/internal/reconcile"
	"price-monitor/internal/scrape"
	"price-monitor/internal/storage"
	chstore "price-monitor/internal/storage/clickhouse"
	"price-monitor/internal/storage/memory"
	"price-monitor/internal/storage/migrations"
	pgstore "price-monitor/internal/storage/postgres"
	"price-monitor/internal/sweep"
)

// Stores holds the storage backends selected by configuration.
type Stores struct {
	Products     storage.ProductStore
	Observations storage.ObservationStore // nil when no analytics sink is configured

	closers []func()
}

// Close releases every opened connection.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStores connects to PostgreSQL and, if configured, ClickHouse and applies
// migrations. With UseMemory set, in-memory stores are returned instead.
func OpenStores(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (*Stores, error) {
	logger = logging.OrDiscard(logger)

	if cfg.UseMemory {
		logger.Info("using in-memory storage")
		return &Stores{
			Products:     memory.NewProductStore(),
			Observations: memory.NewObservationStore(),
		}, nil
	}

	stores := &Stores{}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	stores.closers = append(stores.closers, pool.Close)

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		stores.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}
	stores.Products = pgstore.NewProductStore(pool)

	if cfg.ClickhouseDSN == "" {
		logger.Warn("CLICKHOUSE_DSN not set, price observations will not be recorded")
		return stores, nil
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	stores.closers = append(stores.closers, func() {
		if err := conn.Close(); err != nil {
			logger.WithError(err).Warn("close clickhouse connection")
		}
	})
	stores.Observations = chstore.NewObservationStore(conn)

	return stores, nil
}

// NewScraper creates the HTTP scraper.
func NewScraper(cfg config.Config) *scrape.HTTPScraper {
	return scrape.NewHTTPScraper(scrape.HTTPOptions{
		RatePerSecond: cfg.ScrapeRatePerSec,
		UserAgent:     cfg.UserAgent,
	})
}

// NewSender returns a LogSender in dry-run mode and an SMTPSender otherwise.
func NewSender(cfg config.Config, logger logrus.FieldLogger) notify.Sender {
	if cfg.DryRun {
		return notify.NewLogSender(logger)
	}
	return notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

// NewClassifier creates a classifier with the configured drop thresholds.
func NewClassifier(cfg config.Config) *classify.Classifier {
	return classify.New(classify.Thresholds{
		DropPercent:  cfg.DropPercent,
		DropAbsolute: cfg.DropAbsolute,
	})
}

// NewOrchestrator assembles a sweep orchestrator.
func NewOrchestrator(cfg config.Config, stores *Stores, scraper scrape.Scraper, sender notify.Sender, logger logrus.FieldLogger) *sweep.Orchestrator {
	return sweep.New(sweep.Options{
		Products:      stores.Products,
		Scraper:       scraper,
		Reconciler:    reconcile.New(NewClassifier(cfg)),
		Notifier:      notify.NewDispatcher(notify.MustNewRenderer(), sender, logger),
		Observations:  stores.Observations,
		Concurrency:   cfg.SweepConcurrency,
		ScrapeTimeout: cfg.ScrapeTimeout,
		Logger:        logger,
		Metrics:       observability.DefaultMetrics,
	})
}
