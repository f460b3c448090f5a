// Package main adds a listing to the monitor and subscribes an email to it.
//
// Usage:
//
//	track --url https://www.amazon.com/dp/B0EXAMPLE --email me@example.com
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"price-monitor/internal/app"
	"price-monitor/internal/config"
	"price-monitor/internal/logging"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		logrus.WithError(err).Fatal("load .env")
	}
	cfg := config.Load()

	url := flag.String("url", "", "Product listing URL (required)")
	email := flag.String("email", "", "Subscriber email")
	timeout := flag.Duration("timeout", time.Minute, "Overall timeout")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.Parse()

	if *url == "" {
		fmt.Fprintln(os.Stderr, "Error: --url is required")
		flag.Usage()
		os.Exit(2)
	}
	if cfg.PostgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn or POSTGRES_DSN is required")
		os.Exit(2)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	// Tracking only touches the product store
	cfg.ClickhouseDSN = ""
	cfg.UseMemory = false

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, nil)
	if err != nil {
		logger.WithError(err).Fatal("open stores")
	}
	defer stores.Close()

	res, err := app.Track(ctx, stores.Products, app.NewScraper(cfg), *url, *email, time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p := res.Product
	if res.Created {
		fmt.Printf("Now tracking %q at %s%s\n", p.Title, p.Currency, p.CurrentPrice.StringFixed(2))
	} else {
		fmt.Printf("Already tracking %q (%d samples, lowest %s%s)\n",
			p.Title, len(p.PriceHistory), p.Currency, p.LowestPrice.StringFixed(2))
	}
	fmt.Printf("Subscribers: %d\n", len(p.Subscribers))
}
