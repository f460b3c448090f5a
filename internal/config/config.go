// Package config provides runtime configuration values for the monitor.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds configuration for storage, sweeps, scraping and notification.
type Config struct {
	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool

	SweepInterval    time.Duration
	SweepConcurrency int
	ScrapeTimeout    time.Duration
	ScrapeRatePerSec float64
	UserAgent        string

	DropPercent  decimal.Decimal
	DropAbsolute decimal.Decimal

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	DryRun       bool

	HTTPAddr  string
	LogLevel  string
	LogFormat string

	parseErrs []error // malformed environment values, reported by Validate
}

// LoadEnvFile loads variables from the given .env files without overriding
// variables already set in the environment. Missing files are ignored.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envParser reads typed values and keeps every malformed one, so Validate
// can report them instead of silently using the default.
type envParser struct {
	errs []error
}

func (p *envParser) invalid(key, v string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s: invalid value %q: %w", key, v, err))
}

func (p *envParser) atoi(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.invalid(key, v, err)
		return def
	}
	return n
}

func (p *envParser) float(key string, def float64) float64 {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.invalid(key, v, err)
		return def
	}
	return f
}

func (p *envParser) bool(key string, def bool) bool {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.invalid(key, v, err)
		return def
	}
	return b
}

// duration accepts Go durations ("90s", "1h") or a bare number of seconds.
func (p *envParser) duration(key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	sec, err := strconv.Atoi(v)
	if err != nil {
		p.invalid(key, v, errors.New("want a duration such as 90s or a number of seconds"))
		return def
	}
	return time.Duration(sec) * time.Second
}

func (p *envParser) decimal(key string, def decimal.Decimal) decimal.Decimal {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		p.invalid(key, v, err)
		return def
	}
	return d
}

// Load collects configuration from the environment with defaults.
func Load() Config {
	var p envParser
	c := Config{
		PostgresDSN:   getenv("POSTGRES_DSN", ""),
		ClickhouseDSN: getenv("CLICKHOUSE_DSN", ""),
		UseMemory:     p.bool("USE_MEMORY", false),

		SweepInterval:    p.duration("SWEEP_INTERVAL", time.Hour),
		SweepConcurrency: p.atoi("SWEEP_CONCURRENCY", 8),
		ScrapeTimeout:    p.duration("SCRAPE_TIMEOUT", 30*time.Second),
		ScrapeRatePerSec: p.float("SCRAPE_RATE_PER_SEC", 2),
		UserAgent:        getenv("SCRAPE_USER_AGENT", ""),

		DropPercent:  p.decimal("PRICE_DROP_PERCENT", decimal.NewFromInt(5)),
		DropAbsolute: p.decimal("PRICE_DROP_ABSOLUTE", decimal.Zero),

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     p.atoi("SMTP_PORT", 587),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", ""),
		DryRun:       p.bool("DRY_RUN", false),

		HTTPAddr:  getenv("HTTP_ADDR", ":8080"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "text"),
	}
	c.parseErrs = p.errs
	return c
}

// Validate reports every missing or out-of-range setting at once.
func (c Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)
	if !c.UseMemory && c.PostgresDSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required (or set USE_MEMORY=true)"))
	}
	if !c.DryRun {
		if c.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required (or set DRY_RUN=true)"))
		}
		if c.SMTPFrom == "" {
			errs = append(errs, errors.New("SMTP_FROM is required (or set DRY_RUN=true)"))
		}
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval))
	}
	if c.SweepConcurrency < 0 {
		errs = append(errs, fmt.Errorf("SWEEP_CONCURRENCY must be >= 0, got %d", c.SweepConcurrency))
	}
	if c.ScrapeTimeout < 0 {
		errs = append(errs, fmt.Errorf("SCRAPE_TIMEOUT must be >= 0, got %s", c.ScrapeTimeout))
	}
	if c.DropPercent.IsNegative() || c.DropAbsolute.IsNegative() {
		errs = append(errs, errors.New("PRICE_DROP_PERCENT and PRICE_DROP_ABSOLUTE must be >= 0"))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
