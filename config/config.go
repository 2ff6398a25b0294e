// Package config loads process configuration: defaults, then an optional
// YAML file named by PAWN_CONFIG, then PAWN_* environment variables.
// A .env file in the working directory is read first if present.
package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PAWN_"

// History sinks.
const (
	SinkNone     = "none"
	SinkCSV      = "csv"
	SinkPostgres = "postgres"
	SinkKafka    = "kafka"
)

// Config holds all application configuration. It is not modified after Load.
type Config struct {
	LogLevel string `koanf:"log_level"`

	EbayAppID       string        `koanf:"ebay_app_id"`
	EbayCampaignID  string        `koanf:"ebay_campaign_id"`
	EbayDailyQuota  int           `koanf:"ebay_daily_quota"`
	EbayQuotaWindow time.Duration `koanf:"ebay_quota_window"`

	AmazonAssociateTag string `koanf:"amazon_associate_tag"`
	PriceChartingToken string `koanf:"pricecharting_token"`
	MetalsSpotURL      string `koanf:"metals_spot_url"`

	// Sources lists the enabled connectors; PrimaryPriority orders the
	// candidates for the primary slot.
	Sources         []string `koanf:"sources"`
	PrimaryPriority []string `koanf:"primary_priority"`

	ConnectorTimeout time.Duration `koanf:"connector_timeout"`
	APIMinGap        time.Duration `koanf:"api_min_gap"`
	ScrapeMinGap     time.Duration `koanf:"scrape_min_gap"`

	QuickTTL     time.Duration `koanf:"quick_ttl"`
	FullTTL      time.Duration `koanf:"full_ttl"`
	ReferenceTTL time.Duration `koanf:"reference_ttl"`

	PawnRate   float64 `koanf:"pawn_rate"`
	SampleSize int     `koanf:"sample_size"`

	BrowserEnabled bool   `koanf:"browser_enabled"`
	ChromeBin      string `koanf:"chrome_bin"`

	HistorySink    string `koanf:"history_sink"`
	HistoryWorkers int    `koanf:"history_workers"`
	CSVOutputPath  string `koanf:"csv_output_path"`

	PostgresHost     string `koanf:"postgres_host"`
	PostgresPort     string `koanf:"postgres_port"`
	PostgresUser     string `koanf:"postgres_user"`
	PostgresPassword string `koanf:"postgres_password"`
	PostgresDB       string `koanf:"postgres_db"`
	PostgresSSLMode  string `koanf:"postgres_sslmode"`

	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`

	MetricsAddr string `koanf:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",

		EbayDailyQuota:  5000,
		EbayQuotaWindow: 24 * time.Hour,

		Sources:         []string{"ebay", "ebay-web", "amazon", "mercari", "facebook", "offerup", "pricecharting"},
		PrimaryPriority: []string{"ebay", "ebay-web"},

		ConnectorTimeout: 12 * time.Second,
		APIMinGap:        100 * time.Millisecond,
		ScrapeMinGap:     2 * time.Second,

		QuickTTL:     5 * time.Minute,
		FullTTL:      15 * time.Minute,
		ReferenceTTL: 24 * time.Hour,

		PawnRate:   0.30,
		SampleSize: 5,

		HistorySink:    SinkNone,
		HistoryWorkers: 4,
		CSVOutputPath:  "./output/search_history.csv",

		PostgresHost:    "localhost",
		PostgresPort:    "5432",
		PostgresUser:    "pawn",
		PostgresDB:      "pawn_db",
		PostgresSSLMode: "disable",

		KafkaTopic: "pawn.search-history",
	}
}

// listKeys are read from the environment as comma-separated values.
var listKeys = map[string]bool{
	"sources":          true,
	"primary_priority": true,
	"kafka_brokers":    true,
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// normalise lower-cases source names so every consumer can compare them directly.
func (c *Config) normalise() {
	c.Sources = sourceNames(c.Sources)
	c.PrimaryPriority = sourceNames(c.PrimaryPriority)
}

func sourceNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Load reads the .env file and layers defaults, file and environment.
func Load(_ context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] Ignoring unreadable .env file: %v", err)
	}

	k := koanf.New(".")

	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	// PAWN_EBAY_APP_ID -> ebay_app_id; list keys are comma-separated.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
		if listKeys[key] {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	cfg := *Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.normalise()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.PawnRate <= 0 || c.PawnRate > 1 {
		errs = append(errs, fmt.Errorf("pawn_rate %.2f outside (0,1]", c.PawnRate))
	}
	for name, d := range map[string]time.Duration{
		"connector_timeout": c.ConnectorTimeout,
		"quick_ttl":         c.QuickTTL,
		"full_ttl":          c.FullTTL,
		"reference_ttl":     c.ReferenceTTL,
		"ebay_quota_window": c.EbayQuotaWindow,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.APIMinGap < 0 || c.ScrapeMinGap < 0 {
		errs = append(errs, errors.New("pacing gaps must not be negative"))
	}
	if c.EbayDailyQuota <= 0 {
		errs = append(errs, errors.New("ebay_daily_quota must be positive"))
	}
	if c.SampleSize < 0 {
		errs = append(errs, errors.New("sample_size must not be negative"))
	}
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("sources must not be empty"))
	}
	switch c.HistorySink {
	case SinkNone, SinkCSV, SinkPostgres:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("kafka history sink needs kafka_brokers"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown history_sink %q", c.HistorySink))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SourceEnabled reports whether the named connector is switched on.
func (c *Config) SourceEnabled(name string) bool {
	for _, s := range c.Sources {
		if s == strings.ToLower(strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
