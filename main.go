package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pawn-estimator/cache"
	"pawn-estimator/config"
	"pawn-estimator/metrics"
	"pawn-estimator/models"
	"pawn-estimator/scraper"
	"pawn-estimator/scraper/amazon"
	"pawn-estimator/scraper/ebay"
	"pawn-estimator/scraper/facebook"
	"pawn-estimator/scraper/guide"
	"pawn-estimator/scraper/mercari"
	"pawn-estimator/scraper/offerup"
	"pawn-estimator/scraper/pricehistory"
	"pawn-estimator/services"
	"pawn-estimator/storage"
	"pawn-estimator/utils"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup happens first.
func run() int {
	mode := flag.String("mode", services.ModeQuick, "quick | full | breakdown")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address (overrides PAWN_METRICS_ADDR)")
	historyLimit := flag.Int("history", 0, "print the N most recent searches instead of estimating")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: pawn-estimator [flags] \"<item description>\"\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		utils.NewLogger().Error("Invalid configuration: %v", err)
		return 1
	}
	logger := utils.NewLoggerWithLevel(cfg.LogLevel)

	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, registry, logger)
	}

	recorder, err := storage.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open %s history sink: %v", cfg.HistorySink, err)
		if cfg.HistorySink == config.SinkPostgres {
			logger.Error("Check the PAWN_POSTGRES_* settings and that the database is reachable")
		}
		return 1
	}

	if *historyLimit > 0 {
		printHistory(ctx, recorder, *historyLimit, logger)
		_ = recorder.Close()
		return 0
	}

	query := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(query) == "" {
		flag.Usage()
		return 2
	}

	logger.Info("=== Pawn estimator starting ===")
	logger.Info("Config: sources %s | primary %s | timeout %s | history %s",
		strings.Join(cfg.Sources, ","), strings.Join(cfg.PrimaryPriority, ","), cfg.ConnectorTimeout, cfg.HistorySink)

	var browser *scraper.BrowserFetcher
	if cfg.BrowserEnabled {
		browser = scraper.NewBrowserFetcher(scraper.BrowserConfig{ExecPath: cfg.ChromeBin}, logger)
		defer browser.Close()
	}

	store := cache.New(nil)
	connectors, delegate := buildConnectors(cfg, browser, collector, logger)
	guideConnector := guide.New(guide.Config{
		SpotURL:      cfg.MetalsSpotURL,
		ReferenceTTL: cfg.ReferenceTTL,
	}, delegate, store, baseDeps(cfg, browser, logger))

	agg := services.NewAggregator(connectors, guideConnector, services.AggregatorConfig{
		Primary:          cfg.PrimaryPriority,
		ConnectorTimeout: cfg.ConnectorTimeout,
	}, collector, logger)

	history := services.NewHistoryDispatcher(recorder, cfg.HistoryWorkers, logger)
	defer func() {
		if err := history.Close(); err != nil {
			logger.Warn("Closing history sink: %v", err)
		}
	}()

	engine := services.NewEngine(agg, store, services.EngineConfig{
		QuickTTL: cfg.QuickTTL,
		FullTTL:  cfg.FullTTL,
	}, history, collector, logger)

	report := services.NewReport(os.Stdout)
	ctx = services.WithCaller(ctx, models.CallerInfo{UserID: os.Getenv("USER"), UserAgent: "pawn-estimator-cli"})

	switch *mode {
	case services.ModeQuick:
		est, err := engine.EstimateQuick(ctx, query)
		if err != nil {
			logger.Error("%v", err)
			return 2
		}
		report.PrintQuick(query, est)
	case "full", services.ModeComprehensive:
		res, err := engine.EstimateComprehensive(ctx, query)
		if err != nil {
			logger.Error("%v", err)
			return 2
		}
		report.PrintResult(res)
	case services.ModeBreakdown:
		bd, err := engine.EstimateBreakdown(ctx, query)
		if err != nil {
			logger.Error("%v", err)
			return 2
		}
		report.PrintBreakdown(bd)
	default:
		logger.Error("Unknown mode %q", *mode)
		flag.Usage()
		return 2
	}

	for _, h := range engine.Health() {
		if h.LastOutcome != "" && h.LastOutcome != models.OutcomeOK {
			logger.Debug("[health] %s: %s %s", h.Source, h.LastOutcome, h.LastError)
		}
	}
	return 0
}

// baseDeps are the collaborators shared by every connector.
func baseDeps(cfg *config.Config, browser *scraper.BrowserFetcher, logger *utils.Logger) scraper.Deps {
	d := scraper.Deps{
		HTTP:       scraper.NewHTTPFetcher(cfg.ConnectorTimeout),
		Logger:     logger,
		Timeout:    cfg.ConnectorTimeout,
		MinGap:     cfg.ScrapeMinGap,
		PawnRate:   cfg.PawnRate,
		SampleSize: cfg.SampleSize,
	}
	// A nil *BrowserFetcher must not become a non-nil Fetcher.
	if browser != nil {
		d.Browser = browser
	}
	return d
}

// buildConnectors registers every enabled source in configuration order.
// Misconfigured sources are left out with a warning and counted as skipped.
// The second return is the scraping eBay connector the guide delegates
// brand lookups to.
func buildConnectors(cfg *config.Config, browser *scraper.BrowserFetcher, collector *metrics.Collector, logger *utils.Logger) ([]scraper.Connector, scraper.Connector) {
	d := baseDeps(cfg, browser, logger)
	apiDeps := d
	apiDeps.MinGap = cfg.APIMinGap

	var delegate scraper.Connector
	var out []scraper.Connector
	for _, name := range cfg.Sources {
		var c scraper.Connector
		var err error
		switch name {
		case ebay.SourceAPI:
			c, err = newOrNil[*ebay.API](ebay.NewAPI(ebay.APIConfig{
				AppID:       cfg.EbayAppID,
				CampaignID:  cfg.EbayCampaignID,
				DailyQuota:  cfg.EbayDailyQuota,
				QuotaWindow: cfg.EbayQuotaWindow,
			}, apiDeps))
		case ebay.SourceWeb:
			c = ebay.NewWeb(cfg.EbayCampaignID, d)
			delegate = c
		case amazon.Source:
			c = amazon.New(amazon.Config{AssociateTag: cfg.AmazonAssociateTag}, d)
		case mercari.Source:
			c = mercari.New(d)
		case facebook.Source:
			c = facebook.New(d)
		case offerup.Source:
			c = offerup.New(d)
		case pricehistory.Source:
			c, err = newOrNil[*pricehistory.Connector](pricehistory.New(pricehistory.Config{Token: cfg.PriceChartingToken}, apiDeps))
		default:
			logger.Warn("Unknown source %q ignored", name)
			collector.ObserveSkipped(name)
			continue
		}
		if err != nil {
			if errors.Is(err, models.ErrConfig) {
				logger.Warn("Source %s disabled: %v", name, err)
			} else {
				logger.Error("Source %s failed to start: %v", name, err)
			}
			collector.ObserveSkipped(name)
			continue
		}
		out = append(out, c)
	}
	if delegate == nil {
		delegate = ebay.NewWeb(cfg.EbayCampaignID, d)
	}
	logger.Info("Registered %d connectors", len(out))
	return out, delegate
}

// newOrNil turns a typed constructor result into an interface without
// leaking a typed nil.
func newOrNil[T scraper.Connector](c T, err error) (scraper.Connector, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *utils.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server stopped: %v", err)
	}
}

func printHistory(ctx context.Context, recorder storage.HistoryRecorder, limit int, logger *utils.Logger) {
	reader, ok := recorder.(storage.HistoryReader)
	if !ok {
		logger.Error("The configured history sink cannot list past searches; use postgres")
		return
	}
	records, err := reader.Recent(ctx, limit)
	if err != nil {
		logger.Error("Failed to read search history: %v", err)
		return
	}
	services.NewReport(os.Stdout).PrintHistory(records)
}
