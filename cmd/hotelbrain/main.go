// Package main provides the hotelbrain driver loop entry point: it runs
// DCCP and CDEME for a single hotel per invocation, leaving the out-of-scope
// "which hotels, in what order" decision to whatever wraps this binary.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	hbbrowser "github.com/jmylchreest/hotelbrain/internal/browser"
	"github.com/jmylchreest/hotelbrain/internal/config"
	"github.com/jmylchreest/hotelbrain/internal/crawler"
	"github.com/jmylchreest/hotelbrain/internal/database"
	"github.com/jmylchreest/hotelbrain/internal/llmclient"
	"github.com/jmylchreest/hotelbrain/internal/logging"
	"github.com/jmylchreest/hotelbrain/internal/orchestrator"
	"github.com/jmylchreest/hotelbrain/internal/repository"
	"github.com/jmylchreest/hotelbrain/internal/shutdown"
	"github.com/jmylchreest/hotelbrain/internal/version"
)

const shutdownGracePeriod = 30 * time.Second

func main() {
	hotelID := flag.String("hotel-id", "", "hotel identifier (primary key in both tables)")
	hotelURL := flag.String("hotel-url", "", "hotel homepage URL, the crawl seed")
	hotelName := flag.String("hotel-name", "", "hotel display name, used in LLM prompts and logs")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	if cfg.Development {
		os.Setenv("LOG_LEVEL", "debug")
	}
	logger := logging.SetDefault()

	logger.Info("starting hotelbrain",
		"version", version.Get().Short(),
		"hotel_page_data_table", cfg.HotelPageDataTable,
		"market_data_table", cfg.MarketDataTable,
		"crawler_max_depth", cfg.CrawlerMaxDepth,
		"crawler_max_concurrency", cfg.CrawlerMaxConcurrency,
	)

	if *hotelID == "" || (*hotelURL == "" && !cfg.AggregateOnly()) {
		fmt.Fprintln(os.Stderr, "usage: hotelbrain -hotel-id=ID -hotel-url=URL [-hotel-name=NAME]")
		os.Exit(2)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Error("run migrations", "error", err)
		os.Exit(1)
	}

	pages := repository.NewPageRepository(db, cfg.HotelPageDataTable)
	markets := repository.NewMarketDataRepository(db, cfg.MarketDataTable)

	llm := llmclient.New(cfg.PerplexityAPIKey, "", logger)

	browserCfg := hbbrowser.DefaultConfig()
	browserCfg.PoolSize = cfg.CrawlerMaxConcurrency
	pool := hbbrowser.NewPool(browserCfg, logger)
	defer pool.Close()

	coordinator := shutdown.New(shutdownGracePeriod, logger)
	ctx, stopListening := coordinator.Listen(context.Background())
	defer stopListening()

	if err := pool.Warmup(ctx); err != nil {
		logger.Error("warm up browser pool", "error", err)
		os.Exit(1)
	}

	crawlerCfg := crawler.Config{
		MaxDepth:              cfg.CrawlerMaxDepth,
		MaxConcurrency:        cfg.CrawlerMaxConcurrency,
		MaxRetries:            cfg.CrawlerMaxRetries,
		RequestTimeoutSeconds: cfg.CrawlerTimeoutSecs,
	}
	app := orchestrator.New(pool, crawlerCfg, pages, markets, llm, logger)

	finishWork := coordinator.BeginWork()
	exitCode := run(ctx, app, cfg, *hotelURL, *hotelID, *hotelName, logger)
	finishWork()

	coordinator.Wait()
	os.Exit(exitCode)
}

// run executes the scrape and/or aggregate phases selected by cfg's unit
// test mode (both, by default), returning the process exit code.
func run(ctx context.Context, app *orchestrator.App, cfg *config.Config, hotelURL, hotelID, hotelName string, logger *slog.Logger) int {
	if !cfg.AggregateOnly() {
		if _, err := app.Scrape(ctx, hotelURL, hotelID, hotelName); err != nil {
			logger.Error("scrape failed", "error", err)
			return 1
		}
	}

	if !cfg.ScrapeOnly() {
		if err := app.Aggregate(ctx, hotelID, hotelName); err != nil {
			logger.Error("aggregate failed", "error", err)
			return 1
		}
	}

	return 0
}
