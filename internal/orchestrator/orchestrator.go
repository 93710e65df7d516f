// Package orchestrator wires together DCCP and CDEME behind the two entry
// points an external driver loop calls per hotel: Scrape and Aggregate.
// Selecting which hotels to run, and in what order, is the out-of-scope
// driver loop's job (§1); this package only implements what happens once a
// hotel has been selected.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	hbbrowser "github.com/jmylchreest/hotelbrain/internal/browser"
	"github.com/jmylchreest/hotelbrain/internal/bucket"
	"github.com/jmylchreest/hotelbrain/internal/crawler"
	"github.com/jmylchreest/hotelbrain/internal/extractpipeline"
	"github.com/jmylchreest/hotelbrain/internal/llmclient"
	"github.com/jmylchreest/hotelbrain/internal/recordwriter"
	"github.com/jmylchreest/hotelbrain/internal/repository"
)

// App holds every long-lived dependency the two entry points share across
// hotels: one crawler, one browser pool, one LLM client, and the
// repositories backing both tables.
type App struct {
	Pool      *hbbrowser.Pool
	Crawler   *crawler.Crawler
	Pages     *repository.PageRepository
	Collector *bucket.Collector
	Logger    *slog.Logger
}

// New constructs an App from its already-configured dependencies.
func New(pool *hbbrowser.Pool, crawlerCfg crawler.Config, pages *repository.PageRepository, markets *repository.MarketDataRepository, llm *llmclient.Client, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}

	extractor := extractpipeline.NewExtractor(llm)
	refiner := extractpipeline.NewRefiner(llm)
	adjudicator := extractpipeline.NewAdjudicator(llm)
	writer := recordwriter.New(markets, llm, logger)
	collector := bucket.New(pages, markets, extractor, refiner, adjudicator, writer, logger)

	return &App{
		Pool:      pool,
		Crawler:   crawler.New(crawlerCfg, logger),
		Pages:     pages,
		Collector: collector,
		Logger:    logger,
	}
}

// Scrape runs DCCP for one hotel: a bounded, same-origin crawl from
// hotelURL that persists every reachable page as a Page Artifact and
// deactivates any page not persisted in this run.
func (a *App) Scrape(ctx context.Context, hotelURL, hotelID, hotelName string) (*crawler.Report, error) {
	if hotelID == "" {
		return nil, fmt.Errorf("scrape %s: hotel id must not be blank", hotelName)
	}
	if hotelURL == "" {
		return nil, fmt.Errorf("scrape %s: hotel url must not be blank", hotelName)
	}

	a.Logger.Info("scrape starting", "hotel_id", hotelID, "hotel_name", hotelName, "url", hotelURL)
	report, err := a.Crawler.Crawl(ctx, a.Pool, a.Pages, hotelID, hotelURL)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", hotelName, err)
	}
	a.Logger.Info("scrape complete", "hotel_id", hotelID, "visited", report.VisitedURLs, "errors", report.ErrorCount)
	return report, nil
}

// Aggregate runs CDEME for one hotel: extract every dirty page, refine and
// adjudicate per category, and write the surviving updates to the
// Market-Data Record.
func (a *App) Aggregate(ctx context.Context, hotelID, hotelName string) error {
	if hotelID == "" {
		return fmt.Errorf("aggregate %s: hotel id must not be blank", hotelName)
	}

	homepageURL, err := a.Pages.HomepageURL(ctx, hotelID)
	if err != nil {
		return fmt.Errorf("aggregate %s: %w", hotelName, err)
	}

	a.Logger.Info("aggregate starting", "hotel_id", hotelID, "hotel_name", hotelName)
	if err := a.Collector.Run(ctx, hotelID, hotelName, homepageURL); err != nil {
		return fmt.Errorf("aggregate %s: %w", hotelName, err)
	}
	a.Logger.Info("aggregate complete", "hotel_id", hotelID)
	return nil
}
