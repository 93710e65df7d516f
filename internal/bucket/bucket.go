// Package bucket implements §4.10's Bucket Collector: the per-hotel CDEME
// orchestration that ties the extractor, refiner, adjudicator, and record
// writer together.
package bucket

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/hotelbrain/internal/extractpipeline"
	"github.com/jmylchreest/hotelbrain/internal/logging"
	"github.com/jmylchreest/hotelbrain/internal/models"
	"github.com/jmylchreest/hotelbrain/internal/recordwriter"
	"github.com/jmylchreest/hotelbrain/internal/schema"
)

// PageSource lists a hotel's dirty pages and records extraction metadata
// back onto them, per invariant P2.
type PageSource interface {
	// DirtyPages returns every page eligible for extraction (active,
	// non-empty markdown, and checksum-vs-llm_input_checksum stale).
	DirtyPages(ctx context.Context, hotelID string) ([]*models.PageArtifact, error)
	// MarkExtracted records that a page's current checksum has been
	// consumed by extraction, along with the raw LLM output that produced
	// it.
	MarkExtracted(ctx context.Context, hotelID, pageURL, checksum, llmOutput string) error
}

// ExtractionConcurrency bounds simultaneous per-page and per-field LLM
// calls, per the documented prudence of a small provider-rate-limit-aware
// cap.
const ExtractionConcurrency = 8

// Collector runs one hotel's end-to-end CDEME pass.
type Collector struct {
	pages       PageSource
	records     recordwriter.MarketDataStore
	extractor   *extractpipeline.Extractor
	refiner     *extractpipeline.Refiner
	adjudicator *extractpipeline.Adjudicator
	writer      *recordwriter.Writer
	logger      *slog.Logger
}

func New(
	pages PageSource,
	records recordwriter.MarketDataStore,
	extractor *extractpipeline.Extractor,
	refiner *extractpipeline.Refiner,
	adjudicator *extractpipeline.Adjudicator,
	writer *recordwriter.Writer,
	logger *slog.Logger,
) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		pages:       pages,
		records:     records,
		extractor:   extractor,
		refiner:     refiner,
		adjudicator: adjudicator,
		writer:      writer,
		logger:      logger,
	}
}

// Run executes one hotel's bucket collection: list dirty pages, extract
// each (failure-tolerant), bucket by category, refine per category, load
// the existing record, adjudicate per field, and write.
func (c *Collector) Run(ctx context.Context, hotelID, hotelName, homepageURL string) error {
	ctx = logging.WithHotelID(ctx, hotelID)
	logger := logging.FromContext(ctx, c.logger)

	pages, err := c.pages.DirtyPages(ctx, hotelID)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		logger.Info("no dirty pages, skipping extraction")
		return nil
	}

	buckets := c.extractPages(ctx, logger, hotelID, hotelName, pages)

	refined := c.refineBuckets(ctx, hotelName, homepageURL, buckets)

	existing, err := c.records.Get(ctx, hotelID)
	if err != nil {
		return err
	}

	var updates []recordwriter.FieldUpdate
	if existing == nil {
		// §4.9: with no existing record, the newly-refined map becomes the
		// update directly — the Merge Adjudicator only has a role once
		// there is a stored value to merge against.
		updates = directUpdates(refined)
	} else {
		updates = c.adjudicateFields(ctx, existing, refined)
	}

	return c.writer.Write(ctx, hotelID, hotelName, updates)
}

// extractPages runs the per-page extractor over every dirty page
// concurrently (bounded by ExtractionConcurrency) and buckets every
// non-empty (url, value) pair by category. A single page's extraction
// failure is logged and skipped; it never aborts the hotel.
func (c *Collector) extractPages(ctx context.Context, logger *slog.Logger, hotelID, hotelName string, pages []*models.PageArtifact) map[string][]extractpipeline.Snippet {
	type pageResult struct {
		page   *models.PageArtifact
		values map[string]string
	}

	results := make([]pageResult, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ExtractionConcurrency)

	for i, p := range pages {
		g.Go(func() error {
			values := c.extractor.Extract(gctx, p.PageURL, p.Markdown, hotelName)
			results[i] = pageResult{page: p, values: values}
			return nil
		})
	}
	_ = g.Wait()

	buckets := make(map[string][]extractpipeline.Snippet)
	for _, r := range results {
		pageLogger := logging.FromContext(logging.WithPageURL(ctx, r.page.PageURL), logger)
		if len(r.values) == 0 {
			pageLogger.Warn("page extraction produced no values, skipping")
			continue
		}
		for category, value := range r.values {
			if strings.TrimSpace(value) == "" {
				continue
			}
			buckets[category] = append(buckets[category], extractpipeline.Snippet{PageURL: r.page.PageURL, Text: value})
		}

		serialized := serializeExtraction(r.values)
		if err := c.pages.MarkExtracted(ctx, r.page.HotelID, r.page.PageURL, r.page.Checksum, serialized); err != nil {
			pageLogger.Error("failed to mark page extracted", "error", err)
		}
	}
	return buckets
}

// refineBuckets runs the per-field refiner over every category concurrently.
// Categories with no snippets are omitted; the refiner itself short-circuits
// an empty bucket to "" without an LLM call, so omitting them here is purely
// to avoid a wasted goroutine per empty category.
func (c *Collector) refineBuckets(ctx context.Context, hotelName, homepageURL string, buckets map[string][]extractpipeline.Snippet) map[string]string {
	var mu sync.Mutex
	refined := make(map[string]string)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ExtractionConcurrency)

	for _, category := range schema.Names() {
		snippets := buckets[category]
		if len(snippets) == 0 {
			continue
		}
		g.Go(func() error {
			value := c.refiner.Refine(gctx, category, hotelName, homepageURL, snippets)
			mu.Lock()
			refined[category] = value
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return refined
}

// adjudicateFields runs the Merge Adjudicator per category concurrently.
func (c *Collector) adjudicateFields(ctx context.Context, existing *models.MarketDataRecord, refined map[string]string) []recordwriter.FieldUpdate {
	var mu sync.Mutex
	var updates []recordwriter.FieldUpdate

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ExtractionConcurrency)

	for category, newText := range refined {
		existingText := existing.Get(category)
		g.Go(func() error {
			isUpdate, merged := c.adjudicator.Adjudicate(gctx, category, existingText, newText)
			update := recordwriter.FieldUpdate{Category: category, IsUpdate: isUpdate, MergedText: merged}
			mu.Lock()
			updates = append(updates, update)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return updates
}

// directUpdates implements §4.9's no-existing-record path: every non-empty,
// non-"N/A" refined value becomes the update directly, bypassing the Merge
// Adjudicator (there is nothing yet to merge against).
func directUpdates(refined map[string]string) []recordwriter.FieldUpdate {
	updates := make([]recordwriter.FieldUpdate, 0, len(refined))
	for category, value := range refined {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" || strings.EqualFold(trimmed, "N/A") {
			continue
		}
		updates = append(updates, recordwriter.FieldUpdate{Category: category, IsUpdate: true, MergedText: value})
	}
	return updates
}

// serializeExtraction renders one page's extracted category map as the
// llm_output column's JSON text.
func serializeExtraction(values map[string]string) string {
	b, err := json.Marshal(values)
	if err != nil {
		return "{}"
	}
	return string(b)
}
