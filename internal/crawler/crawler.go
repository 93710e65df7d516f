// Package crawler implements the bounded, same-origin crawl that seeds
// DCCP: it drives real browser page loads through internal/browser, waits
// for DOM stability via internal/stabilizer, canonicalizes and fingerprints
// each page via internal/cleaner, internal/markdown, and internal/contenthash,
// and persists the result through a PageStore.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/go-rod/rod"
	"golang.org/x/sync/errgroup"

	hbbrowser "github.com/jmylchreest/hotelbrain/internal/browser"
	"github.com/jmylchreest/hotelbrain/internal/cleaner"
	"github.com/jmylchreest/hotelbrain/internal/contenthash"
	"github.com/jmylchreest/hotelbrain/internal/logging"
	"github.com/jmylchreest/hotelbrain/internal/markdown"
	"github.com/jmylchreest/hotelbrain/internal/models"
	"github.com/jmylchreest/hotelbrain/internal/stabilizer"
)

// Config controls one crawl run's boundaries.
type Config struct {
	// MaxDepth bounds how deep the BFS follows links. -1 means unlimited,
	// the default per the "unlimited by default" requirement.
	MaxDepth int
	// MaxConcurrency bounds how many URLs are fetched at once within a
	// single hotel's crawl.
	MaxConcurrency int
	// MaxRetries bounds transient-network retry attempts per URL.
	MaxRetries int
	// RequestTimeoutSeconds bounds a single navigation attempt.
	RequestTimeoutSeconds int
}

// DefaultConfig matches the documented environment-variable defaults.
func DefaultConfig() Config {
	return Config{
		MaxDepth:              -1,
		MaxConcurrency:        3,
		MaxRetries:            2,
		RequestTimeoutSeconds: 60,
	}
}

// PageStore is the persistence seam the crawler writes through. It is
// satisfied by internal/repository's page repository; defining it here
// keeps this package testable without a database.
type PageStore interface {
	// Get returns the existing artifact for (hotelID, pageURL), or
	// (nil, nil) if none exists yet.
	Get(ctx context.Context, hotelID, pageURL string) (*models.PageArtifact, error)
	// Upsert writes page as given, replacing any existing row. Rolling the
	// previous markdown into MarkdownPrev and carrying prior LLM fields
	// forward is done by the crawler (persist) before calling it.
	Upsert(ctx context.Context, page *models.PageArtifact) error
	// DeactivateExcept clears Active on every row for hotelID whose
	// PageURL is not in keep, per invariant P3.
	DeactivateExcept(ctx context.Context, hotelID string, keep []string) error
}

// Report summarizes one completed crawl run.
type Report struct {
	VisitedURLs int
	ErrorCount  int
}

var errTitlePattern = regexp.MustCompile(`(?i)\b(404|500)\b`)

const maxScrollIterations = 25
const lazyScrollWait = 1500 * time.Millisecond

// statusJS best-effort recovers the main document's HTTP response status
// from the Navigation Timing API; browsers that don't expose responseStatus
// fall back to 200 so a missing signal never masks a real page as an error.
const statusJS = `() => {
	try {
		var entries = performance.getEntriesByType('navigation');
		if (entries.length > 0 && entries[0].responseStatus) return entries[0].responseStatus;
	} catch (e) {}
	return 200;
}`

const scrollHeightJS = `() => document.body ? document.body.scrollHeight : 0`

// Crawler runs bounded same-origin crawls for one hotel at a time. A single
// instance may be reused across hotels; it holds no per-hotel state.
type Crawler struct {
	cfg    Config
	logger *slog.Logger
	conv   *htmltomd.Converter
}

func New(cfg Config, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{cfg: cfg, logger: logger, conv: markdown.NewConverter()}
}

// Crawl runs a bounded BFS starting at seedURL, persisting every
// successfully fetched page through store, and returns a summary report.
// On completion it deactivates any previously-active page not persisted in
// this run (keyed by post-redirect URL), implementing invariant P3.
func (c *Crawler) Crawl(ctx context.Context, pool *hbbrowser.Pool, store PageStore, hotelID, seedURL string) (*Report, error) {
	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed url: %w", err)
	}

	q := newURLQueue()
	q.Add(seed.String(), 0)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrency)
	var visitedCount int64
	var errCount int64

	var persistedMu sync.Mutex
	persisted := make(map[string]bool)

	var process func(item queueItem) error
	process = func(item queueItem) error {
		if gctx.Err() != nil {
			return nil
		}

		links, finalURL, ok := c.fetchOne(gctx, pool, store, hotelID, item)
		if !ok {
			atomic.AddInt64(&errCount, 1)
			return nil
		}
		atomic.AddInt64(&visitedCount, 1)

		persistedMu.Lock()
		persisted[finalURL] = true
		persistedMu.Unlock()

		if c.cfg.MaxDepth >= 0 && item.depth+1 > c.cfg.MaxDepth {
			return nil
		}
		for _, link := range links {
			if q.Add(link, item.depth+1) {
				next := queueItem{url: link, depth: item.depth + 1}
				g.Go(func() error { return process(next) })
			}
		}
		return nil
	}

	g.Go(func() error { return process(queueItem{url: seed.String(), depth: 0}) })
	_ = g.Wait()

	persistedMu.Lock()
	keep := make([]string, 0, len(persisted))
	for u := range persisted {
		keep = append(keep, u)
	}
	persistedMu.Unlock()

	// The keep-set passed to DeactivateExcept must be the post-redirect URLs
	// pages were actually persisted under (per §4.5, the effective URL is
	// the storage key), not q.Visited()'s pre-fetch request URLs — a
	// redirecting seed (http:// -> https://www.) would otherwise be
	// deactivated in the same run it was written.
	if err := store.DeactivateExcept(ctx, hotelID, keep); err != nil {
		logging.FromContext(logging.WithHotelID(ctx, hotelID), c.logger).Error("failed to reconcile active page set", "error", err)
		return nil, err
	}

	return &Report{VisitedURLs: int(visitedCount), ErrorCount: int(errCount)}, nil
}

// fetchOne runs the full per-URL procedure for one queue item: visit, wait
// for DOM stability, detect fetch errors, canonicalize, fingerprint,
// persist, and return the outbound links discovered plus the post-redirect
// URL the page was actually persisted under. ok is false when the URL could
// not be fetched (PageFetchFailure) and must not be persisted or have its
// links enqueued.
func (c *Crawler) fetchOne(ctx context.Context, pool *hbbrowser.Pool, store PageStore, hotelID string, item queueItem) (links []string, finalURL string, ok bool) {
	logCtx := logging.WithPageURL(logging.WithHotelID(ctx, hotelID), item.url)
	logger := logging.FromContext(logCtx, c.logger).With("depth", item.depth)

	b, err := pool.Acquire(ctx)
	if err != nil {
		logger.Error("failed to acquire browser", "error", err)
		return nil, "", false
	}
	defer pool.Release(b)

	page, err := b.NewStealthPage()
	if err != nil {
		logger.Error("failed to open page", "error", err)
		return nil, "", false
	}
	defer page.Close()

	var rawHTML, title string
	var statusCode int

	attempt := func() error {
		timeout := time.Duration(c.cfg.RequestTimeoutSeconds) * time.Second
		navCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		p := page.Context(navCtx)
		if err := p.Navigate(item.url); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
		if err := p.WaitDOMStable(200*time.Millisecond, 0.1); err != nil {
			// A page that never reaches the library's own stability
			// heuristic still gets the signature-based wait below.
			logger.Debug("wait dom stable returned early", "error", err)
		}

		lazyScroll(p)

		if err := stabilizerWait(navCtx, p, item.depth); err != nil {
			return fmt.Errorf("stabilize: %w", err)
		}

		html, err := p.HTML()
		if err != nil {
			return fmt.Errorf("snapshot html: %w", err)
		}
		rawHTML = html

		if res, err := p.Eval(statusJS); err == nil {
			statusCode = res.Value.Int()
		} else {
			statusCode = 200
		}
		if res, err := p.Eval(`() => document.title`); err == nil {
			title = res.Value.Str()
		}
		if res, err := p.Eval(`() => window.location.href`); err == nil {
			finalURL = res.Value.Str()
		}
		if finalURL == "" {
			finalURL = item.url
		}
		return nil
	}

	var lastErr error
	for i := 0; i <= c.cfg.MaxRetries; i++ {
		lastErr = attempt()
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		logger.Warn("transient fetch error, retrying", "attempt", i+1, "error", lastErr)
	}
	if lastErr != nil {
		logger.Error("fetch failed after retries", "error", lastErr)
		return nil, "", false
	}

	if statusCode >= 400 || errTitlePattern.MatchString(title) {
		logger.Warn("page reports an error state, skipping", "status_code", statusCode, "title", title)
		return nil, "", false
	}

	if finalURL == "" {
		finalURL = item.url
	}

	rawLinks, err := extractLinks(rawHTML, finalURL)
	if err != nil {
		logger.Warn("failed to extract links", "error", err)
		rawLinks = nil
	}

	canonicalHTML, err := cleaner.Clean(rawHTML, finalURL, item.depth)
	if err != nil {
		logger.Error("failed to clean page", "error", err)
		return nil, "", false
	}

	md, err := markdown.Convert(c.conv, canonicalHTML)
	if err != nil {
		logger.Error("failed to convert page to markdown", "error", err)
		return nil, "", false
	}

	if err := c.persist(ctx, store, hotelID, finalURL, rawHTML, canonicalHTML, md, item.depth); err != nil {
		logger.Error("failed to persist page", "error", err)
		return nil, "", false
	}

	return rawLinks, finalURL, true
}

// persist upserts the fetched page, rolling prior markdown into
// MarkdownPrev and preserving any existing LLM fields, implementing
// invariant P1's checksum contract.
func (c *Crawler) persist(ctx context.Context, store PageStore, hotelID, pageURL, rawHTML, canonicalHTML, md string, depth int) error {
	existing, err := store.Get(ctx, hotelID, pageURL)
	if err != nil {
		return err
	}

	checksum := contenthash.Sum(md)
	now := time.Now()

	page := &models.PageArtifact{
		HotelID:       hotelID,
		PageURL:       pageURL,
		RawHTML:       rawHTML,
		CanonicalHTML: canonicalHTML,
		Markdown:      md,
		Checksum:      checksum,
		Depth:         depth,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if existing != nil {
		page.CreatedAt = existing.CreatedAt
		page.MarkdownPrev = existing.Markdown
		page.LLMInputChecksum = existing.LLMInputChecksum
		page.LLMOutput = existing.LLMOutput
		page.LLMUpdated = existing.LLMUpdated
		page.IsChecksumUpdated = existing.Checksum != checksum
	} else {
		page.IsChecksumUpdated = true
	}

	return store.Upsert(ctx, page)
}

// lazyScroll repeatedly scrolls to the bottom of the page to trigger
// lazy-loaded content, stopping early once the document height stops
// growing or after maxScrollIterations passes, then scrolls back to top.
func lazyScroll(page *rod.Page) {
	var lastHeight float64
	for i := 0; i < maxScrollIterations; i++ {
		if _, err := page.Eval(`() => window.scrollTo(0, document.body ? document.body.scrollHeight : 0)`); err != nil {
			return
		}
		time.Sleep(lazyScrollWait)

		res, err := page.Eval(scrollHeightJS)
		if err != nil {
			return
		}
		h := res.Value.Num()
		if h <= lastHeight {
			break
		}
		lastHeight = h
	}
	_, _ = page.Eval(`() => window.scrollTo(0, 0)`)
}

// stabilizerWait waits for the page's DOM signature to settle, using the
// depth-tuned parameters.
func stabilizerWait(ctx context.Context, page *rod.Page, depth int) error {
	return stabilizer.Wait(ctx, page, stabilizer.DepthParams(depth))
}
