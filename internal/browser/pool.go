// Package browser manages a pool of headless rod browser instances used by
// the crawler to drive real page loads, scrolls, and DOM stabilization.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrPoolClosed is returned when trying to use a closed pool.
	ErrPoolClosed = errors.New("browser pool is closed")
)

// Config controls pool sizing and recycling thresholds.
type Config struct {
	PoolSize     int           // max concurrent browser instances
	ChromePath   string        // optional explicit Chrome/Chromium binary
	MaxAge       time.Duration // recycle a browser older than this
	MaxRequests  int           // recycle a browser after this many pages served
	IdleTimeout  time.Duration // recycle an idle, unused browser after this long
}

// DefaultConfig mirrors the crawler's default max_concurrency of 3.
func DefaultConfig() Config {
	return Config{
		PoolSize:    3,
		MaxAge:      30 * time.Minute,
		MaxRequests: 50,
		IdleTimeout: 5 * time.Minute,
	}
}

// ManagedBrowser wraps a rod.Browser with pool bookkeeping.
type ManagedBrowser struct {
	ID           string
	Browser      *rod.Browser
	InUse        bool
	CreatedAt    time.Time
	LastUsedAt   time.Time
	RequestCount int
}

// NewStealthPage opens a new page with anti-detection JS injected before
// any navigation, matching the behavior crawler.Crawler expects for every
// fetch.
func (b *ManagedBrowser) NewStealthPage() (*rod.Page, error) {
	page, err := stealth.Page(b.Browser)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Pool manages a set of browser instances for same-origin crawl sessions.
type Pool struct {
	mu       sync.RWMutex
	browsers map[string]*ManagedBrowser
	waiting  []chan *ManagedBrowser
	cfg      Config
	logger   *slog.Logger
	closed   bool
}

// NewPool creates a new browser pool. cfg.PoolSize <= 0 is clamped to 1.
func NewPool(cfg Config, logger *slog.Logger) *Pool {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		browsers: make(map[string]*ManagedBrowser),
		waiting:  make([]chan *ManagedBrowser, 0),
		cfg:      cfg,
		logger:   logger,
	}
}

// Warmup ensures a Chromium binary is available, downloading it via rod's
// launcher if no ChromePath was configured. Call once at process startup.
func (p *Pool) Warmup(ctx context.Context) error {
	if p.cfg.ChromePath != "" {
		p.logger.Info("using configured chrome binary", "path", p.cfg.ChromePath)
		return nil
	}
	p.logger.Info("ensuring chromium is available")
	path, err := launcher.NewBrowser().Get()
	if err != nil {
		return err
	}
	p.logger.Info("chromium ready", "path", path)
	return nil
}

// Acquire returns a browser from the pool, creating one if capacity allows,
// or blocking until one is released or ctx is cancelled.
func (p *Pool) Acquire(ctx context.Context) (*ManagedBrowser, error) {
	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	for id, b := range p.browsers {
		if b.InUse {
			continue
		}
		if p.isHealthy(b) {
			b.InUse = true
			b.LastUsedAt = time.Now()
			p.mu.Unlock()
			return b, nil
		}
		// An idle browser past its age, request, or idle budget is retired
		// here so its slot can be refilled below.
		p.closeBrowser(b)
		delete(p.browsers, id)
	}

	if len(p.browsers) < p.cfg.PoolSize {
		b, err := p.createBrowser()
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		p.browsers[b.ID] = b
		p.mu.Unlock()
		return b, nil
	}

	waitChan := make(chan *ManagedBrowser, 1)
	p.waiting = append(p.waiting, waitChan)
	p.mu.Unlock()

	select {
	case b, ok := <-waitChan:
		if !ok {
			return nil, ErrPoolClosed
		}
		return b, nil
	case <-ctx.Done():
		p.mu.Lock()
		for i, ch := range p.waiting {
			if ch == waitChan {
				p.waiting = append(p.waiting[:i], p.waiting[i+1:]...)
				break
			}
		}
		p.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Release returns a browser to the pool, recycling it first if it has
// exceeded its age or request budget.
func (p *Pool) Release(b *ManagedBrowser) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		p.closeBrowser(b)
		return
	}

	b.InUse = false
	b.RequestCount++
	b.LastUsedAt = time.Now()

	if p.needsRecycle(b) {
		p.recycleBrowser(b)
		return
	}

	if len(p.waiting) > 0 {
		waitChan := p.waiting[0]
		p.waiting = p.waiting[1:]
		b.InUse = true
		b.LastUsedAt = time.Now()
		waitChan <- b
	}
}

// Close shuts down every browser and refuses further Acquire calls.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	for _, b := range p.browsers {
		p.closeBrowser(b)
	}
	p.browsers = make(map[string]*ManagedBrowser)

	for _, ch := range p.waiting {
		close(ch)
	}
	p.waiting = nil
}

// Stats reports current pool occupancy, for logging and health endpoints.
type Stats struct {
	Total     int
	InUse     int
	Available int
	MaxSize   int
	Waiting   int
}

func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Stats{Total: len(p.browsers), MaxSize: p.cfg.PoolSize, Waiting: len(p.waiting)}
	for _, b := range p.browsers {
		if b.InUse {
			s.InUse++
		} else {
			s.Available++
		}
	}
	return s
}

func (p *Pool) createBrowser() (*ManagedBrowser, error) {
	l := launcher.New()
	if p.cfg.ChromePath != "" {
		l = l.Bin(p.cfg.ChromePath)
	}

	l = l.
		Headless(true).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-infobars").
		Set("window-size", "1920,1080").
		Set("lang", "en-US,en")

	u, err := l.Launch()
	if err != nil {
		return nil, err
	}

	br := rod.New().ControlURL(u)
	if err := br.Connect(); err != nil {
		return nil, err
	}

	id := ulid.Make().String()
	p.logger.Info("browser created", "id", id)

	return &ManagedBrowser{
		ID:         id,
		Browser:    br,
		InUse:      true,
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
	}, nil
}

func (p *Pool) isHealthy(b *ManagedBrowser) bool {
	if time.Since(b.CreatedAt) > p.cfg.MaxAge {
		return false
	}
	if b.RequestCount >= p.cfg.MaxRequests {
		return false
	}
	if !b.InUse && p.cfg.IdleTimeout > 0 && time.Since(b.LastUsedAt) > p.cfg.IdleTimeout {
		return false
	}
	defer func() { recover() }()
	_, err := b.Browser.Pages()
	return err == nil
}

func (p *Pool) needsRecycle(b *ManagedBrowser) bool {
	if time.Since(b.CreatedAt) > p.cfg.MaxAge {
		return true
	}
	return b.RequestCount >= p.cfg.MaxRequests
}

func (p *Pool) recycleBrowser(b *ManagedBrowser) {
	p.logger.Info("recycling browser", "id", b.ID, "age", time.Since(b.CreatedAt), "requests", b.RequestCount)
	p.closeBrowser(b)
	delete(p.browsers, b.ID)

	go func() {
		newBrowser, err := p.createBrowser()
		if err != nil {
			p.logger.Error("failed to create replacement browser", "error", err)
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()

		if p.closed {
			p.closeBrowser(newBrowser)
			return
		}

		newBrowser.InUse = false
		p.browsers[newBrowser.ID] = newBrowser

		if len(p.waiting) > 0 {
			waitChan := p.waiting[0]
			p.waiting = p.waiting[1:]
			newBrowser.InUse = true
			newBrowser.LastUsedAt = time.Now()
			waitChan <- newBrowser
		}
	}()
}

func (p *Pool) closeBrowser(b *ManagedBrowser) {
	if b.Browser != nil {
		if err := b.Browser.Close(); err != nil {
			p.logger.Warn("error closing browser", "id", b.ID, "error", err)
		}
	}
	p.logger.Info("browser closed", "id", b.ID)
}
