// Package config handles application configuration for hotelbrain, reading
// every tunable from the environment variables documented in §6 of the
// system's external interfaces.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds every environment-derived setting hotelbrain's driver loop
// needs to construct its crawler, LLM client, and repositories.
type Config struct {
	// HotelPageDataTable names the Page Artifact table.
	HotelPageDataTable string
	// MarketDataTable names the Market-Data Record table.
	MarketDataTable string

	// DatabaseURL is the libsql DSN (file: or http: per internal/database).
	DatabaseURL string

	// CrawlerMaxDepth bounds BFS depth. -1 means unlimited, the default
	// when CRAWLER_MAX_DEPTH is unset or non-numeric.
	CrawlerMaxDepth int
	// CrawlerMaxConcurrency bounds simultaneous in-flight page fetches.
	CrawlerMaxConcurrency int
	// CrawlerMaxRetries bounds per-URL transient-network retry attempts.
	CrawlerMaxRetries int
	// CrawlerTimeoutSecs bounds a single navigation attempt.
	CrawlerTimeoutSecs int

	// PerplexityAPIKey is the LLM credential used for every CDEME call.
	PerplexityAPIKey string

	// Development enables verbose debug logging when NODE_ENV=development.
	Development bool

	// UnitTest and UnitTestModule select single-phase execution for test
	// harnesses: UnitTestModule is one of "scrape" or "aggregate".
	UnitTest       bool
	UnitTestModule string
}

// Load reads configuration from environment variables, applying the
// defaults documented in §6.
func Load() (*Config, error) {
	cfg := &Config{
		HotelPageDataTable: getEnv("HOTEL_PAGE_DATA_TABLE", "hotel_page_data"),
		MarketDataTable:    getEnv("MARKET_DATA_TABLE", "market_data"),

		DatabaseURL: getEnv("DATABASE_URL", "file:hotelbrain.db?_journal=WAL&_timeout=5000"),

		CrawlerMaxDepth:       getEnvIntOrUnlimited("CRAWLER_MAX_DEPTH", -1),
		CrawlerMaxConcurrency: getEnvInt("CRAWLER_MAX_CONCURRENCY", 3),
		CrawlerMaxRetries:     getEnvInt("CRAWLER_MAX_RETRIES", 2),
		CrawlerTimeoutSecs:    getEnvInt("CRAWLER_TIMEOUT_SECS", 60),

		PerplexityAPIKey: getEnv("PERPLEXITY_API_KEY", ""),

		Development: strings.EqualFold(getEnv("NODE_ENV", ""), "development"),

		UnitTest:       getEnvBool("UNIT_TEST", false),
		UnitTestModule: getEnv("UNIT_TEST_MODULE", ""),
	}

	return cfg, nil
}

// ScrapeOnly reports whether UNIT_TEST mode restricts this run to the
// scrape phase.
func (c *Config) ScrapeOnly() bool {
	return c.UnitTest && c.UnitTestModule == "scrape"
}

// AggregateOnly reports whether UNIT_TEST mode restricts this run to the
// aggregate phase.
func (c *Config) AggregateOnly() bool {
	return c.UnitTest && c.UnitTestModule == "aggregate"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvIntOrUnlimited parses key as an integer depth bound. Per §6,
// CRAWLER_MAX_DEPTH unset or non-numeric means unlimited, represented as
// defaultValue (-1) rather than silently falling back to some other bound.
func getEnvIntOrUnlimited(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}
