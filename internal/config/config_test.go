package config

import (
	"os"
	"testing"
)

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_GET_ENV", "test_value")
	defer os.Unsetenv("TEST_GET_ENV")

	t.Run("existing env var", func(t *testing.T) {
		if result := getEnv("TEST_GET_ENV", "default"); result != "test_value" {
			t.Errorf("getEnv() = %q, want %q", result, "test_value")
		}
	})

	t.Run("missing env var", func(t *testing.T) {
		if result := getEnv("TEST_MISSING_VAR", "default_value"); result != "default_value" {
			t.Errorf("getEnv() = %q, want %q", result, "default_value")
		}
	})

	t.Run("empty env var uses default", func(t *testing.T) {
		os.Setenv("TEST_EMPTY_VAR", "")
		defer os.Unsetenv("TEST_EMPTY_VAR")

		if result := getEnv("TEST_EMPTY_VAR", "default"); result != "default" {
			t.Errorf("getEnv() = %q, want %q", result, "default")
		}
	})
}

func TestGetEnvInt(t *testing.T) {
	t.Run("valid integer", func(t *testing.T) {
		os.Setenv("TEST_INT", "42")
		defer os.Unsetenv("TEST_INT")

		if result := getEnvInt("TEST_INT", 0); result != 42 {
			t.Errorf("getEnvInt() = %d, want 42", result)
		}
	})

	t.Run("invalid integer falls back to default", func(t *testing.T) {
		os.Setenv("TEST_INT_INVALID", "not-a-number")
		defer os.Unsetenv("TEST_INT_INVALID")

		if result := getEnvInt("TEST_INT_INVALID", 99); result != 99 {
			t.Errorf("getEnvInt() = %d, want 99 (default)", result)
		}
	})

	t.Run("missing env var", func(t *testing.T) {
		if result := getEnvInt("TEST_INT_MISSING", 100); result != 100 {
			t.Errorf("getEnvInt() = %d, want 100 (default)", result)
		}
	})
}

func TestGetEnvIntOrUnlimited(t *testing.T) {
	t.Run("unset means unlimited", func(t *testing.T) {
		if result := getEnvIntOrUnlimited("CRAWLER_MAX_DEPTH_MISSING", -1); result != -1 {
			t.Errorf("getEnvIntOrUnlimited() = %d, want -1", result)
		}
	})

	t.Run("non-numeric means unlimited", func(t *testing.T) {
		os.Setenv("TEST_DEPTH_BAD", "deep")
		defer os.Unsetenv("TEST_DEPTH_BAD")

		if result := getEnvIntOrUnlimited("TEST_DEPTH_BAD", -1); result != -1 {
			t.Errorf("getEnvIntOrUnlimited() = %d, want -1", result)
		}
	})

	t.Run("valid depth bound is honored", func(t *testing.T) {
		os.Setenv("TEST_DEPTH_OK", "2")
		defer os.Unsetenv("TEST_DEPTH_OK")

		if result := getEnvIntOrUnlimited("TEST_DEPTH_OK", -1); result != 2 {
			t.Errorf("getEnvIntOrUnlimited() = %d, want 2", result)
		}
	})

	t.Run("zero depth is a valid explicit bound, not unlimited", func(t *testing.T) {
		os.Setenv("TEST_DEPTH_ZERO", "0")
		defer os.Unsetenv("TEST_DEPTH_ZERO")

		if result := getEnvIntOrUnlimited("TEST_DEPTH_ZERO", -1); result != 0 {
			t.Errorf("getEnvIntOrUnlimited() = %d, want 0", result)
		}
	})
}

func TestGetEnvBool(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{"false", false},
		{"0", false},
		{"anything-else", false},
	}
	for _, c := range cases {
		os.Setenv("TEST_BOOL", c.value)
		if result := getEnvBool("TEST_BOOL", false); result != c.want {
			t.Errorf("getEnvBool(%q) = %v, want %v", c.value, result, c.want)
		}
	}
	os.Unsetenv("TEST_BOOL")

	if result := getEnvBool("TEST_BOOL_MISSING", true); !result {
		t.Error("getEnvBool() should return default true when unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"HOTEL_PAGE_DATA_TABLE", "MARKET_DATA_TABLE", "DATABASE_URL",
		"CRAWLER_MAX_DEPTH", "CRAWLER_MAX_CONCURRENCY", "CRAWLER_MAX_RETRIES",
		"CRAWLER_TIMEOUT_SECS", "PERPLEXITY_API_KEY", "NODE_ENV",
		"UNIT_TEST", "UNIT_TEST_MODULE",
	} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HotelPageDataTable != "hotel_page_data" {
		t.Errorf("HotelPageDataTable = %q, want hotel_page_data", cfg.HotelPageDataTable)
	}
	if cfg.MarketDataTable != "market_data" {
		t.Errorf("MarketDataTable = %q, want market_data", cfg.MarketDataTable)
	}
	if cfg.CrawlerMaxDepth != -1 {
		t.Errorf("CrawlerMaxDepth = %d, want -1 (unlimited)", cfg.CrawlerMaxDepth)
	}
	if cfg.CrawlerMaxConcurrency != 3 {
		t.Errorf("CrawlerMaxConcurrency = %d, want 3", cfg.CrawlerMaxConcurrency)
	}
	if cfg.CrawlerMaxRetries != 2 {
		t.Errorf("CrawlerMaxRetries = %d, want 2", cfg.CrawlerMaxRetries)
	}
	if cfg.CrawlerTimeoutSecs != 60 {
		t.Errorf("CrawlerTimeoutSecs = %d, want 60", cfg.CrawlerTimeoutSecs)
	}
	if cfg.Development {
		t.Error("Development should be false by default")
	}
	if cfg.UnitTest {
		t.Error("UnitTest should be false by default")
	}
}

func TestLoad_UnitTestMode(t *testing.T) {
	os.Setenv("UNIT_TEST", "true")
	os.Setenv("UNIT_TEST_MODULE", "scrape")
	os.Setenv("NODE_ENV", "development")
	defer func() {
		os.Unsetenv("UNIT_TEST")
		os.Unsetenv("UNIT_TEST_MODULE")
		os.Unsetenv("NODE_ENV")
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.ScrapeOnly() {
		t.Error("ScrapeOnly() should be true when UNIT_TEST_MODULE=scrape")
	}
	if cfg.AggregateOnly() {
		t.Error("AggregateOnly() should be false when UNIT_TEST_MODULE=scrape")
	}
	if !cfg.Development {
		t.Error("Development should be true when NODE_ENV=development")
	}
}
