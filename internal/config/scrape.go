package config

import "time"

// Retrieval modes for the page retriever.
const (
	RetrieveModeBrowser = "browser" // drive a headless browser (default)
	RetrieveModeHTTP    = "http"    // plain HTTP GET, for static sources and tests
)

// ScrapeConfig bundles every tunable of the scrape pipeline. It is built once
// at startup and passed into the orchestrator and retriever at construction;
// nothing in the pipeline reads the environment directly.
type ScrapeConfig struct {
	Concurrency   int           // max concurrent theater jobs per run
	NavTimeout    time.Duration // per-navigation timeout inside the retriever
	TheaterBudget time.Duration // overall time budget for one theater job
	RetryMax      int           // retries for transient retrieval failures
	RetryBackoff  time.Duration // base backoff between retries (doubles per attempt)
	DefaultFreq   time.Duration // scrape frequency for targets that do not set one
	Interval      time.Duration // scheduler tick for the server binary
	RetrieveMode  string        // RetrieveModeBrowser or RetrieveModeHTTP
	BrowserURL    string        // optional remote devtools websocket URL
}

// LoadScrapeConfig reads scrape tunables from the environment, applying
// defaults chosen to stay polite toward remote sources: four concurrent
// browser sessions, 20s per navigation, 90s per theater.
func LoadScrapeConfig() ScrapeConfig {
	cfg := ScrapeConfig{
		Concurrency:   envInt("SCRAPE_CONCURRENCY", 4),
		NavTimeout:    envDur("SCRAPE_NAV_TIMEOUT", 20*time.Second),
		TheaterBudget: envDur("SCRAPE_THEATER_BUDGET", 90*time.Second),
		RetryMax:      envInt("SCRAPE_RETRY_MAX", 2),
		RetryBackoff:  envDur("SCRAPE_RETRY_BACKOFF", 2*time.Second),
		DefaultFreq:   envDur("SCRAPE_DEFAULT_FREQUENCY", 6*time.Hour),
		Interval:      envDur("SCRAPE_INTERVAL", 30*time.Minute),
		RetrieveMode:  envStr("SCRAPE_RETRIEVE_MODE", RetrieveModeBrowser),
		BrowserURL:    envStr("SCRAPE_BROWSER_URL", ""),
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 20 * time.Second
	}
	if cfg.TheaterBudget < cfg.NavTimeout {
		cfg.TheaterBudget = cfg.NavTimeout
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	return cfg
}
