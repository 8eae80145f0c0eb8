// Package config provides configuration loading for newsdeck.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for all newsdeck components.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Preview  PreviewConfig  `koanf:"preview"`
	Quotes   QuotesConfig   `koanf:"quotes"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Auth     AuthConfig     `koanf:"auth"`
}

// ServerConfig configures the HTTP serving surface.
type ServerConfig struct {
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// StoreConfig configures document-store access.
//
// Each named collection is an independent partition of cluster records.
// Collections that do not yet exist are treated as empty, not as errors.
type StoreConfig struct {
	URI       Secret   `koanf:"uri"`
	Database  string   `koanf:"database"`
	Issues    string   `koanf:"issues"`
	Countries []string `koanf:"countries"`
	Articles  string   `koanf:"articles"`
	Users     string   `koanf:"users"`
}

// PreviewConfig configures link-preview metadata fetching.
type PreviewConfig struct {
	Timeout     Duration `koanf:"timeout"`
	UserAgent   string   `koanf:"user_agent"`
	Concurrency int      `koanf:"concurrency"`
	RatePerSec  float64  `koanf:"rate_per_sec"`
	Burst       int      `koanf:"burst"`
}

// TickerConfig names one ticker symbol and its display name.
type TickerConfig struct {
	Symbol string `koanf:"symbol"`
	Name   string `koanf:"name"`
}

// QuotesConfig configures ticker quote fetching.
//
// Serial selects the blocking one-at-a-time fetch path, acceptable only for
// small symbol counts; the default is the concurrent fan-out.
type QuotesConfig struct {
	Timeout Duration       `koanf:"timeout"`
	BaseURL string         `koanf:"base_url"`
	Serial  bool           `koanf:"serial"`
	Tickers []TickerConfig `koanf:"tickers"`
}

// PipelineConfig configures the snapshot aggregation pass.
type PipelineConfig struct {
	ArtifactPath  string   `koanf:"artifact_path"`
	ChunkSize     int      `koanf:"chunk_size"`
	RecencyWindow Duration `koanf:"recency_window"`
	IssuesLimit   int      `koanf:"issues_limit"`
}

// AuthConfig configures the optional Google OAuth login surface.
// Login is disabled when ClientID is empty; the pipeline never requires it.
type AuthConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret Secret `koanf:"client_secret"`
	RedirectURL  string `koanf:"redirect_url"`
	CookieName   string `koanf:"cookie_name"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in range 1-65535, got %d", c.Server.Port)
	}
	if c.Store.Database == "" {
		return fmt.Errorf("store.database is required")
	}
	if c.Pipeline.ChunkSize < 1 {
		return fmt.Errorf("pipeline.chunk_size must be positive, got %d", c.Pipeline.ChunkSize)
	}
	if c.Pipeline.ArtifactPath == "" {
		return fmt.Errorf("pipeline.artifact_path is required")
	}
	if c.Preview.Concurrency < 1 {
		return fmt.Errorf("preview.concurrency must be positive, got %d", c.Preview.Concurrency)
	}
	for i, t := range c.Quotes.Tickers {
		if t.Symbol == "" {
			return fmt.Errorf("quotes.tickers[%d]: symbol is required", i)
		}
	}
	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	// Store defaults match the collection layout produced by the ingest jobs.
	if cfg.Store.URI == "" {
		cfg.Store.URI = "mongodb://localhost:27017"
	}
	if cfg.Store.Database == "" {
		cfg.Store.Database = "newsdeck"
	}
	if cfg.Store.Issues == "" {
		cfg.Store.Issues = "cluster_reports"
	}
	if len(cfg.Store.Countries) == 0 {
		cfg.Store.Countries = []string{
			"valid_cluster_country1",
			"valid_cluster_country2",
			"valid_cluster_country3",
		}
	}
	if cfg.Store.Articles == "" {
		cfg.Store.Articles = "raw_data"
	}
	if cfg.Store.Users == "" {
		cfg.Store.Users = "users"
	}

	// Preview defaults
	if cfg.Preview.Timeout == 0 {
		cfg.Preview.Timeout = Duration(5 * time.Second)
	}
	if cfg.Preview.UserAgent == "" {
		cfg.Preview.UserAgent = "Mozilla/5.0 (compatible; newsdeck/1.0)"
	}
	if cfg.Preview.Concurrency == 0 {
		cfg.Preview.Concurrency = 8
	}
	if cfg.Preview.RatePerSec == 0 {
		cfg.Preview.RatePerSec = 10
	}
	if cfg.Preview.Burst == 0 {
		cfg.Preview.Burst = 5
	}

	// Quotes defaults
	if cfg.Quotes.Timeout == 0 {
		cfg.Quotes.Timeout = Duration(10 * time.Second)
	}
	if cfg.Quotes.BaseURL == "" {
		cfg.Quotes.BaseURL = "https://finance.yahoo.com/quote/"
	}
	if len(cfg.Quotes.Tickers) == 0 {
		cfg.Quotes.Tickers = DefaultTickers()
	}

	// Pipeline defaults
	if cfg.Pipeline.ArtifactPath == "" {
		cfg.Pipeline.ArtifactPath = "cached_index.html"
	}
	if cfg.Pipeline.ChunkSize == 0 {
		cfg.Pipeline.ChunkSize = 3
	}
	if cfg.Pipeline.RecencyWindow == 0 {
		cfg.Pipeline.RecencyWindow = Duration(24 * time.Hour)
	}
	if cfg.Pipeline.IssuesLimit == 0 {
		cfg.Pipeline.IssuesLimit = 7
	}

	// Auth defaults
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "newsdeck_session"
	}
}

// DefaultTickers returns the index tickers shown on the dashboard when no
// tickers are configured. Order is display order.
func DefaultTickers() []TickerConfig {
	return []TickerConfig{
		{Symbol: "^KS11", Name: "KOSPI"},
		{Symbol: "KRW=X", Name: "KRW/USD"},
		{Symbol: "^KQ11", Name: "KOSDAQ"},
		{Symbol: "^GSPC", Name: "S&P500"},
		{Symbol: "^IXIC", Name: "NASDAQ"},
		{Symbol: "^DJI", Name: "Dow Jones"},
		{Symbol: "^N225", Name: "Nikkei"},
		{Symbol: "000001.SS", Name: "SSE"},
	}
}
