package preview

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FetcherConfig configures the metadata fetcher.
type FetcherConfig struct {
	// Timeout bounds a single page retrieval (default: 5s).
	Timeout time.Duration

	// UserAgent is sent on outbound requests.
	UserAgent string

	// RatePerSec and Burst bound outbound call volume across all fetches
	// sharing this fetcher.
	RatePerSec float64
	Burst      int
}

// DefaultFetcherConfig returns sensible defaults.
func DefaultFetcherConfig() *FetcherConfig {
	return &FetcherConfig{
		Timeout:    5 * time.Second,
		UserAgent:  "Mozilla/5.0 (compatible; newsdeck/1.0)",
		RatePerSec: 10,
		Burst:      5,
	}
}

// Fetcher retrieves preview metadata for a URL.
//
// Fetch is a total function: every failure mode (unreachable host, timeout,
// non-HTML body, missing tags) degrades to a card with empty fields. No retry
// is attempted; a failed URL stays empty for the current pass.
type Fetcher struct {
	config  *FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewFetcher creates a metadata fetcher. client may be nil, in which case a
// client with the configured timeout is constructed.
func NewFetcher(cfg *FetcherConfig, client *http.Client, logger *zap.Logger) *Fetcher {
	if cfg == nil {
		cfg = DefaultFetcherConfig()
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		config:  cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		logger:  logger,
	}
}

// Fetch retrieves the Open Graph card for url. The returned card always
// carries the original URL; fields that could not be resolved are empty.
func (f *Fetcher) Fetch(ctx context.Context, url string) Card {
	if err := f.limiter.Wait(ctx); err != nil {
		return Empty(url)
	}

	doc, err := f.load(ctx, url)
	if err != nil {
		f.logger.Debug("preview fetch failed",
			zap.String("url", url),
			zap.Error(err))
		return Empty(url)
	}

	return Card{
		URL:         url,
		Title:       metaContent(doc, "og:title"),
		Description: metaContent(doc, "og:description"),
		Image:       metaContent(doc, "og:image"),
	}
}

func (f *Fetcher) load(ctx context.Context, url string) (*goquery.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}
	return doc, nil
}

// metaContent returns the content of <meta property=prop>, falling back to
// the same-named <meta name=prop> when the OG form is absent.
func metaContent(doc *goquery.Document, prop string) string {
	sel := doc.Find(fmt.Sprintf("meta[property=%q]", prop))
	if sel.Length() == 0 {
		sel = doc.Find(fmt.Sprintf("meta[name=%q]", prop))
	}
	content, _ := sel.First().Attr("content")
	return content
}
