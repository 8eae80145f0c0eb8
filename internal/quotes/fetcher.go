package quotes

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FetcherConfig configures the quote fetcher.
type FetcherConfig struct {
	// BaseURL is the quote-page URL prefix; the percent-encoded symbol is
	// appended (default: https://finance.yahoo.com/quote/).
	BaseURL string

	// Timeout bounds a single symbol fetch (default: 10s).
	Timeout time.Duration

	// UserAgent is sent on outbound requests.
	UserAgent string
}

// DefaultFetcherConfig returns sensible defaults.
func DefaultFetcherConfig() *FetcherConfig {
	return &FetcherConfig{
		BaseURL:   "https://finance.yahoo.com/quote/",
		Timeout:   10 * time.Second,
		UserAgent: "Mozilla/5.0",
	}
}

// Fetcher retrieves ticker quotes from the external quote page.
//
// A quote either fully resolves (price and change) or degrades to the
// unresolved sentinel for both fields. Structural drift in the source page,
// timeouts, and non-numeric text all degrade per symbol; no failure
// propagates past this boundary and no retry is attempted.
type Fetcher struct {
	config *FetcherConfig
	client *http.Client
	logger *zap.Logger
}

// NewFetcher creates a quote fetcher. client may be nil, in which case a
// client with the configured timeout is constructed. The client is shared
// across all symbol fetches, serial or concurrent.
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
	return &Fetcher{config: cfg, client: client, logger: logger}
}

// Fetch retrieves the quote for one symbol.
func (f *Fetcher) Fetch(ctx context.Context, sym Symbol) Quote {
	q := Quote{Name: sym.Display, Price: Unresolved(), Change: Unresolved()}

	doc, err := f.load(ctx, sym.Ticker)
	if err != nil {
		f.logger.Debug("quote fetch failed",
			zap.String("symbol", sym.Ticker),
			zap.Error(err))
		return q
	}

	section := doc.Find(`section[data-testid="quote-price"]`).First()
	if section.Length() == 0 {
		f.logger.Debug("quote price section missing", zap.String("symbol", sym.Ticker))
		return q
	}

	price, err := parsePrice(section.Find(`span[data-testid="qsp-price"]`).First().Text())
	if err != nil {
		f.logger.Debug("quote price parse failed",
			zap.String("symbol", sym.Ticker),
			zap.Error(err))
		return q
	}

	change, err := parseChange(section.Find(`span[data-testid="qsp-price-change-percent"]`).First().Text())
	if err != nil {
		f.logger.Debug("quote change parse failed",
			zap.String("symbol", sym.Ticker),
			zap.Error(err))
		return q
	}

	q.Price = Resolved(price)
	q.Change = Resolved(change)
	return q
}

// FetchAll fetches quotes for all symbols one at a time. The result has the
// same length and order as symbols.
//
// Serial fetching is acceptable for small symbol counts; prefer
// FetchAllConcurrent at production scale.
func (f *Fetcher) FetchAll(ctx context.Context, symbols []Symbol) []Quote {
	result := make([]Quote, len(symbols))
	for i, sym := range symbols {
		result[i] = f.Fetch(ctx, sym)
	}
	return result
}

// FetchAllConcurrent fetches all symbols concurrently over the shared client
// and joins before returning. One slow or failing symbol does not delay or
// fail the others. The result has the same length and order as symbols.
func (f *Fetcher) FetchAllConcurrent(ctx context.Context, symbols []Symbol) []Quote {
	result := make([]Quote, len(symbols))

	g := new(errgroup.Group)
	for i, sym := range symbols {
		g.Go(func() error {
			result[i] = f.Fetch(ctx, sym)
			return nil
		})
	}
	// Fetch degrades per symbol and never errors; Wait is a pure join point.
	_ = g.Wait()

	return result
}

func (f *Fetcher) load(ctx context.Context, symbol string) (*goquery.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.BaseURL+escapeSymbol(symbol), nil)
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
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, symbol)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}
	return doc, nil
}

// escapeSymbol percent-encodes every reserved character in a ticker symbol,
// including '/' and '=' (e.g. "KRW=X" -> "KRW%3DX").
func escapeSymbol(symbol string) string {
	return strings.ReplaceAll(url.QueryEscape(symbol), "+", "%20")
}

// parsePrice parses a displayed price, stripping thousands separators.
func parsePrice(text string) (float64, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if cleaned == "" {
		return 0, fmt.Errorf("empty price text")
	}
	return strconv.ParseFloat(cleaned, 64)
}

// parseChange parses a displayed percent change such as "(+1,234.56%)",
// rounded to 2 decimal places.
func parseChange(text string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.Trim(text, "()%+ "), ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("empty change text")
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, err
	}
	return math.Round(v*100) / 100, nil
}
