package quotes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quotePage(price, change string) string {
	return fmt.Sprintf(`<html><body>
<section data-testid="quote-price">
  <span data-testid="qsp-price">%s</span>
  <span data-testid="qsp-price-change-percent">%s</span>
</section>
</body></html>`, price, change)
}

// newQuoteServer serves per-symbol pages keyed by request path.
func newQuoteServer(t *testing.T, pages map[string]string) (*httptest.Server, *Fetcher) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultFetcherConfig()
	cfg.BaseURL = srv.URL + "/quote/"
	return srv, NewFetcher(cfg, nil, nil)
}

func TestFetch_ResolvedQuote(t *testing.T) {
	_, f := newQuoteServer(t, map[string]string{
		"/quote/SPX": quotePage("5,123.45", "(+1.234%)"),
	})

	q := f.Fetch(context.Background(), Symbol{Ticker: "SPX", Display: "S&P500"})

	assert.Equal(t, "S&P500", q.Name)
	price, ok := q.Price.Float()
	require.True(t, ok)
	assert.InDelta(t, 5123.45, price, 1e-9)

	change, ok := q.Change.Float()
	require.True(t, ok)
	assert.InDelta(t, 1.23, change, 1e-9, "change is rounded to 2 decimals")
}

func TestFetch_NegativeChangeKeepsSign(t *testing.T) {
	_, f := newQuoteServer(t, map[string]string{
		"/quote/KQ": quotePage("812.33", "(-0.567%)"),
	})

	q := f.Fetch(context.Background(), Symbol{Ticker: "KQ", Display: "KOSDAQ"})

	change, ok := q.Change.Float()
	require.True(t, ok)
	assert.InDelta(t, -0.57, change, 1e-9)
	assert.False(t, q.Change.Positive())
}

func TestFetch_MissingSectionIsFullySentinel(t *testing.T) {
	_, f := newQuoteServer(t, map[string]string{
		"/quote/BAD": "<html><body><p>layout changed</p></body></html>",
	})

	q := f.Fetch(context.Background(), Symbol{Ticker: "BAD", Display: "Broken"})

	assert.False(t, q.Price.OK())
	assert.False(t, q.Change.OK())
	assert.Equal(t, "N/A", q.Price.String())
	assert.Equal(t, "N/A", q.Change.String())
}

func TestFetch_NonNumericPriceIsFullySentinel(t *testing.T) {
	// All-or-nothing per symbol: a bad price sentinels the change too,
	// even though the change span parses.
	_, f := newQuoteServer(t, map[string]string{
		"/quote/HALF": quotePage("--", "(+2.00%)"),
	})

	q := f.Fetch(context.Background(), Symbol{Ticker: "HALF", Display: "Half"})

	assert.False(t, q.Price.OK())
	assert.False(t, q.Change.OK())
}

func TestFetch_HTTPErrorIsSentinel(t *testing.T) {
	_, f := newQuoteServer(t, map[string]string{})

	q := f.Fetch(context.Background(), Symbol{Ticker: "GONE", Display: "Gone"})

	assert.Equal(t, "Gone", q.Name)
	assert.False(t, q.Price.OK())
}

func TestFetchAll_PreservesLengthAndOrder(t *testing.T) {
	pages := map[string]string{
		"/quote/A": quotePage("1.00", "1.00%"),
		"/quote/C": quotePage("3.00", "3.00%"),
	}
	_, f := newQuoteServer(t, pages)

	symbols := []Symbol{
		{Ticker: "A", Display: "First"},
		{Ticker: "B", Display: "Second"}, // 404s
		{Ticker: "C", Display: "Third"},
	}

	result := f.FetchAll(context.Background(), symbols)

	require.Len(t, result, 3)
	assert.Equal(t, "First", result[0].Name)
	assert.Equal(t, "Second", result[1].Name)
	assert.Equal(t, "Third", result[2].Name)
	assert.True(t, result[0].Price.OK())
	assert.False(t, result[1].Price.OK())
	assert.True(t, result[2].Price.OK())
}

func TestFetchAllConcurrent_MatchesSerial(t *testing.T) {
	pages := map[string]string{
		"/quote/A": quotePage("1,000.50", "(+0.10%)"),
		"/quote/B": quotePage("2.75", "(-4.333%)"),
	}
	_, f := newQuoteServer(t, pages)

	symbols := []Symbol{
		{Ticker: "A", Display: "A"},
		{Ticker: "B", Display: "B"},
		{Ticker: "missing", Display: "M"},
	}

	serial := f.FetchAll(context.Background(), symbols)
	concurrent := f.FetchAllConcurrent(context.Background(), symbols)

	assert.Equal(t, serial, concurrent)
}

func TestFetchAllConcurrent_EmptyInput(t *testing.T) {
	_, f := newQuoteServer(t, nil)

	result := f.FetchAllConcurrent(context.Background(), nil)

	assert.Empty(t, result)
}

func TestEscapeSymbol(t *testing.T) {
	assert.Equal(t, "%5EGSPC", escapeSymbol("^GSPC"))
	assert.Equal(t, "KRW%3DX", escapeSymbol("KRW=X"))
	assert.Equal(t, "000001.SS", escapeSymbol("000001.SS"))
	assert.Equal(t, "A%20B", escapeSymbol("A B"))
}

func TestParsePrice(t *testing.T) {
	v, err := parsePrice(" 1,234,567.89 ")
	require.NoError(t, err)
	assert.InDelta(t, 1234567.89, v, 1e-9)

	_, err = parsePrice("")
	assert.Error(t, err)

	_, err = parsePrice("n/a")
	assert.Error(t, err)
}

func TestParseChange(t *testing.T) {
	v, err := parseChange("(+1,234.567%)")
	require.NoError(t, err)
	assert.InDelta(t, 1234.57, v, 1e-9)

	v, err = parseChange("-0.005%")
	require.NoError(t, err)
	assert.InDelta(t, -0.01, v, 1e-9)

	_, err = parseChange("()")
	assert.Error(t, err)
}
