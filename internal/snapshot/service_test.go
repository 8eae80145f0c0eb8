package snapshot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsdeck/internal/cluster"
	"github.com/fyrsmithlabs/newsdeck/internal/preview"
	"github.com/fyrsmithlabs/newsdeck/internal/quotes"
)

// mockSource is an in-memory ClusterSource.
type mockSource struct {
	clusters    map[string][]cluster.Record
	clusterErr  map[string]error
	articles    []string
	articlesErr error
}

func (m *mockSource) Clusters(ctx context.Context, collection string) ([]cluster.Record, error) {
	if err := m.clusterErr[collection]; err != nil {
		return nil, err
	}
	return m.clusters[collection], nil
}

func (m *mockSource) ArticleURLs(ctx context.Context, collection string) ([]string, error) {
	if m.articlesErr != nil {
		return nil, m.articlesErr
	}
	return m.articles, nil
}

// newTestService wires a service against an httptest-backed quote server.
// The server 404s everything, so quotes come back sentineled unless pages
// are provided. Article URLs in src must point at their own test server.
func newTestService(t *testing.T, cfg *Config, src *mockSource, quotePages map[string]string) Service {
	t.Helper()

	quoteSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := quotePages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page)
	}))
	t.Cleanup(quoteSrv.Close)

	qcfg := quotes.DefaultFetcherConfig()
	qcfg.BaseURL = quoteSrv.URL + "/quote/"

	svc, err := NewService(cfg,
		src,
		preview.NewFetcher(nil, nil, nil),
		quotes.NewFetcher(qcfg, nil, nil),
		zap.NewNop(),
	)
	require.NoError(t, err)
	return svc
}

func fixedNow(t *testing.T, svc Service, now time.Time) {
	t.Helper()
	svc.(*service).now = func() time.Time { return now }
}

func TestNewService_RequiresSource(t *testing.T) {
	_, err := NewService(nil, nil, preview.NewFetcher(nil, nil, nil), quotes.NewFetcher(nil, nil, nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cluster source is required")
}

func TestNewService_RequiresFetchers(t *testing.T) {
	src := &mockSource{}

	_, err := NewService(nil, src, nil, quotes.NewFetcher(nil, nil, nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preview fetcher is required")

	_, err = NewService(nil, src, preview.NewFetcher(nil, nil, nil), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quote fetcher is required")
}

func TestRun_EmptyPartitionsNonEmptyTickers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IssuesPartition = "issues"
	cfg.CountryPartitions = []string{"country1", "country2"}
	cfg.ArticlesCollection = "articles"
	cfg.Symbols = []quotes.Symbol{
		{Ticker: "AAA", Display: "Alpha"},
		{Ticker: "BBB", Display: "Beta"},
	}

	svc := newTestService(t, cfg, &mockSource{}, nil)

	snap, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, snap.Issues.Raw)
	assert.Empty(t, snap.Issues.Groups)
	require.Len(t, snap.Countries, 2)
	for _, c := range snap.Countries {
		assert.Empty(t, c.Raw)
		assert.Empty(t, c.Enriched)
		assert.Empty(t, c.Groups)
	}

	// One quote per ticker, input order, each fully sentineled.
	require.Len(t, snap.Quotes, 2)
	assert.Equal(t, "Alpha", snap.Quotes[0].Name)
	assert.Equal(t, "Beta", snap.Quotes[1].Name)
	assert.False(t, snap.Quotes[0].Price.OK())
	assert.False(t, snap.Quotes[1].Price.OK())
	assert.False(t, snap.GeneratedAt.IsZero())
}

func TestRun_PartitionFailureIsIsolated(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	good := []cluster.Record{{ID: "2024-01-05 06:00:00_a"}}

	cfg := DefaultConfig()
	cfg.IssuesPartition = "issues"
	cfg.CountryPartitions = []string{"broken", "healthy"}
	cfg.ArticlesCollection = "articles"

	src := &mockSource{
		clusters: map[string][]cluster.Record{
			"issues":  good,
			"healthy": good,
		},
		clusterErr: map[string]error{
			"broken": errors.New("collection scan failed"),
		},
	}

	svc := newTestService(t, cfg, src, nil)
	fixedNow(t, svc, now)

	snap, err := svc.Run(context.Background())
	require.NoError(t, err, "one broken partition must not abort the pass")

	require.Len(t, snap.Countries, 2)
	assert.Equal(t, "broken", snap.Countries[0].Name)
	assert.Empty(t, snap.Countries[0].Raw)
	assert.Len(t, snap.Countries[1].Raw, 1)
	assert.Len(t, snap.Issues.Raw, 1)
}

func TestRun_ArticleListingFailureDegradesPreviews(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	cfg := DefaultConfig()
	cfg.IssuesPartition = "issues"
	cfg.ArticlesCollection = "articles"

	src := &mockSource{
		clusters: map[string][]cluster.Record{
			"issues": {{ID: "2024-01-05 06:00:00_a", Links: []string{"https://example.com/x"}}},
		},
		articlesErr: errors.New("listing unavailable"),
	}

	svc := newTestService(t, cfg, src, nil)
	fixedNow(t, svc, now)

	snap, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Issues.Enriched, 1)
	require.Len(t, snap.Issues.Enriched[0].Cards, 1)
	card := snap.Issues.Enriched[0].Cards[0]
	assert.Equal(t, "https://example.com/x", card.URL)
	assert.True(t, card.IsEmpty())
}

func TestRun_IssuesLimitTruncates(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	records := make([]cluster.Record, 10)
	for i := range records {
		records[i] = cluster.Record{ID: fmt.Sprintf("2024-01-05 06:00:%02d_r", i)}
	}

	cfg := DefaultConfig()
	cfg.IssuesPartition = "issues"
	cfg.ArticlesCollection = "articles"
	cfg.IssuesLimit = 7

	src := &mockSource{clusters: map[string][]cluster.Record{"issues": records}}

	svc := newTestService(t, cfg, src, nil)
	fixedNow(t, svc, now)

	snap, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, snap.Issues.Raw, 7)
	assert.Len(t, snap.Issues.Enriched, 7)
}

func TestRun_FiltersAndChunks(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	records := []cluster.Record{
		{ID: "2024-01-05 10:00:00_a"},
		{ID: "2024-01-05 09:00:00_b"},
		{ID: "2024-01-05 08:00:00_c"},
		{ID: "2024-01-05 07:00:00_d"},
		{ID: "2023-12-01 00:00:00_old"},
		{ID: "garbage-id"},
	}

	cfg := DefaultConfig()
	cfg.IssuesPartition = "issues"
	cfg.ArticlesCollection = "articles"
	cfg.IssuesLimit = 0 // no truncation
	cfg.ChunkSize = 3

	src := &mockSource{clusters: map[string][]cluster.Record{"issues": records}}

	svc := newTestService(t, cfg, src, nil)
	fixedNow(t, svc, now)

	snap, err := svc.Run(context.Background())
	require.NoError(t, err)

	// Raw keeps everything, groups keep only the four recent records.
	assert.Len(t, snap.Issues.Raw, 6)
	require.Len(t, snap.Issues.Groups, 2)
	assert.Len(t, snap.Issues.Groups[0], 3)
	assert.Len(t, snap.Issues.Groups[1], 1)
	assert.Equal(t, "2024-01-05 07:00:00_d", snap.Issues.Groups[1][0].ID)
}

func TestRun_EnrichesFromArticleIndex(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	articleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><head><meta property="og:title" content="title of %s"></head></html>`, r.URL.Path)
	}))
	defer articleSrv.Close()

	linkA := articleSrv.URL + "/a"
	linkB := articleSrv.URL + "/b"

	cfg := DefaultConfig()
	cfg.IssuesPartition = "issues"
	cfg.ArticlesCollection = "articles"

	src := &mockSource{
		clusters: map[string][]cluster.Record{
			"issues": {
				{ID: "2024-01-05 10:00:00_a", Links: []string{linkA, linkB}},
				{ID: "2024-01-05 09:00:00_b", Links: []string{linkA}},
			},
		},
		articles: []string{linkA, linkB},
	}

	svc := newTestService(t, cfg, src, nil)
	fixedNow(t, svc, now)

	snap, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Issues.Enriched, 2)
	assert.Equal(t, "title of /a", snap.Issues.Enriched[0].Cards[0].Title)
	assert.Equal(t, "title of /b", snap.Issues.Enriched[0].Cards[1].Title)
	assert.Equal(t, snap.Issues.Enriched[0].Cards[0], snap.Issues.Enriched[1].Cards[0],
		"clusters sharing a link see the identical card")
}

func TestGenerate_WritesArtifact(t *testing.T) {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	cfg := DefaultConfig()
	cfg.IssuesPartition = "issues"
	cfg.ArticlesCollection = "articles"
	cfg.ArtifactPath = t.TempDir() + "/cached_index.html"
	cfg.Symbols = []quotes.Symbol{{Ticker: "AAA", Display: "Alpha"}}

	svc := newTestService(t, cfg, &mockSource{}, nil)
	fixedNow(t, svc, now)

	require.NoError(t, svc.Generate(context.Background()))

	data, err := LoadArtifact(cfg.ArtifactPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<!-- generated 2024-01-05T12:00:00Z -->")
	assert.Contains(t, string(data), "Alpha")
	assert.Contains(t, string(data), "N/A")
}
