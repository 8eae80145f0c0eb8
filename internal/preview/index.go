package preview

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Index maps URL to its preview card. It is built once per aggregation pass
// from the bulk article listing, so the pass performs O(distinct articles)
// fetches rather than one fetch per cluster-link occurrence.
//
// Lookups for unknown URLs return a well-formed empty card, never fail.
type Index struct {
	mu    sync.RWMutex
	cards map[string]Card
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{cards: make(map[string]Card)}
}

// Lookup returns the card for url, or the empty card carrying url when the
// index has no entry for it.
func (idx *Index) Lookup(url string) Card {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if c, ok := idx.cards[url]; ok {
		return c
	}
	return Empty(url)
}

// Has reports whether url has an entry.
func (idx *Index) Has(url string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	_, ok := idx.cards[url]
	return ok
}

// Put stores a card under its URL.
func (idx *Index) Put(c Card) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.cards[c.URL] = c
}

// Len returns the number of indexed URLs.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.cards)
}

// BuildIndex fetches preview cards for every distinct URL in urls with
// bounded concurrency and returns the populated index.
//
// Duplicate URLs are fetched once. Individual fetch failures produce empty
// cards; BuildIndex itself never fails.
func BuildIndex(ctx context.Context, f *Fetcher, urls []string, concurrency int, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}

	idx := NewIndex()

	seen := make(map[string]struct{}, len(urls))
	distinct := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		distinct = append(distinct, u)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, u := range distinct {
		g.Go(func() error {
			idx.Put(f.Fetch(gctx, u))
			return nil
		})
	}
	// Workers never return errors; Wait is a pure join point.
	_ = g.Wait()

	logger.Debug("metadata index built",
		zap.Int("urls", len(urls)),
		zap.Int("distinct", len(distinct)))

	return idx
}
