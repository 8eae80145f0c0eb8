// Package snapshot orchestrates one aggregation pass over the cluster
// partitions and serves its output as an immutable, renderable snapshot.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/newsdeck/internal/cluster"
	"github.com/fyrsmithlabs/newsdeck/internal/preview"
	"github.com/fyrsmithlabs/newsdeck/internal/quotes"
)

const instrumentationName = "github.com/fyrsmithlabs/newsdeck/internal/snapshot"

// ClusterSource is the read-only view of the document store the pipeline
// needs. *store.Store satisfies it.
type ClusterSource interface {
	// Clusters loads a partition sorted by identifier descending. Missing
	// or empty collections yield an empty slice, not an error.
	Clusters(ctx context.Context, collection string) ([]cluster.Record, error)

	// ArticleURLs lists the source URLs of all ingested articles.
	ArticleURLs(ctx context.Context, collection string) ([]string, error)
}

// Service runs aggregation passes.
type Service interface {
	// Run executes one full pass and returns the assembled snapshot.
	Run(ctx context.Context) (*Snapshot, error)

	// Generate runs a pass, renders it, and persists the artifact.
	Generate(ctx context.Context) error
}

// Config configures the snapshot pipeline.
type Config struct {
	// IssuesPartition is the collection holding the issue clusters.
	IssuesPartition string

	// CountryPartitions are the per-country cluster collections, in
	// display order.
	CountryPartitions []string

	// ArticlesCollection is the bulk article listing seeding the metadata
	// index.
	ArticlesCollection string

	// IssuesLimit truncates the issues partition before enrichment
	// (default: 7).
	IssuesLimit int

	// ChunkSize is the display group size (default: 3).
	ChunkSize int

	// RecencyWindow drops records older than now minus the window
	// (default: 24h).
	RecencyWindow time.Duration

	// Symbols are the ticker symbols to quote, in display order.
	Symbols []quotes.Symbol

	// ConcurrentQuotes selects the fan-out quote fetcher. The serial
	// variant remains available for small symbol counts.
	ConcurrentQuotes bool

	// IndexConcurrency bounds concurrent metadata fetches while building
	// the index (default: 8).
	IndexConcurrency int

	// ArtifactPath is where Generate persists the rendered snapshot.
	ArtifactPath string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		IssuesLimit:      7,
		ChunkSize:        3,
		RecencyWindow:    24 * time.Hour,
		ConcurrentQuotes: true,
		IndexConcurrency: 8,
		ArtifactPath:     "cached_index.html",
	}
}

// service implements the Service interface.
type service struct {
	config   *Config
	source   ClusterSource
	previews *preview.Fetcher
	quotes   *quotes.Fetcher
	renderer *Renderer
	logger   *zap.Logger

	// Telemetry
	tracer            trace.Tracer
	meter             metric.Meter
	passCounter       metric.Int64Counter
	partitionFailures metric.Int64Counter

	now func() time.Time
}

// NewService creates the snapshot pipeline service.
func NewService(cfg *Config, source ClusterSource, pf *preview.Fetcher, qf *quotes.Fetcher, logger *zap.Logger) (Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if source == nil {
		return nil, errors.New("cluster source is required")
	}
	if pf == nil {
		return nil, errors.New("preview fetcher is required")
	}
	if qf == nil {
		return nil, errors.New("quote fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 3
	}
	if cfg.IndexConcurrency < 1 {
		cfg.IndexConcurrency = 8
	}

	renderer, err := NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	s := &service{
		config:   cfg,
		source:   source,
		previews: pf,
		quotes:   qf,
		renderer: renderer,
		logger:   logger,
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
		now:      time.Now,
	}

	s.initMetrics()

	return s, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (s *service) initMetrics() {
	var err error

	s.passCounter, err = s.meter.Int64Counter(
		"newsdeck.snapshot.passes_total",
		metric.WithDescription("Total number of aggregation passes"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		s.logger.Warn("failed to create pass counter", zap.Error(err))
	}

	s.partitionFailures, err = s.meter.Int64Counter(
		"newsdeck.snapshot.partition_failures_total",
		metric.WithDescription("Partitions dropped from a pass due to load failures"),
		metric.WithUnit("{partition}"),
	)
	if err != nil {
		s.logger.Warn("failed to create partition failure counter", zap.Error(err))
	}
}

// Run executes one aggregation pass.
//
// Order is fixed: partitions load first, the metadata index is built once
// from the bulk article listing, then each partition is enriched, recency
// filtered, and chunked. Quote fetching is independent of the cluster work
// and runs in parallel with it; the pass joins on both before assembling.
//
// A failure in a single partition is isolated: the partition appears empty
// and the pass continues. Quote failures degrade per symbol inside the
// fetcher. Run itself fails only on context cancellation between steps.
func (s *service) Run(ctx context.Context) (*Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "snapshot.run")
	defer span.End()

	start := s.now()

	// Quotes are independent of steps 1-5; fetch while partitions load.
	var quoteResults []quotes.Quote
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.config.ConcurrentQuotes {
			quoteResults = s.quotes.FetchAllConcurrent(gctx, s.config.Symbols)
		} else {
			quoteResults = s.quotes.FetchAll(gctx, s.config.Symbols)
		}
		return nil
	})

	idx := s.buildIndex(ctx)

	issues := s.loadPartition(ctx, s.config.IssuesPartition, s.config.IssuesLimit, idx)

	countries := make([]PartitionView, 0, len(s.config.CountryPartitions))
	for _, name := range s.config.CountryPartitions {
		countries = append(countries, s.loadPartition(ctx, name, 0, idx))
	}

	// Join the quote fan-out; workers never error.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("pass abandoned: %w", err)
	}

	snap := &Snapshot{
		GeneratedAt: start,
		Issues:      issues,
		Countries:   countries,
		Quotes:      quoteResults,
	}

	if s.passCounter != nil {
		s.passCounter.Add(ctx, 1)
	}

	s.logger.Info("aggregation pass complete",
		zap.Int("issues", len(snap.Issues.Raw)),
		zap.Int("country_partitions", len(snap.Countries)),
		zap.Int("quotes", len(snap.Quotes)),
		zap.Int("indexed_urls", idx.Len()),
		zap.Duration("elapsed", s.now().Sub(start)),
	)

	span.SetAttributes(
		attribute.Int("issues", len(snap.Issues.Raw)),
		attribute.Int("quotes", len(snap.Quotes)),
	)

	return snap, nil
}

// Generate runs a pass, renders the snapshot, and persists the artifact.
func (s *service) Generate(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "snapshot.generate")
	defer span.End()

	snap, err := s.Run(ctx)
	if err != nil {
		span.RecordError(err)
		return err
	}

	html, err := s.renderer.Render(snap)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("render snapshot: %w", err)
	}

	if err := WriteArtifact(s.config.ArtifactPath, html); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("persist snapshot: %w", err)
	}

	s.logger.Info("snapshot artifact written",
		zap.String("path", s.config.ArtifactPath),
		zap.Int("bytes", len(html)),
	)
	return nil
}

// buildIndex builds the per-pass metadata index from the bulk article
// listing. A listing failure degrades previews to empty cards rather than
// failing the pass.
func (s *service) buildIndex(ctx context.Context) *preview.Index {
	urls, err := s.source.ArticleURLs(ctx, s.config.ArticlesCollection)
	if err != nil {
		s.logger.Warn("article listing failed, previews will be empty",
			zap.String("collection", s.config.ArticlesCollection),
			zap.Error(err))
		return preview.NewIndex()
	}
	return preview.BuildIndex(ctx, s.previews, urls, s.config.IndexConcurrency, s.logger)
}

// loadPartition loads, enriches, filters, and chunks one partition. limit
// truncates the raw listing when positive. Failures are isolated to the
// partition: the view comes back empty and the pass continues.
func (s *service) loadPartition(ctx context.Context, name string, limit int, idx *preview.Index) PartitionView {
	view := PartitionView{
		Name:     name,
		Raw:      []cluster.Record{},
		Enriched: []cluster.Enriched{},
		Groups:   [][]cluster.Enriched{},
	}

	records, err := s.source.Clusters(ctx, name)
	if err != nil {
		s.logger.Error("partition load failed, continuing without it",
			zap.String("partition", name),
			zap.Error(err))
		if s.partitionFailures != nil {
			s.partitionFailures.Add(ctx, 1, metric.WithAttributes(
				attribute.String("partition", name),
			))
		}
		return view
	}

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	view.Raw = records
	view.Enriched = cluster.Enrich(records, idx)
	recent := cluster.FilterRecent(view.Enriched, s.config.RecencyWindow, s.now())
	view.Groups = cluster.Chunk(recent, s.config.ChunkSize)
	return view
}
