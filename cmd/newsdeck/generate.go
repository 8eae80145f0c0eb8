package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsdeck/internal/config"
	"github.com/fyrsmithlabs/newsdeck/internal/preview"
	"github.com/fyrsmithlabs/newsdeck/internal/quotes"
	"github.com/fyrsmithlabs/newsdeck/internal/snapshot"
	"github.com/fyrsmithlabs/newsdeck/internal/store"
)

var every string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the aggregation pipeline and persist a snapshot",
	Long: `Run one full aggregation pass and persist the rendered snapshot artifact.

With --every, keeps running and regenerates on the given cron schedule until
interrupted. Regeneration is the out-of-band counterpart of "newsdeck serve":
the server picks up each new artifact without restarting.

Examples:
  # One pass
  newsdeck generate

  # Regenerate every 30 minutes
  newsdeck generate --every "*/30 * * * *"`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&every, "every", "", "cron schedule for repeated regeneration (runs once when empty)")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store connectivity is the one fatal dependency of a pass.
	st, err := store.Open(ctx, cfg.Store.URI.Value(), cfg.Store.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close(context.Background())
	}()

	svc, err := buildPipeline(cfg, st, logger)
	if err != nil {
		return err
	}

	if every == "" {
		return svc.Generate(ctx)
	}

	// First pass immediately, then on schedule.
	if err := svc.Generate(ctx); err != nil {
		logger.Error("initial snapshot generation failed", zap.Error(err))
	}

	sched := cron.New()
	_, err = sched.AddFunc(every, func() {
		if err := svc.Generate(ctx); err != nil {
			logger.Error("scheduled snapshot generation failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid --every schedule %q: %w", every, err)
	}

	sched.Start()
	logger.Info("snapshot regeneration scheduled", zap.String("schedule", every))

	<-ctx.Done()
	<-sched.Stop().Done()
	return nil
}

// buildPipeline wires the snapshot service from configuration. Fetchers and
// the store handle are constructed here and passed in explicitly; nothing in
// the pipeline reaches for process-wide state.
func buildPipeline(cfg *config.Config, st *store.Store, logger *zap.Logger) (snapshot.Service, error) {
	pf := preview.NewFetcher(&preview.FetcherConfig{
		Timeout:    cfg.Preview.Timeout.Duration(),
		UserAgent:  cfg.Preview.UserAgent,
		RatePerSec: cfg.Preview.RatePerSec,
		Burst:      cfg.Preview.Burst,
	}, nil, logger.Named("preview"))

	qf := quotes.NewFetcher(&quotes.FetcherConfig{
		BaseURL: cfg.Quotes.BaseURL,
		Timeout: cfg.Quotes.Timeout.Duration(),
	}, nil, logger.Named("quotes"))

	symbols := make([]quotes.Symbol, 0, len(cfg.Quotes.Tickers))
	for _, t := range cfg.Quotes.Tickers {
		symbols = append(symbols, quotes.Symbol{Ticker: t.Symbol, Display: t.Name})
	}

	return snapshot.NewService(&snapshot.Config{
		IssuesPartition:    cfg.Store.Issues,
		CountryPartitions:  cfg.Store.Countries,
		ArticlesCollection: cfg.Store.Articles,
		IssuesLimit:        cfg.Pipeline.IssuesLimit,
		ChunkSize:          cfg.Pipeline.ChunkSize,
		RecencyWindow:      cfg.Pipeline.RecencyWindow.Duration(),
		Symbols:            symbols,
		ConcurrentQuotes:   !cfg.Quotes.Serial,
		IndexConcurrency:   cfg.Preview.Concurrency,
		ArtifactPath:       cfg.Pipeline.ArtifactPath,
	}, st, pf, qf, logger.Named("snapshot"))
}
