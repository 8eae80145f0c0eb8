// Package main implements the newsdeck CLI.
//
// newsdeck aggregates clustered news-analysis documents, link previews, and
// market quotes into a rendered snapshot, and serves the latest snapshot
// over HTTP. Generation and serving are separate commands so the serving
// path never pays aggregation cost.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsdeck/internal/config"
)

var (
	configPath string
	debug      bool

	// version information (set via ldflags during build)
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	// Optional .env for local development; absence is not an error.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "newsdeck",
	Short: "Clustered-news aggregation and snapshot serving",
	Long: `newsdeck runs the news-analysis aggregation pipeline and serves its output.

The pipeline enriches cluster records with link-preview metadata and market
quotes, renders the result to a static snapshot, and persists it. A separate
lightweight server serves the persisted snapshot without re-running the
pipeline.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("newsdeck by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

// loadConfig loads configuration from the --config file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger.
func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
