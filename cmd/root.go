// Package cmd defines the newscrawler command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/newscrawler/internal/app"
	"github.com/JakeFAU/newscrawler/internal/config"
	"github.com/JakeFAU/newscrawler/internal/crawler"
	"github.com/JakeFAU/newscrawler/internal/logging"
)

type flags struct {
	configFile string
	seed       string
	mode       string
}

// newRootCmd creates the root command. It takes no arguments; everything is
// read from config, the environment and the flags below.
func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "newscrawler",
		Short: "Breadth-first crawler for the articles of a single news site.",
		Long: `newscrawler starts from one article URL, follows only same-domain links
that look like article pages and stores each article's markdown (or an
LLM-extracted JSON record) under <root>/<domain>/<fingerprint>/. Articles
already on disk are never fetched again, so repeated runs are cheap.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVar(&f.configFile, "config", "", "config file (YAML)")
	cmd.Flags().StringVar(&f.seed, "seed", "", "seed article URL (overrides crawl.seed_url)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "output mode: markdown or structured (overrides crawl.mode)")
	return cmd
}

func loadConfig(f flags) (config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return config.Config{}, err
	}
	if f.seed != "" {
		cfg.Crawl.SeedURL = f.seed
	}
	if f.mode != "" {
		cfg.Crawl.Mode = crawler.Mode(f.mode)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func run(ctx context.Context, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush
	zap.ReplaceGlobals(logger)

	a, err := app.New(ctx, cfg, logger)
	if errors.Is(err, crawler.ErrInvalidSeed) {
		logger.Error("could not determine target domain from seed url",
			zap.String("seed", cfg.Crawl.SeedURL), zap.Error(err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("init crawler: %w", err)
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			logger.Warn("failed to close services", zap.Error(cerr))
		}
	}()

	if _, err := a.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("crawl interrupted")
			return nil
		}
		return fmt.Errorf("run crawler: %w", err)
	}
	return nil
}

// Execute runs the root command until it finishes or the process receives
// SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "newscrawler:", err)
		stop()
		os.Exit(1)
	}
}
