package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pricetrace/pricetrace/internal/config"
	"github.com/pricetrace/pricetrace/internal/job"
	"github.com/pricetrace/pricetrace/internal/logging"
	"github.com/pricetrace/pricetrace/internal/notion"
	"github.com/pricetrace/pricetrace/internal/scraper"
	"github.com/pricetrace/pricetrace/internal/store"
)

var (
	cfgFile string
	verbose bool
	runNow  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pricetrace",
		Short: "PriceTrace — product price monitor",
		Long: `PriceTrace tracks product prices across marketplaces.

Features:
  • Mercado Libre and Amazon adapters with fallback extraction cascades
  • Daily scheduled batch runs with per-product isolation
  • Append-only price history with windowed statistics
  • Retry with linear backoff and anti-bot block detection
  • Best-effort Notion dashboard sync`,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(daemonCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(removeCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the wired application for one command invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	runner *job.Runner
}

// setup loads config and wires storage, scrapers and the runner. Every
// subcommand that touches the store goes through here.
func setup() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(cfg.Logging)

	db, err := store.Open(cfg.Database.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	st := store.New(db, logger)

	registry := scraper.NewRegistry(scraper.OptionsFromConfig(cfg.Scraper), logger)
	retrier := scraper.NewRetrier(cfg.Scraper.MaxRetries, cfg.Scraper.RetryDelay, logger)

	var syncer job.Syncer
	if cfg.Notion.Enabled {
		client := notion.NewClient(cfg.Notion, logger)
		if err := client.ValidateConnection(context.Background()); err != nil {
			logger.Warn("notion connection check failed, sync stays enabled", "error", err)
		}
		syncer = notion.NewSyncer(client, st, logger)
	}

	runner := job.NewRunner(st, registry, retrier, syncer, logger)
	return &app{cfg: cfg, logger: logger, store: st, runner: runner}, nil
}

// daemonCmd creates the "daemon" subcommand.
func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the daily scheduler until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}

			sched := job.NewScheduler(a.runner, a.cfg.Scheduler.Hour, a.cfg.Scheduler.Minute, a.logger)
			sched.Start()

			if runNow {
				report := sched.RunNow(cmd.Context())
				fmt.Println(report.Summary())
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			sig := <-sigCh
			a.logger.Info("received signal, shutting down", "signal", sig)

			sched.Stop()
			return nil
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run a batch immediately on startup")
	return cmd
}

// runCmd creates the "run" subcommand for one synchronous batch.
func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one batch over all tracked products",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}

			report := a.runner.RunBatch(cmd.Context())
			fmt.Println(report.Summary())
			for _, msg := range report.Errors {
				fmt.Printf("  ✗ %s\n", msg)
			}
			if report.NotionSync != nil {
				fmt.Printf("Notion: %d synced, %d failed, %d skipped\n",
					report.NotionSync.Synced, report.NotionSync.Failed, report.NotionSync.Skipped)
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d products failed", report.Failed, report.Total)
			}
			return nil
		},
	}
}

// scrapeCmd creates the "scrape" subcommand: extract once, print, store
// nothing.
func scrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape [url]",
		Short: "Scrape a URL once without persisting anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawURL := args[0]
			if err := config.ValidateURL(rawURL); err != nil {
				return fmt.Errorf("invalid URL %q: %w", rawURL, err)
			}

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logging.New(cfg.Logging)

			registry := scraper.NewRegistry(scraper.OptionsFromConfig(cfg.Scraper), logger)
			s, err := registry.Resolve(rawURL)
			if err != nil {
				return err
			}

			result, err := s.Scrape(cmd.Context(), rawURL)
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}

			fmt.Printf("Platform:     %s\n", s.Platform())
			fmt.Printf("Product ID:   %s\n", result.ProductID)
			fmt.Printf("Name:         %s\n", result.Name)
			fmt.Printf("Price:        %s %s\n", result.Price.StringFixed(2), result.Currency)
			if result.OriginalPrice != nil {
				fmt.Printf("Original:     %s %s\n", result.OriginalPrice.StringFixed(2), result.Currency)
			}
			if result.DiscountPercent != nil {
				fmt.Printf("Discount:     %s%%\n", result.DiscountPercent.StringFixed(2))
			}
			fmt.Printf("Availability: %s\n", result.Availability)
			if result.ImageURL != "" {
				fmt.Printf("Image:        %s\n", result.ImageURL)
			}
			return nil
		},
	}
}

// addCmd creates the "add" subcommand to start tracking a product.
func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add [url]",
		Short: "Start tracking a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}

			p, err := a.runner.Track(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("✅ Tracking %q (id %d, platform %s)\n", p.Name, p.ID, p.Platform)
			return nil
		},
	}
}

// removeCmd creates the "remove" subcommand to stop tracking a product.
func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [id]",
		Short: "Stop tracking a product and delete its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}

			a, err := setup()
			if err != nil {
				return err
			}
			if err := a.runner.Untrack(cmd.Context(), uint(id)); err != nil {
				return err
			}
			fmt.Printf("Removed product %d\n", id)
			return nil
		},
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("PriceTrace %s\n", config.Version)
		},
	}
}
