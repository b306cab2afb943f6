// Package cmd defines and implements the CLI commands for the agendalens
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencouncil/agendalens/internal/config"
	"github.com/opencouncil/agendalens/internal/logging"
	"github.com/opencouncil/agendalens/internal/metrics"
	"github.com/opencouncil/agendalens/internal/sources"
	"github.com/opencouncil/agendalens/internal/store"
)

var cfgFile string

// appKeyType is the key for storing the app in the command context.
type appKeyType string

const appKey appKeyType = "app"

// app bundles the services every subcommand needs.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	store store.Store
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// newApp is the application factory. It is a variable so tests can swap in
// a mock factory.
var newApp = func(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(log)

	metrics.Init()

	st, err := store.New(ctx, store.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.LifetimeMins) * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("connect store: %w", err)
	}

	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := st.SeedMunicipalities(ctx, sources.Municipalities()); err != nil {
		st.Close()
		return nil, fmt.Errorf("seed municipalities: %w", err)
	}

	return &app{cfg: cfg, log: log, store: st}, nil
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agendalens",
		Short: "Council meeting ingestion and summarization pipeline.",
		Long: `agendalens ingests municipal council agendas from configured source
portals, extracts discrete agenda items, augments them with AI summaries
and correspondence sentiment, and serves the threaded result as a feed.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is environment-only)")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newSummarizeCmd())
	cmd.AddCommand(newFeedbackCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point. Batch commands exit 0 even when some
// items failed; only an unhandled top-level error exits 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "agendalens: %v\n", err)
		stop()
		os.Exit(1)
	}
}
