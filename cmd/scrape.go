package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencouncil/agendalens/internal/fetch"
	"github.com/opencouncil/agendalens/internal/scrape"
	"github.com/opencouncil/agendalens/internal/sources"
)

func newScrapeCmd() *cobra.Command {
	var (
		dryRun     bool
		sourceCode string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Ingest meetings and agenda items from the configured sources",
		Long: `Runs one ingestion pass per source: discovers meeting links, fetches
and parses each agenda document, samples public correspondence, and
upserts the results. Each source runs independently; a failure in one
does not stop the others.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			srcs := sources.Registry()
			if sourceCode != "" {
				src, ok := sources.ByCode(sourceCode)
				if !ok {
					return fmt.Errorf("unknown source %q", sourceCode)
				}
				srcs = []sources.Source{src}
			}

			client := fetch.NewClient(fetch.Config{
				UserAgent:      a.cfg.HTTP.UserAgent,
				Timeout:        a.cfg.HTTP.Timeout(),
				MaxRetries:     a.cfg.HTTP.MaxRetries,
				BackoffInitial: a.cfg.HTTP.BackoffInitial(),
			})

			var renderer scrape.Renderer
			if a.cfg.Headless.Enabled {
				r, err := fetch.NewRenderer(fetch.RendererConfig{
					UserAgent:         a.cfg.HTTP.UserAgent,
					NavigationTimeout: time.Duration(a.cfg.Headless.NavTimeoutSec) * time.Second,
				})
				if err != nil {
					a.log.Warn("headless renderer init failed, continuing without it", zap.Error(err))
				} else {
					renderer = r
					defer r.Close()
				}
			}

			coord := scrape.New(client, renderer, a.store, a.log, a.cfg.HTTP.Delay())

			var errs []error
			for _, src := range srcs {
				res, err := coord.Run(cmd.Context(), src, scrape.Options{
					DryRun: dryRun,
					Limit:  a.cfg.Scrape.Limit,
				})
				if err != nil {
					a.log.Error("source scrape failed",
						zap.String("source", src.Municipality.Code),
						zap.Error(err))
					errs = append(errs, fmt.Errorf("%s: %w", src.Municipality.Code, err))
					continue
				}
				a.log.Info("source done",
					zap.String("source", src.Municipality.Code),
					zap.Int("meetings", res.MeetingsScraped),
					zap.Int("items_new", res.ItemsNew))
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print extracted items without writing anything")
	cmd.Flags().StringVar(&sourceCode, "source", "", "scrape only this municipality code")

	return cmd
}
