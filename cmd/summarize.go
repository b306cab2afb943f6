package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencouncil/agendalens/internal/llm"
	"github.com/opencouncil/agendalens/internal/summarize"
)

func newSummarizeCmd() *cobra.Command {
	var (
		dryRun bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Generate AI summaries for items that have none",
		Long: `Sweeps agenda items lacking AI output, in ascending creation order,
and writes multi-level summaries, categories, tags and significance.
Individual item failures are logged and counted; the sweep continues.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			completer := llm.NewClient(llm.Config{
				BaseURL:   a.cfg.LLM.BaseURL,
				Model:     a.cfg.LLM.Model,
				APIKeyEnv: a.cfg.LLM.APIKeyEnv,
				MaxTokens: a.cfg.LLM.MaxTokens,
			})

			o := summarize.New(a.store, completer, a.log, a.cfg.LLM.Delay())
			res, err := o.Run(cmd.Context(), summarize.Options{
				DryRun: dryRun,
				Force:  force,
				Limit:  a.cfg.Summarize.Limit,
			})
			if err != nil {
				return err
			}
			a.log.Info("summarize done",
				zap.Int("processed", res.Processed),
				zap.Int("failed", res.Failed))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print summaries without writing anything")
	cmd.Flags().BoolVar(&force, "force", false, "reprocess items that already have a summary")

	return cmd
}
