package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opencouncil/agendalens/internal/feedback"
	"github.com/opencouncil/agendalens/internal/llm"
)

func newFeedbackCmd() *cobra.Command {
	var (
		dryRun bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Analyze public-correspondence sentiment for sampled meetings",
		Long: `Sweeps meetings holding an unprocessed correspondence sample, extracts
a sentiment breakdown via the completion service, matches it to the
agenda item the letters concern, and upserts the feedback record.`,

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

			o := feedback.New(a.store, completer, a.log, a.cfg.LLM.Delay())
			res, err := o.Run(cmd.Context(), feedback.Options{
				DryRun: dryRun,
				Force:  force,
				Limit:  a.cfg.Feedback.Limit,
			})
			if err != nil {
				return err
			}
			a.log.Info("feedback done",
				zap.Int("processed", res.Processed),
				zap.Int("failed", res.Failed))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print sentiment results without writing anything")
	cmd.Flags().BoolVar(&force, "force", false, "reprocess meetings that already produced feedback")

	return cmd
}
