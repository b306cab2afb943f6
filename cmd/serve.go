package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencouncil/agendalens/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API",
		Long: `Serves the threaded agenda feed, a health probe and Prometheus
metrics over HTTP until interrupted.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			srv := server.New(a.store, a.log)
			addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
			return srv.Run(cmd.Context(), addr)
		},
	}
	return cmd
}
