package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/TFMV/deltaflow/api"
	"github.com/TFMV/deltaflow/logger"
	"github.com/TFMV/deltaflow/pkg/readers"
	"github.com/spf13/cobra"
)

func newServeCommand(c *cli) *cobra.Command {
	var (
		port        string
		localValues bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the wizard session server",
		Long: `Start the wizard session server.

Sessions are created for two files and driven by posting intents. With
--local-values the file ids are treated as local paths and unique values
for filter pickers are read from the files instead of the backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := c.client()
			opts := api.ServerOptions{
				Port:              c.cfg.Server.Port,
				Prefork:           c.cfg.Server.Prefork,
				Backend:           client,
				Values:            client,
				Rules:             client,
				UniqueValuesLimit: c.cfg.Wizard.UniqueValuesLimit,
				ProcessName:       c.cfg.Wizard.ProcessName,
				Logger:            logger.GetLogger(),
			}
			if port != "" {
				opts.Port = port
			}
			if localValues {
				opts.Values = readers.NewLocalValues(nil)
				opts.Inspect = readers.Inspect
			}

			// Stop on interrupt or termination.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return api.NewServer(opts).Start(ctx)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides server.port)")
	cmd.Flags().BoolVar(&localValues, "local-values", false, "Read columns and unique values from local files")
	return cmd
}
