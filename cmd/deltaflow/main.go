// Package main provides the entry point for the deltaflow CLI.
package main

import (
	"fmt"
	"os"

	"github.com/TFMV/deltaflow/config"
	"github.com/TFMV/deltaflow/logger"
	"github.com/TFMV/deltaflow/pkg/gateway"
	"github.com/TFMV/deltaflow/version"
	"github.com/spf13/cobra"
)

func main() {
	err := newRootCommand().Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// cli carries the settings shared by every subcommand.
type cli struct {
	configPath string
	apiURL     string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:   "deltaflow",
		Short: "deltaflow builds and submits delta configurations",
		Long: `deltaflow configures delta generation between two tabular files.

It walks a delta configuration through key rules, comparison rules, filters
and output columns, submits it to the delta service and retrieves the
unchanged, amended, deleted and newly added partitions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&c.apiURL, "api-url", "", "Override the backend API base URL")

	rootCmd.AddCommand(
		newVersionCommand(),
		newServeCommand(c),
		newHealthCommand(c),
		newColumnsCommand(),
		newValidateCommand(),
		newSubmitCommand(c),
		newResultsCommand(c),
		newSummaryCommand(c),
		newDownloadCommand(c),
		newSaveCommand(c),
		newRulesCommand(c),
		newUseCasesCommand(c),
	)
	return rootCmd
}

// setup loads .env, the config file and environment overrides, then
// configures logging.
func (c *cli) setup() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return err
	}
	if c.apiURL != "" {
		cfg.API.BaseURL = c.apiURL
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.SetLogPath(cfg.Log.File)
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
	}
	c.cfg = cfg
	return nil
}

func (c *cli) client() *gateway.Client {
	return gateway.New(c.cfg.API.BaseURL, logger.GetLogger(), nil, gateway.WithTimeout(c.cfg.API.Timeout))
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of deltaflow",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s (built %s)\n", info.Service, info.Version, info.BuildDate)
		},
	}
}
