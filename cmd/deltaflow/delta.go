package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/TFMV/deltaflow/pkg/core"
	"github.com/TFMV/deltaflow/pkg/writers"
	"github.com/TFMV/deltaflow/report"
	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newHealthCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the delta service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := c.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", c.cfg.API.BaseURL, status.Status)
			return nil
		},
	}
}

// SubmitOptions represents the options for the submit command.
type SubmitOptions struct {
	FileA        string
	FileB        string
	ProcessName  string
	Requirements string
	Format       string
	NoSpinner    bool
}

func newSubmitCommand(c *cli) *cobra.Command {
	options := &SubmitOptions{Format: "text"}

	cmd := &cobra.Command{
		Use:   "submit [flags] CONFIG",
		Short: "Submit a saved delta configuration for processing",
		Long: `Submit a delta configuration saved as JSON.

--file-a and --file-b are the backend ids of the two uploaded files. The
configuration is validated locally first and nothing is sent when it is
invalid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := report.ConfigFromFilePath(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%w: %w", errInvalidConfig, err)
			}
			gen, err := report.ForFormat(options.Format)
			if err != nil {
				return err
			}

			req := core.ProcessRequest{
				ProcessType:      core.ProcessTypeDelta,
				ProcessName:      options.ProcessName,
				UserRequirements: cfg.UserRequirements,
				Files: []core.ProcessFile{
					{FileID: options.FileA, Role: core.File0},
					{FileID: options.FileB, Role: core.File1},
				},
				DeltaConfig: cfg,
			}
			if req.ProcessName == "" {
				req.ProcessName = c.cfg.Wizard.ProcessName
			}
			if options.Requirements != "" {
				req.UserRequirements = options.Requirements
				req.DeltaConfig.UserRequirements = options.Requirements
			}

			var spin *spinner.Spinner
			if !options.NoSpinner {
				spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				spin.Suffix = " Generating delta..."
				spin.Start()
			}
			res, err := c.client().ProcessDelta(cmd.Context(), req)
			if spin != nil {
				spin.Stop()
			}
			if err != nil {
				return err
			}

			data, err := gen.GenerateResultSummary(*res)
			if err != nil {
				return err
			}
			if _, err := cmd.OutOrStdout().Write(data); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("delta generation was not successful")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&options.FileA, "file-a", "", "Backend id of the file compared as file_0")
	cmd.Flags().StringVar(&options.FileB, "file-b", "", "Backend id of the file compared as file_1")
	cmd.Flags().StringVar(&options.ProcessName, "name", "", "Process name (defaults to wizard.process_name)")
	cmd.Flags().StringVar(&options.Requirements, "requirements", "", "Override the user requirements of the config")
	cmd.Flags().StringVarP(&options.Format, "format", "f", options.Format, "Summary format (text, json, html)")
	cmd.Flags().BoolVar(&options.NoSpinner, "no-spinner", false, "Do not show progress while waiting")
	_ = cmd.MarkFlagRequired("file-a")
	_ = cmd.MarkFlagRequired("file-b")
	return cmd
}

func resultTypeFlag(value string) (core.ResultType, error) {
	rt := core.ResultType(value)
	if !rt.Valid() {
		return "", fmt.Errorf("unknown result type %q", value)
	}
	return rt, nil
}

// morePages reports whether another page follows page. The page number is
// tracked locally since backends may omit it from the response.
func morePages(p core.Pagination, page int) bool {
	if !p.HasNext {
		return false
	}
	return p.TotalPages <= 0 || page < p.TotalPages
}

func newResultsCommand(c *cli) *cobra.Command {
	var (
		resultType string
		page       int
		pageSize   int
		output     string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "results [flags] DELTA_ID",
		Short: "Print or export delta results",
		Long: `Print a page of delta results as JSON.

With --output the rows are written to a local file instead, in the format
of its extension (.csv, .parquet, .arrow or .json). --all fetches every
page from --page onwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resultTypeFlag(resultType)
			if err != nil {
				return err
			}
			if output != "" {
				if _, err := writers.DetectType(output); err != nil {
					return err
				}
			}

			client := c.client()
			query := core.ResultsQuery{ResultType: rt, Page: max(page, 1), PageSize: pageSize}
			res, err := client.DeltaResults(cmd.Context(), args[0], query)
			if err != nil {
				return err
			}
			rows := res.Data
			for all && morePages(res.Pagination, query.Page) {
				query.Page++
				if res, err = client.DeltaResults(cmd.Context(), args[0], query); err != nil {
					return err
				}
				if len(res.Data) == 0 {
					break
				}
				rows = append(rows, res.Data...)
			}

			if output == "" {
				if all {
					res.Data = rows
				}
				return printJSON(cmd.OutOrStdout(), res)
			}
			n, err := writers.WriteRows(cmd.Context(), output, rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d %s rows to %s\n", n, rt, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&resultType, "type", "t", string(core.ResultAll), "Partition (all, unchanged, amended, deleted, newly_added)")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 50, "Records per page")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Export rows to a .csv, .parquet, .arrow or .json file")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every remaining page")
	return cmd
}

func newSummaryCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "summary DELTA_ID",
		Short: "Print the record counts of a delta",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := c.client().DeltaSummary(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func newDownloadCommand(c *cli) *cobra.Command {
	var (
		format     string
		resultType string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "download [flags] DELTA_ID",
		Short: "Download a result partition as CSV or Excel",
		Long: `Download a result partition.

The file is written into the --output directory under the name the
service suggests, or to --output itself when it is not a directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resultTypeFlag(resultType)
			if err != nil {
				return err
			}
			df := core.DownloadFormat(format)
			if df != core.FormatCSV && df != core.FormatExcel {
				return fmt.Errorf("unknown download format %q", format)
			}

			dir, target := output, ""
			if info, err := os.Stat(output); err != nil || !info.IsDir() {
				dir, target = filepath.Dir(output), output
			}
			tmp, err := os.CreateTemp(dir, ".deltaflow-download-*")
			if err != nil {
				return err
			}
			defer os.Remove(tmp.Name())

			dl, err := c.client().DownloadResults(cmd.Context(), args[0], df, rt, tmp)
			if cerr := tmp.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			if target == "" {
				target = filepath.Join(dir, dl.Filename)
			}
			if err := os.Rename(tmp.Name(), target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s (%d bytes)\n", target, dl.Size)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(core.FormatCSV), "Download format (csv, excel)")
	cmd.Flags().StringVarP(&resultType, "type", "t", string(core.ResultAll), "Partition (all, unchanged, amended, deleted, newly_added)")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Output directory or file")
	return cmd
}

func newSaveCommand(c *cli) *cobra.Command {
	var req core.SaveResultsRequest
	var resultType, format string

	cmd := &cobra.Command{
		Use:   "save [flags] DELTA_ID",
		Short: "Save a result partition on the backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resultTypeFlag(resultType)
			if err != nil {
				return err
			}
			req.ResultID = args[0]
			req.ResultType = rt
			req.ProcessType = core.ProcessTypeDelta
			req.FileFormat = core.DownloadFormat(format)

			res, err := c.client().SaveResults(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&resultType, "type", "t", string(core.ResultAll), "Partition to save")
	cmd.Flags().StringVarP(&format, "format", "f", string(core.FormatCSV), "File format (csv, excel)")
	cmd.Flags().StringVar(&req.CustomFilename, "filename", "", "Custom file name")
	cmd.Flags().StringVar(&req.Description, "description", "", "Description stored with the result")
	return cmd
}
