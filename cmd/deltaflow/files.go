package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TFMV/deltaflow/pkg/core"
	"github.com/TFMV/deltaflow/pkg/readers"
	"github.com/TFMV/deltaflow/report"
	"github.com/spf13/cobra"
)

func newColumnsCommand() *cobra.Command {
	var (
		column string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "columns [flags] FILE...",
		Short: "List the columns of local CSV, Parquet or Arrow files",
		Long: `List the columns of local files.

With --values the distinct values of one column are printed instead, the
same way the filter picker shows them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if column != "" {
				values := readers.NewLocalValues(nil)
				for _, path := range args {
					res, err := values.ColumnUniqueValues(cmd.Context(), path, column, limit)
					if err != nil {
						return err
					}
					suffix := ""
					if res.IsTruncated {
						suffix = fmt.Sprintf(" (showing %d of %d)", len(res.Values), res.TotalUnique)
					}
					fmt.Fprintf(out, "%s.%s%s: %s\n", path, column, suffix, strings.Join(res.Values, ", "))
				}
				return nil
			}

			for _, path := range args {
				ref, err := readers.Inspect(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s\n", ref.Name, strings.Join(ref.Columns, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&column, "values", "", "Print the distinct values of this column")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of distinct values to print")
	return cmd
}

var errInvalidConfig = errors.New("delta configuration is invalid")

func newValidateCommand() *cobra.Command {
	var (
		fileA, fileB string
		format       string
		output       string
	)

	cmd := &cobra.Command{
		Use:   "validate [flags] CONFIG",
		Short: "Review a saved delta configuration",
		Long: `Review a delta configuration saved as JSON.

The review lists mandatory and optional output columns per file and the
problems that would block submission. Pass --file-a and --file-b to check
the rules against the columns of local files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := report.ConfigFromFilePath(args[0])
			if err != nil {
				return err
			}
			files, err := reviewFiles(cfg, fileA, fileB)
			if err != nil {
				return err
			}

			gen, err := report.ForFormat(format)
			if err != nil {
				return err
			}
			review := report.NewReview(cfg, files)
			if output != "" {
				if err := gen.SaveReportToFile(review, output); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Review written to %s\n", output)
			} else {
				data, err := gen.GenerateReview(review)
				if err != nil {
					return err
				}
				if _, err := cmd.OutOrStdout().Write(data); err != nil {
					return err
				}
			}
			if !review.Valid {
				return errInvalidConfig
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fileA, "file-a", "", "Local file compared as file_0")
	cmd.Flags().StringVar(&fileB, "file-b", "", "Local file compared as file_1")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Review format (text, json, html)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the review to a file instead of stdout")
	return cmd
}

// reviewFiles inspects the given local files. Files left out are described
// by the config alone, with no known columns.
func reviewFiles(cfg core.DeltaConfig, paths ...string) ([]core.FileRef, error) {
	files := make([]core.FileRef, len(paths))
	for i, path := range paths {
		if path == "" {
			files[i] = core.FileRef{Name: string(core.FileKeyFor(i))}
			if i < len(cfg.Files) && cfg.Files[i].Name != "" {
				files[i].Name = cfg.Files[i].Name
			}
			continue
		}
		ref, err := readers.Inspect(path)
		if err != nil {
			return nil, err
		}
		files[i] = ref
	}
	return files, nil
}
