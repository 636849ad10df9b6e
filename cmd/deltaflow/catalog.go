package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/TFMV/deltaflow/pkg/core"
	"github.com/TFMV/deltaflow/report"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(w, tablewriter.WithRowAutoWrap(tw.WrapNone))
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func newRulesCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage saved delta configurations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := c.client().ListRules(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(rules))
			for _, r := range rules {
				rows = append(rows, []string{
					r.ID,
					r.Name,
					strconv.Itoa(len(r.RuleConfig.KeyRules)),
					strconv.Itoa(len(r.RuleConfig.ComparisonRules)),
					strings.Join(r.Tags, ","),
				})
			}
			return renderTable(cmd.OutOrStdout(), []string{"ID", "Name", "Keys", "Comparisons", "Tags"}, rows)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get RULE_ID",
		Short: "Print a saved rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := c.client().GetRule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rule)
		},
	})

	var name, description string
	var tags []string
	save := &cobra.Command{
		Use:   "save [flags] CONFIG",
		Short: "Save a delta configuration file as a reusable rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := report.ConfigFromFilePath(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%w: %w", errInvalidConfig, err)
			}
			rule, err := c.client().CreateRule(cmd.Context(), core.SavedRule{
				Name:        name,
				Description: description,
				RuleConfig:  cfg,
				Tags:        tags,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved rule %s\n", rule.ID)
			return nil
		},
	}
	save.Flags().StringVar(&name, "name", "", "Rule name")
	save.Flags().StringVar(&description, "description", "", "Rule description")
	save.Flags().StringSliceVar(&tags, "tag", nil, "Tags")
	_ = save.MarkFlagRequired("name")
	cmd.AddCommand(save)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete RULE_ID",
		Short: "Delete a saved rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().DeleteRule(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func useCaseRows(useCases []core.UseCase) [][]string {
	rows := make([][]string, 0, len(useCases))
	for _, uc := range useCases {
		rows = append(rows, []string{
			uc.ID,
			uc.Name,
			uc.Category,
			uc.UseCaseType,
			strconv.Itoa(uc.UsageCount),
			strconv.FormatFloat(uc.Rating, 'f', 1, 64),
		})
	}
	return rows
}

var useCaseHeader = []string{"ID", "Name", "Category", "Type", "Uses", "Rating"}

func newUseCasesCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "usecases",
		Aliases: []string{"use-cases"},
		Short:   "Browse saved use cases",
	}

	var filter core.UseCaseFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved use cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			useCases, err := c.client().ListUseCases(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return renderTable(cmd.OutOrStdout(), useCaseHeader, useCaseRows(useCases))
		},
	}
	list.Flags().StringVar(&filter.Category, "category", "", "Only this category")
	list.Flags().StringVar(&filter.UseCaseType, "type", "", "Only this use case type")
	list.Flags().IntVar(&filter.Limit, "limit", 0, "Maximum number of use cases")
	cmd.AddCommand(list)

	var searchLimit int
	search := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Search saved use cases",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			useCases, err := c.client().SearchUseCases(cmd.Context(), strings.Join(args, " "), searchLimit)
			if err != nil {
				return err
			}
			return renderTable(cmd.OutOrStdout(), useCaseHeader, useCaseRows(useCases))
		},
	}
	search.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of results")
	cmd.AddCommand(search)

	var popularLimit int
	popular := &cobra.Command{
		Use:   "popular",
		Short: "List the most used use cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			useCases, err := c.client().PopularUseCases(cmd.Context(), popularLimit)
			if err != nil {
				return err
			}
			return renderTable(cmd.OutOrStdout(), useCaseHeader, useCaseRows(useCases))
		},
	}
	popular.Flags().IntVar(&popularLimit, "limit", 10, "Maximum number of results")
	cmd.AddCommand(popular)

	cmd.AddCommand(&cobra.Command{
		Use:   "categories",
		Short: "List use case categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, err := c.client().UseCaseCategories(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(categories, "\n"))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "types",
		Short: "List use case types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := c.client().UseCaseTypes(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(types, "\n"))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rate USE_CASE_ID RATING",
		Short: "Rate a use case",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid rating %q: %w", args[1], err)
			}
			return c.client().RateUseCase(cmd.Context(), args[0], rating)
		},
	})
	return cmd
}
