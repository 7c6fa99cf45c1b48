package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/chemflux/internal/core"
)

func newSummarizeCmd() *cobra.Command {
	var (
		format     string
		categories []string
		policy     string
		preview    int
	)

	cmd := &cobra.Command{
		Use:   "summarize <file.csv>",
		Short: "Print the summary of a local CSV file",
		Long: `Summarize parses a CSV file and prints its summary without storing it.

Flags override the SUMMARY_* settings for this run only.`,
		Example: `  chemflux summarize equipment.csv
  chemflux summarize equipment.csv --format json
  chemflux summarize equipment.csv --numeric-policy strict --category-columns Kind`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}

			opts := cfg.SummaryOptions()
			if cmd.Flags().Changed("category-columns") {
				opts.CategoryColumns = categories
			}
			if cmd.Flags().Changed("numeric-policy") {
				p, err := core.ParseNumericPolicy(policy)
				if err != nil {
					return err
				}
				opts.NumericPolicy = p
			}
			if cmd.Flags().Changed("preview-rows") {
				opts.PreviewRows = preview
			}

			summary, err := summarizeFile(args[0], opts)
			if err != nil {
				return err
			}
			return renderSummary(cmd.OutOrStdout(), summary, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|json)")
	cmd.Flags().StringSliceVar(&categories, "category-columns", nil, "Candidate categorical columns in priority order")
	cmd.Flags().StringVar(&policy, "numeric-policy", "", "Numeric detection policy (strict|ignore-blanks)")
	cmd.Flags().IntVar(&preview, "preview-rows", core.DefaultPreviewRows, "Number of preview rows")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("numeric-policy", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"strict", "ignore-blanks"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// summarizeFile parses path and builds its summary.
func summarizeFile(path string, opts core.SummaryOptions) (*core.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := core.ParseTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	summary, err := core.NewSummaryBuilder(opts).Build(table)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return summary, nil
}
