package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/chemflux/internal/application"
	"github.com/JonMunkholm/chemflux/internal/report"
)

func newReportCmd() *cobra.Command {
	var (
		output    string
		title     string
		datasetID int64
	)

	cmd := &cobra.Command{
		Use:   "report [file.csv]",
		Short: "Render a PDF report for a CSV file or a stored dataset",
		Long: `Report renders the summary of a local CSV file, or of a stored dataset
selected with --dataset, as a paginated PDF.

Use --output - to write the PDF to stdout.`,
		Example: `  chemflux report equipment.csv
  chemflux report equipment.csv -o summary.pdf
  chemflux report --dataset 7`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if title == "" {
				title = cfg.Report.Title
			}
			renderer, err := report.NewRenderer(report.DefaultLayout(), title)
			if err != nil {
				return err
			}

			var in report.Input
			switch {
			case datasetID > 0 && len(args) == 0:
				app, err := application.Open(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer app.Close()

				d, err := app.Service.Get(cmd.Context(), datasetID)
				if err != nil {
					return err
				}
				in = report.InputFromDataset(d)
				if output == "" {
					output = report.Filename(d.ID)
				}

			case datasetID == 0 && len(args) == 1:
				path := args[0]
				info, err := os.Stat(path)
				if err != nil {
					return err
				}
				summary, err := summarizeFile(path, cfg.SummaryOptions())
				if err != nil {
					return err
				}
				in = report.Input{
					Name:       filepath.Base(path),
					UploadedAt: info.ModTime(),
					Summary:    *summary,
				}
				if output == "" {
					output = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".pdf"
				}

			default:
				return errors.New("give either a CSV file or --dataset, not both")
			}

			pdf, pages, err := renderer.RenderPDF(in)
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(pdf)
				return err
			}
			if err := os.WriteFile(output, pdf, 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d pages)\n", output, pages)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <name>.pdf, - for stdout)")
	cmd.Flags().StringVar(&title, "title", "", "Report title (default REPORT_TITLE)")
	cmd.Flags().Int64Var(&datasetID, "dataset", 0, "Render a stored dataset by ID")

	return cmd
}
