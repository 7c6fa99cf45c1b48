// Package cli provides the chemflux command-line interface: local CSV
// summaries and reports, plus ingest and history against the configured
// dataset store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/chemflux/internal/config"
	"github.com/JonMunkholm/chemflux/internal/logging"
)

// Version is set at build time.
var Version = "dev"

// configKey is used to store config in context.
type configKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "chemflux",
		Short: "ChemFlux - equipment CSV summaries and PDF reports",
		Long: `ChemFlux summarizes equipment CSV files (row count, column averages,
type distribution, preview) and renders the summary as a PDF report.

Local files can be summarized directly. Ingested files are stored in the
configured database, which keeps only the newest uploads.

Configuration comes from the environment and an optional .env file.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help, completion and version
			switch cmd.Name() {
			case "help", "completion", "__complete", "version":
				return nil
			}

			// A missing .env is normal
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// Logs go to stderr so stdout stays parseable
			level := cfg.Logging.Level
			if verbose {
				level = "debug"
			}
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), level, cfg.Logging.Format))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging on stderr")

	rootCmd.AddCommand(newSummarizeCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newPruneCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// configFrom returns the config loaded by PersistentPreRunE.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey{}).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "chemflux %s\n", Version)
			return nil
		},
	}
}
