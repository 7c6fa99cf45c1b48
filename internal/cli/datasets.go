package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/chemflux/internal/application"
	"github.com/JonMunkholm/chemflux/internal/store"
)

func newIngestCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "ingest <file.csv>...",
		Short: "Store CSV files as datasets",
		Long: `Ingest parses each file, stores it with its summary and applies the
retention window. Files are ingested in argument order, so the last one is
the newest.`,
		Example: `  chemflux ingest monday.csv tuesday.csv
  chemflux ingest export.csv --name "plant data.csv"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if name != "" && len(args) > 1 {
				return fmt.Errorf("--name needs exactly one file, got %d", len(args))
			}

			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			app, err := application.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				dsName := name
				if dsName == "" {
					dsName = filepath.Base(path)
				}

				start := time.Now()
				res, err := app.Service.Ingest(cmd.Context(), dsName, data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Ingested %s as dataset %d (%d rows) in %s\n",
					dsName, res.Dataset.ID, res.Dataset.Summary.TotalCount, formatDuration(time.Since(start)))
				if len(res.Evicted) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Evicted: %s\n", joinIDs(res.Evicted))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Dataset name (default the file name)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"list", "ls"},
		Short:   "List retained datasets, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			app, err := application.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			datasets, err := app.Service.List(cmd.Context())
			if err != nil {
				return err
			}
			return renderHistory(cmd.OutOrStdout(), datasets, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|json)")
	return cmd
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Apply the retention window to stored datasets",
		Long: `Prune deletes every dataset outside the newest RETENTION_WINDOW, together
with its raw file. The server does this on every upload and on its sweep
interval; prune is for a lowered window or a store written by other tools.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			app, err := application.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			evicted, err := app.Service.EnforceRetention(cmd.Context())
			if err != nil {
				return err
			}
			if len(evicted) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to prune")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d datasets: %s\n", len(evicted), joinIDs(evicted))
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			st, err := store.Open(cmd.Context(), application.StoreOptions(cfg))
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
			version, err := st.MigrationVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database (%s) at schema version %d\n", cfg.Database.Driver, version)
			return nil
		},
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
