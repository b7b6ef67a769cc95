package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/marmos91/bankd/internal/cli/output"
	"github.com/marmos91/bankd/internal/cli/storage"
	"github.com/marmos91/bankd/pkg/config"
	"github.com/marmos91/bankd/pkg/export"
	"github.com/spf13/cobra"
)

var (
	exportType     string
	exportPath     string
	exportPostgres string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Copy every table into a SQL database",
	Long: `Copy users, accounts, loans, feedback and transactions into SQLite or
PostgreSQL for reporting. Existing rows are replaced in a single transaction.

Each table is read under its shared lock, so the export is consistent per
table and may run while the server is serving clients.

Examples:
  # Export to the configured database (default: SQLite in the data dir)
  bankd export

  # Export to a specific SQLite file
  bankd export --type sqlite --path /tmp/bank.db

  # Export to PostgreSQL
  bankd export --type postgres --postgres-host db.internal`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportType, "type", "", "Database type (sqlite|postgres), overrides export.type")
	exportCmd.Flags().StringVar(&exportPath, "path", "", "SQLite file, overrides export.sqlite.path")
	exportCmd.Flags().StringVar(&exportPostgres, "postgres-host", "", "PostgreSQL host, overrides export.postgres.host")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	exportCfg := cfg.Export
	if exportType != "" {
		exportCfg.Type = export.DatabaseType(exportType)
	}
	if exportPath != "" {
		exportCfg.SQLite.Path = exportPath
	}
	if exportPostgres != "" {
		exportCfg.Postgres.Host = exportPostgres
	}
	exportCfg.ApplyDefaults()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	st, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	exp, err := export.Open(ctx, exportCfg)
	if err != nil {
		return err
	}
	defer func() { _ = exp.Close() }()

	stats, err := exp.Run(ctx, st.Store)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	target := exportCfg.SQLite.Path
	if exportCfg.Type == export.DatabaseTypePostgres {
		target = fmt.Sprintf("%s:%d/%s", exportCfg.Postgres.Host, exportCfg.Postgres.Port, exportCfg.Postgres.Database)
	}

	fmt.Println("Export completed successfully")
	return output.SimpleTable(os.Stdout, [][2]string{
		{"Target", fmt.Sprintf("%s (%s)", target, exportCfg.Type)},
		{"Users", fmt.Sprint(stats.Users)},
		{"Accounts", fmt.Sprint(stats.Accounts)},
		{"Loans", fmt.Sprint(stats.Loans)},
		{"Feedback", fmt.Sprint(stats.Feedback)},
		{"Transactions", fmt.Sprint(stats.Transactions)},
		{"Duration", stats.Duration.Round(time.Millisecond).String()},
	})
}
