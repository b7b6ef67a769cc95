package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/bankd/internal/cli/storage"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload a new backup",
	Long: `Copy every table to the configured bucket and write its manifest.

Each table is read under its whole-file shared lock, so records are never
torn. Tables are copied one after another: stop the server first when the
backup must be consistent across tables.

Examples:
  bankd backup run
  BANKD_BACKUP_BUCKET=bank-backups bankd backup run`,
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := load(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}

	st, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	start := time.Now()
	m, err := svc.Backup(ctx, st.Store.Tables())
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	fmt.Printf("Backup %s completed in %s\n\n", m.ID, time.Since(start).Round(time.Millisecond))
	return printManifest(m)
}
