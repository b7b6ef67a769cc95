package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/bankd/internal/cli/prompt"
	"github.com/marmos91/bankd/internal/cli/storage"
	"github.com/marmos91/bankd/pkg/backup"
	"github.com/spf13/cobra"
)

var (
	restoreDir   string
	restoreForce bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Download a backup into an empty data directory",
	Long: `Download the tables of a backup into the data directory.

IMPORTANT: The bankd server must be stopped. The target directory must not
contain table files; move them away first. Any journal left in the target is
cleared, since it describes other table contents.

Examples:
  bankd backup restore 20240115T103045Z-1a2b3c4d
  bankd backup restore 20240115T103045Z-1a2b3c4d --data-dir /srv/bankd-restore --force`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().StringVar(&restoreDir, "data-dir", "", "Target directory (default: storage.data_dir)")
	restoreCmd.Flags().BoolVar(&restoreForce, "force", false, "Skip confirmation prompt")
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, err := load(cmd)
	if err != nil {
		return err
	}
	if restoreDir != "" {
		cfg.Storage.DataDir = restoreDir
	}

	ok, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Restore backup %s into %s", args[0], cfg.Storage.DataDir), restoreForce)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("restore cancelled")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}

	m, err := svc.Restore(ctx, args[0], cfg.Storage.DataDir)
	if err != nil {
		if errors.Is(err, backup.ErrNotEmpty) {
			return fmt.Errorf("%w\nMove the existing table files out of %s first", err, cfg.Storage.DataDir)
		}
		return err
	}

	st, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	if err := st.Journal.Clear(); err != nil {
		return fmt.Errorf("failed to clear journal: %w", err)
	}

	fmt.Printf("Restored backup %s into %s\n\n", m.ID, cfg.Storage.DataDir)
	return printManifest(m)
}
