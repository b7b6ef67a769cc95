package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/bankd/internal/cli/output"
	"github.com/marmos91/bankd/internal/cli/storage"
	"github.com/marmos91/bankd/pkg/config"
	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Roll back operations interrupted by a crash",
	Long: `Replay the journal and restore the pre-images of every operation that
began but never committed, then clear the journal.

'bankd start' does this automatically. Run it by hand to repair a data
directory before backing it up or exporting it. The server must be stopped.

Examples:
  bankd recover
  bankd recover --config /etc/bankd/config.yaml`,
	RunE: runRecover,
}

func runRecover(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	if pid, running := isProcessRunning(GetDefaultPidFile()); running {
		return fmt.Errorf("bankd is running (PID %d), stop it before recovering", pid)
	}

	st, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if !st.Journal.Enabled() {
		fmt.Println("Journal is disabled (storage.journal: none), nothing to recover.")
		return nil
	}

	report, err := st.Recover(context.Background())
	if err != nil {
		return err
	}

	return output.SimpleTable(os.Stdout, [][2]string{
		{"Data dir", cfg.Storage.DataDir},
		{"Journal", cfg.Storage.Journal},
		{"Committed operations", fmt.Sprint(report.Committed)},
		{"Rolled back operations", fmt.Sprint(report.RolledBack)},
		{"Images restored", fmt.Sprint(report.Images)},
		{"Images skipped", fmt.Sprint(report.Skipped)},
		{"Images in conflict", fmt.Sprint(report.Conflicts)},
	})
}
