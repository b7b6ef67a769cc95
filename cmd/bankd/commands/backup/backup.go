// Package backup implements the backup subcommands of bankd.
package backup

import (
	"context"
	"fmt"

	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/pkg/backup"
	"github.com/marmos91/bankd/pkg/config"
	"github.com/spf13/cobra"
)

// Cmd is the backup subcommand.
var Cmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up tables to S3",
	Long: `Snapshot the five tables to an S3 bucket and restore them.

Subcommands:
  run      Upload a new backup
  list     List completed backups
  show     Show the manifest of one backup
  restore  Download a backup into an empty data directory`,
}

func init() {
	Cmd.AddCommand(runCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(restoreCmd)
}

// load reads the configuration named by the inherited --config flag and
// initializes the logger.
func load(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// newService connects to the configured bucket.
func newService(ctx context.Context, cfg *config.Config) (*backup.Service, error) {
	bcfg := cfg.Backup
	bcfg.ApplyDefaults()
	if err := bcfg.Validate(); err != nil {
		return nil, fmt.Errorf("backup is not configured: %w", err)
	}
	client, err := backup.NewS3Client(ctx, bcfg)
	if err != nil {
		return nil, err
	}
	return backup.New(client, bcfg)
}
