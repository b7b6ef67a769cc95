package config

import (
	"fmt"

	"github.com/marmos91/bankd/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the bankd configuration file.

Checks for syntax errors, missing required fields, invalid values and port
clashes between the teller, API and metrics listeners.

Examples:
  bankd config validate
  bankd config validate --config /etc/bankd/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if warnings := collectWarnings(cfg); len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Teller port:     %d\n", cfg.Server.Port)
	fmt.Printf("  Max sessions:    %d\n", cfg.Server.MaxSessions)
	fmt.Printf("  Data dir:        %s\n", cfg.Storage.DataDir)
	fmt.Printf("  Journal:         %s\n", cfg.Storage.Journal)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)

	return nil
}

// collectWarnings reports settings that are valid but probably unintended.
func collectWarnings(cfg *config.Config) []string {
	var warnings []string
	if cfg.API.IsEnabled() && cfg.API.JWTSecret == "" {
		warnings = append(warnings, "API JWT secret not configured, only health endpoints will be served")
	}
	if cfg.Storage.Journal == config.JournalNone {
		warnings = append(warnings, "journal disabled, a crash during a transfer cannot be rolled back")
	}
	if !cfg.Storage.UseOSLocks() {
		warnings = append(warnings, "OS locks disabled, other processes writing the data dir are not excluded")
	}
	if cfg.Backup.Bucket == "" {
		warnings = append(warnings, "backup bucket not configured, 'bankd backup' will fail")
	}
	return warnings
}
