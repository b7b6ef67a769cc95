package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marmos91/bankd/internal/cli/output"
	"github.com/marmos91/bankd/internal/logger"
	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// GetDefaultStateDir returns the default state directory path.
func GetDefaultStateDir() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "/tmp"
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	return filepath.Join(stateDir, "bankd")
}

// GetDefaultPidFile returns the default PID file path.
func GetDefaultPidFile() string {
	return filepath.Join(GetDefaultStateDir(), "bankd.pid")
}

// GetDefaultLogFile returns the default log file path for daemon mode.
func GetDefaultLogFile() string {
	return filepath.Join(GetDefaultStateDir(), "bankd.log")
}

// printSeedReport lists the users and accounts created by a seed.
func printSeedReport(r *banking.SeedReport) {
	fmt.Println("\nInitial data created:")
	users := output.NewTableData("ID", "ROLE", "NAME", "PASSWORD")
	for _, su := range r.Users {
		users.AddRow(fmt.Sprint(su.User.ID), su.User.Role.String(),
			su.User.FirstName+" "+su.User.LastName, su.Password)
	}
	_ = output.PrintTable(os.Stdout, users)

	accounts := output.NewTableData("ID", "NUMBER", "OWNER", "BALANCE")
	for _, a := range r.Accounts {
		accounts.AddRow(fmt.Sprint(a.ID), a.Number, fmt.Sprint(a.OwnerID), a.Balance.String())
	}
	_ = output.PrintTable(os.Stdout, accounts)
	fmt.Println("\nChange these passwords after the first login.")
}
