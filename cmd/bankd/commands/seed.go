package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/bankd/internal/cli/storage"
	"github.com/marmos91/bankd/pkg/banking"
	"github.com/marmos91/bankd/pkg/config"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the initial users and accounts",
	Long: `Create the administrator, a customer, an employee and a manager (user ids
1 to 4) together with the customer's two savings accounts.

Nothing is written when the users table already has records. The tables are
locked record by record, so seeding is safe while the server is running.

Examples:
  bankd seed
  bankd seed --config /etc/bankd/config.yaml`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := context.Background()
	st, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	report, err := banking.New(st.Store, st.Journal).Seed(ctx)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	if report == nil {
		fmt.Printf("Users already exist in %s, nothing to do.\n", cfg.Storage.DataDir)
		return nil
	}
	printSeedReport(report)
	return nil
}
