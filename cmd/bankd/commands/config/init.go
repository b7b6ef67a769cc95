package config

import (
	"fmt"
	"os"

	"github.com/marmos91/bankd/internal/cli/prompt"
	"github.com/marmos91/bankd/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file",
	Long: `Write a configuration file with default values and a random JWT secret
for the admin API.

Without --config the file is created at $XDG_CONFIG_HOME/bankd/config.yaml.

Examples:
  bankd config init
  bankd config init --config ./bankd.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	force := initForce
	if _, err := os.Stat(path); err == nil && !force {
		ok, err := prompt.Confirm(fmt.Sprintf("%s exists. Overwrite", path), false)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("aborted, %s left unchanged", path)
		}
		force = true
	}

	if err := config.InitConfigToPath(path, force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  bankd config validate")
	fmt.Println("  bankd start --foreground")
	return nil
}
