package config

import (
	"os"

	"github.com/marmos91/bankd/internal/cli/output"
	"github.com/marmos91/bankd/pkg/config"
	"github.com/spf13/cobra"
)

var (
	showOutput  string
	showSecrets bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective bankd configuration: file, environment and
defaults merged. Secrets are masked unless --secrets is given.

Examples:
  # Show as YAML
  bankd config show

  # Show as JSON
  bankd config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
	showCmd.Flags().BoolVar(&showSecrets, "secrets", false, "Print secrets in clear")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	if !showSecrets {
		maskSecrets(cfg)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}

const masked = "********"

func maskSecrets(cfg *config.Config) {
	for _, s := range []*string{
		&cfg.API.JWTSecret,
		&cfg.Events.Password,
		&cfg.Backup.SecretAccessKey,
		&cfg.Export.Postgres.Password,
	} {
		if *s != "" {
			*s = masked
		}
	}
}
