package backup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/marmos91/bankd/internal/cli/output"
	"github.com/marmos91/bankd/pkg/backup"
	"github.com/spf13/cobra"
)

var listOutput string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List completed backups",
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <backup-id>",
	Short: "Show the manifest of one backup",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	listCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
	showCmd.Flags().StringVarP(&listOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}
	cfg, err := load(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	ids, err := svc.List(ctx)
	if err != nil {
		return err
	}

	if format != output.FormatTable {
		return output.Print(os.Stdout, format, ids)
	}

	if len(ids) == 0 {
		fmt.Println("No backups found.")
		return nil
	}
	table := output.NewTableData("BACKUP ID")
	for _, id := range ids {
		table.AddRow(id)
	}
	return output.PrintTable(os.Stdout, table)
}

func runShow(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(listOutput)
	if err != nil {
		return err
	}
	cfg, err := load(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	m, err := svc.Manifest(ctx, args[0])
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, m)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, m)
	default:
		fmt.Printf("Backup %s, created %s\n\n", m.ID, m.CreatedAt.Local().Format(time.DateTime))
		return printManifest(m)
	}
}

func printManifest(m *backup.Manifest) error {
	table := output.NewTableData("TABLE", "FILE", "RECORDS", "BYTES")
	for _, t := range m.Tables {
		table.AddRow(t.Name, t.File, fmt.Sprint(t.Records), fmt.Sprint(t.Bytes))
	}
	return output.PrintTable(os.Stdout, table)
}
