package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avandermeer/docbatch/internal/batch"
)

var (
	listStatus string
	listLast   int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent batches",
	RunE:  listBatches,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Only show batches with this status")
	listCmd.Flags().IntVar(&listLast, "last", 20, "Number of recent batches to show")
	rootCmd.AddCommand(listCmd)
}

func listBatches(cmd *cobra.Command, args []string) error {
	if listLast < 1 {
		return fmt.Errorf("--last must be at least 1, got %d", listLast)
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ops, err := e.store.ListOperations(batch.Status(listStatus), listLast)
	if err != nil {
		return fmt.Errorf("failed to list batches: %w", err)
	}

	if len(ops) == 0 {
		fmt.Println("No batches found.")
		return nil
	}

	fmt.Printf("%-6s %-24s %-16s %-10s %-10s %s\n", "ID", "NAME", "STATUS", "FILES", "PROGRESS", "CREATED")
	for _, op := range ops {
		name := op.Name
		if name == "" {
			name = "(unnamed)"
		}
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		files := fmt.Sprintf("%d/%d", op.FilesSucceeded, op.TotalFiles)
		fmt.Printf("%-6d %-24s %-16s %-10s %-10s %s\n",
			op.ID, name, renderStatus(op.Status), files,
			fmt.Sprintf("%.0f%%", op.ProgressPercentage()), op.CreatedAt)
	}

	active, err := e.store.ActiveCount()
	if err == nil && active > 0 {
		fmt.Printf("\n%d batch(es) active\n", active)
	}
	return nil
}
