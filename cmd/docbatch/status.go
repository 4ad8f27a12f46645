package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/avandermeer/docbatch/internal/batch"
)

var statusShowLog bool

var statusCmd = &cobra.Command{
	Use:   "status <batch-id>",
	Short: "Show detailed state of one batch",
	Args:  cobra.ExactArgs(1),
	RunE:  showStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusShowLog, "log", false, "Include the batch audit log")
	rootCmd.AddCommand(statusCmd)
}

func showStatus(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid batch id %q", args[0])
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	op, err := e.store.GetOperation(id)
	if err != nil {
		return fmt.Errorf("failed to load batch %d: %w", id, err)
	}

	name := op.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Printf("Batch %d  %s  %s\n", op.ID, name, renderStatus(op.Status))
	fmt.Printf("  Pipeline:   %s (retries %d, auto-rollback %v)\n", op.Pipeline, op.MaxRetries, op.AutoRollback)
	fmt.Printf("  Progress:   %.1f%% (%d/%d files, %d succeeded, %d failed)\n",
		op.ProgressPercentage(), op.FilesProcessed, op.TotalFiles, op.FilesSucceeded, op.FilesFailed)
	if op.FilesProcessed > 0 {
		fmt.Printf("  Success:    %.1f%%\n", op.SuccessRate())
	}
	if op.EstimatedCompletion != "" {
		fmt.Printf("  ETA:        %s\n", op.EstimatedCompletion)
	}
	if op.StartedAt != "" {
		fmt.Printf("  Started:    %s\n", op.StartedAt)
	}
	if op.CompletedAt != "" {
		fmt.Printf("  Completed:  %s\n", op.CompletedAt)
	}
	if op.SnapshotID != "" {
		protection := "expired or consumed"
		if op.CanRollback {
			protection = "rollback available"
		}
		fmt.Printf("  Snapshot:   %s (%s)\n", op.SnapshotID, protection)
	}
	if op.RollbackReason != "" {
		fmt.Printf("  Rollback:   %s\n", op.RollbackReason)
	}
	if op.ErrorMessage != "" {
		fmt.Printf("  Error:      %s\n", styleError.Render(op.ErrorMessage))
	}

	docs, err := e.store.ListBatchDocuments(id)
	if err != nil {
		return fmt.Errorf("failed to load batch documents: %w", err)
	}
	if len(docs) > 0 {
		fmt.Printf("\n%-4s %-30s %-12s %-12s %-8s %s\n", "#", "FILE", "STATUS", "CATEGORY", "RETRIES", "ERROR")
		for _, d := range docs {
			filename := d.Filename
			if len(filename) > 30 {
				filename = filename[:27] + "..."
			}
			fmt.Printf("%-4d %-30s %-12s %-12s %-8d %s\n",
				d.Position+1, filename, renderDocStatus(d.Status), d.Category, d.RetryCount, d.ErrorMessage)
		}
	}

	if statusShowLog && len(op.Log) > 0 {
		fmt.Println()
		for _, entry := range op.Log {
			line := fmt.Sprintf("%s [%s] %s", entry.Timestamp, entry.Level, entry.Message)
			switch entry.Level {
			case "error":
				fmt.Println(styleError.Render(line))
			case "warn":
				fmt.Println(styleWarn.Render(line))
			default:
				fmt.Println(styleDim.Render(line))
			}
		}
	}
	return nil
}

func renderDocStatus(s batch.DocStatus) string {
	switch s {
	case batch.DocSuccess:
		return styleSuccess.Render(string(s))
	case batch.DocFailed:
		return styleError.Render(string(s))
	case batch.DocSkipped, batch.DocRolledBack:
		return styleWarn.Render(string(s))
	default:
		return string(s)
	}
}
