package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/avandermeer/docbatch/internal/rollback"
)

var rollbackReason string

var rollbackCmd = &cobra.Command{
	Use:   "rollback <batch-id>",
	Short: "Undo a batch using its snapshot",
	Long:  "Restore every file the batch touched from its snapshot and delete the document records it created. The batch must still hold valid rollback protection.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRollback,
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackReason, "reason", "user requested", "Reason recorded in the batch audit log")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid batch id %q", args[0])
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	result, err := e.orch.Executor().Rollback(id, rollbackReason)
	if err != nil {
		switch {
		case errors.Is(err, rollback.ErrNoSnapshot):
			return fmt.Errorf("batch %d has no snapshot; it was submitted without protection", id)
		case errors.Is(err, rollback.ErrSnapshotExpired):
			return fmt.Errorf("batch %d cannot be rolled back: %w", id, err)
		case errors.Is(err, rollback.ErrNotEligible):
			return fmt.Errorf("batch %d was already rolled back or never protected", id)
		}
		return err
	}

	fmt.Printf("Batch %d rolled back via snapshot %s\n", id, result.SnapshotID)
	fmt.Printf("  Files restored:    %d\n", result.PathsRestored)
	fmt.Printf("  Files deleted:     %d\n", result.PathsDeleted)
	fmt.Printf("  Files unchanged:   %d\n", result.PathsSkipped)
	fmt.Printf("  Documents removed: %d\n", result.DocumentsDeleted)

	if !result.Success() {
		fmt.Println(styleWarn.Render("Rollback completed with errors:"))
		for _, msg := range result.FSErrors {
			fmt.Println(styleError.Render("  fs: " + msg))
		}
		for _, msg := range result.DBErrors {
			fmt.Println(styleError.Render("  db: " + msg))
		}
	}
	return nil
}
