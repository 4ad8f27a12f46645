package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avandermeer/docbatch/internal/sweeper"
)

var sweepDryRun bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired snapshots and their backups",
	Long:  "Delete snapshots whose retention window has passed, freeing their backup files. Snapshots created with auto-cleanup disabled are never swept.",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "Show what would be deleted without deleting")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	if sweepDryRun {
		fmt.Println("Dry run mode — no snapshots will be deleted")
	}

	sw := sweeper.New(e.store, e.cfg.BackupDir(), e.log)
	result, err := sw.Sweep(time.Now(), sweeper.Policy{DryRun: sweepDryRun})
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	if result.SnapshotsRemoved == 0 {
		fmt.Println("Nothing to clean up")
		return nil
	}

	fmt.Printf("Removed %d expired snapshot(s)\n", result.SnapshotsRemoved)
	if result.BytesFreed > 0 {
		fmt.Printf("Freed %s\n", formatBytes(result.BytesFreed))
	}
	return nil
}

func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
