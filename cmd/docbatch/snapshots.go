package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List rollback snapshots",
	RunE:  listSnapshots,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
}

func listSnapshots(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	snaps, err := e.store.ListSnapshots()
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	if len(snaps) == 0 {
		fmt.Println("No snapshots found.")
		return nil
	}

	fmt.Printf("%-28s %-8s %-8s %-6s %-22s %s\n", "SNAPSHOT", "BATCH", "TYPE", "PATHS", "CREATED", "EXPIRES")
	for _, s := range snaps {
		expires := s.ExpiresAt
		if !s.AutoCleanup {
			expires = "kept until deleted"
		}
		fmt.Printf("%-28s %-8d %-8s %-6d %-22s %s\n",
			s.ID, s.BatchID, s.Type, len(s.Paths), s.CreatedAt, expires)
	}
	return nil
}
