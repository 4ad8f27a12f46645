package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <batch-id>",
	Short: "Resume a paused batch from its saved position",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid batch id %q", args[0])
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	if err := e.orch.Resume(id); err != nil {
		return fmt.Errorf("cannot resume batch %d: %w", id, err)
	}

	fmt.Printf("Batch %d resumed\n", id)
	watchBatch(e, id)
	return printOutcome(e, id)
}
