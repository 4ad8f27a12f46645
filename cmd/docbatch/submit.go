package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/avandermeer/docbatch/internal/batch"
	"github.com/avandermeer/docbatch/internal/orchestrator"
)

var (
	submitName         string
	submitPipeline     string
	submitRetries      int
	submitAutoRollback bool
	submitNoProtect    bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <file>...",
	Short: "Process a batch of files",
	Long:  "Submit files for batch processing. The batch runs in the foreground; Ctrl-C pauses it at the next file boundary so it can be resumed later.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitName, "name", "", "Batch name")
	submitCmd.Flags().StringVar(&submitPipeline, "pipeline", "", "Processing pipeline: primary or alternate")
	submitCmd.Flags().IntVar(&submitRetries, "retries", -1, "Per-file retry ceiling, 0-10 (default from config)")
	submitCmd.Flags().BoolVar(&submitAutoRollback, "auto-rollback", false, "Roll back the whole batch if any file fails permanently")
	submitCmd.Flags().BoolVar(&submitNoProtect, "no-protect", false, "Skip the pre-processing snapshot (batch cannot be rolled back)")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.close()

	for _, path := range args {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("cannot read %s: %w", path, err)
		}
	}

	cfg := orchestrator.SubmitConfig{
		Name:         submitName,
		Pipeline:     submitPipeline,
		MaxRetries:   submitRetries,
		AutoRollback: submitAutoRollback || e.cfg.Processing.AutoRollback,
		Protect:      !submitNoProtect,
	}
	if cfg.Pipeline == "" {
		cfg.Pipeline = e.cfg.Processing.Pipeline
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = e.cfg.Processing.MaxRetries
	}

	id, err := e.orch.Submit(args, cfg)
	if err != nil {
		if errors.Is(err, orchestrator.ErrValidation) {
			return fmt.Errorf("submission rejected: %w", err)
		}
		return err
	}

	fmt.Printf("Batch %d submitted: %d files via %s pipeline\n", id, len(args), cfg.Pipeline)
	watchBatch(e, id)
	return printOutcome(e, id)
}

// watchBatch blocks until the batch's worker yields, printing progress
// and translating Ctrl-C into a cooperative pause.
func watchBatch(e *env, id int64) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		e.orch.Wait(id)
		close(done)
	}()

	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-done:
			fmt.Print("\r\033[K")
			return
		case <-sigCh:
			fmt.Print("\r\033[K")
			fmt.Println(styleWarn.Render("Pausing at next file boundary..."))
			e.orch.Pause(id)
		case <-tick.C:
			report, err := e.orch.Progress().Get(id)
			if err != nil {
				continue
			}
			fmt.Printf("\r\033[K  %3.0f%% (%d/%d files, %d failed)",
				report.Percent, report.FilesProcessed, report.TotalFiles, report.FilesFailed)
		}
	}
}

func printOutcome(e *env, id int64) error {
	op, err := e.store.GetOperation(id)
	if err != nil {
		return err
	}

	fmt.Printf("Batch %d %s: %d/%d succeeded, %d failed\n",
		op.ID, renderStatus(op.Status), op.FilesSucceeded, op.TotalFiles, op.FilesFailed)

	switch op.Status {
	case batch.StatusPaused:
		fmt.Printf("Resume with: docbatch resume %d\n", op.ID)
	case batch.StatusRolledBack:
		fmt.Println(styleWarn.Render("All changes were rolled back: " + op.RollbackReason))
	case batch.StatusPartialSuccess, batch.StatusFailed:
		if op.CanRollback {
			fmt.Printf("Roll back with: docbatch rollback %d\n", op.ID)
		}
	}
	return nil
}
