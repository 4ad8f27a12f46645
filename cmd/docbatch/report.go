package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/avandermeer/docbatch/internal/batch"
)

var reportRaw bool

var reportCmd = &cobra.Command{
	Use:   "report <batch-id>",
	Short: "Render a batch summary report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportRaw, "raw", false, "Print raw markdown instead of rendering")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
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
	docs, err := e.store.ListBatchDocuments(id)
	if err != nil {
		return fmt.Errorf("failed to load batch documents: %w", err)
	}

	md := buildReport(op, docs)
	if reportRaw {
		fmt.Println(md)
		return nil
	}
	fmt.Println(renderMarkdown(md))
	return nil
}

func buildReport(op *batch.Operation, docs []*batch.Document) string {
	var sb strings.Builder

	name := op.Name
	if name == "" {
		name = fmt.Sprintf("Batch %d", op.ID)
	}
	fmt.Fprintf(&sb, "# %s\n\n", name)
	fmt.Fprintf(&sb, "**Status:** %s  \n", op.Status)
	fmt.Fprintf(&sb, "**Pipeline:** %s  \n", op.Pipeline)
	fmt.Fprintf(&sb, "**Files:** %d succeeded, %d failed of %d  \n",
		op.FilesSucceeded, op.FilesFailed, op.TotalFiles)
	if op.FilesProcessed > 0 {
		fmt.Fprintf(&sb, "**Success rate:** %.1f%%  \n", op.SuccessRate())
	}
	if op.TotalProcessingMs > 0 {
		fmt.Fprintf(&sb, "**Processing time:** %.1fs  \n", float64(op.TotalProcessingMs)/1000)
	}
	if op.RollbackReason != "" {
		fmt.Fprintf(&sb, "**Rolled back:** %s  \n", op.RollbackReason)
	}

	if len(docs) > 0 {
		sb.WriteString("\n## Files\n\n")
		sb.WriteString("| # | File | Status | Category | Confidence | Retries |\n")
		sb.WriteString("|---|------|--------|----------|------------|---------|\n")
		for _, d := range docs {
			confidence := ""
			if d.Confidence > 0 {
				confidence = fmt.Sprintf("%.0f%%", d.Confidence*100)
			}
			fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s | %d |\n",
				d.Position+1, d.Filename, d.Status, d.Category, confidence, d.RetryCount)
		}
	}

	var failures []*batch.Document
	for _, d := range docs {
		if d.Status == batch.DocFailed && d.ErrorMessage != "" {
			failures = append(failures, d)
		}
	}
	if len(failures) > 0 {
		sb.WriteString("\n## Failures\n\n")
		for _, d := range failures {
			fmt.Fprintf(&sb, "- **%s**: %s\n", d.Filename, d.ErrorMessage)
		}
	}

	return sb.String()
}

// renderMarkdown renders markdown text for terminal display.
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}
