// Package batch defines the batch operation data model: the per-batch
// state machine, per-document retry bookkeeping, and the append-only
// audit log embedded in each operation.
package batch

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a batch operation.
type Status string

const (
	StatusPending        Status = "pending"
	StatusValidating     Status = "validating"
	StatusProcessing     Status = "processing"
	StatusPaused         Status = "paused"
	StatusCompleted      Status = "completed"
	StatusPartialSuccess Status = "partial_success"
	StatusFailed         Status = "failed"
	StatusRolledBack     Status = "rolled_back"
)

// IsActive reports whether the operation may still make progress.
func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusValidating, StatusProcessing, StatusPaused:
		return true
	}
	return false
}

// IsTerminal reports whether the operation has reached a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusPartialSuccess, StatusFailed, StatusRolledBack:
		return true
	}
	return false
}

// transitions lists the allowed successor states for each active state.
// Terminal states have no successors.
var transitions = map[Status][]Status{
	StatusPending:    {StatusValidating, StatusProcessing, StatusFailed, StatusRolledBack},
	StatusValidating: {StatusProcessing, StatusFailed, StatusRolledBack},
	StatusProcessing: {StatusPaused, StatusCompleted, StatusPartialSuccess, StatusFailed, StatusRolledBack},
	StatusPaused:     {StatusProcessing, StatusRolledBack},
}

// MaxLogEntries caps the embedded audit log; the oldest entries are
// dropped first once the cap is exceeded.
const MaxLogEntries = 1000

// LogEntry is one line of the chronological, human-readable audit trail.
type LogEntry struct {
	Timestamp  string `json:"timestamp"`
	Level      string `json:"level"`
	Message    string `json:"message"`
	DocumentID int64  `json:"document_id,omitempty"`
}

// Operation is one submitted batch job. It is created in pending state,
// mutated only by the orchestrator (and the rollback executor) while
// active, and immutable once terminal.
type Operation struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name,omitempty"`

	// Immutable config, fixed at submission.
	TotalFiles   int    `json:"total_files"`
	Pipeline     string `json:"pipeline"`
	AutoRollback bool   `json:"auto_rollback_on_error"`
	MaxRetries   int    `json:"max_retries_per_file"`

	Status              Status `json:"status"`
	FilesProcessed      int    `json:"files_processed"`
	FilesSucceeded      int    `json:"files_succeeded"`
	FilesFailed         int    `json:"files_failed"`
	CurrentIndex        int    `json:"current_file_index"`
	StartedAt           string `json:"started_at,omitempty"`           // RFC3339
	CompletedAt         string `json:"completed_at,omitempty"`         // RFC3339
	EstimatedCompletion string `json:"estimated_completion,omitempty"` // RFC3339
	TotalProcessingMs   int64  `json:"total_processing_ms"`

	CanRollback    bool   `json:"can_rollback"`
	SnapshotID     string `json:"snapshot_id,omitempty"`
	RollbackReason string `json:"rollback_reason,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`

	Log   []LogEntry        `json:"log,omitempty"`
	Stats map[string]string `json:"stats,omitempty"`

	CreatedAt string `json:"created_at"` // RFC3339
}

// Transition moves the operation to the given status, enforcing the
// state machine. Terminal operations reject every transition.
func (o *Operation) Transition(to Status) error {
	for _, next := range transitions[o.Status] {
		if next == to {
			o.Status = to
			return nil
		}
	}
	return fmt.Errorf("batch: invalid transition %s -> %s", o.Status, to)
}

// ProgressPercentage derives the completion percentage from processed
// and total file counts.
func (o *Operation) ProgressPercentage() float64 {
	if o.TotalFiles == 0 {
		return 0
	}
	return float64(o.FilesProcessed) / float64(o.TotalFiles) * 100
}

// SuccessRate derives the share of processed files that succeeded.
func (o *Operation) SuccessRate() float64 {
	if o.FilesProcessed == 0 {
		return 0
	}
	return float64(o.FilesSucceeded) / float64(o.FilesProcessed) * 100
}

// AppendLog adds an entry to the audit log, dropping the oldest entries
// once MaxLogEntries is exceeded. docID is 0 for batch-level entries.
func (o *Operation) AppendLog(level, message string, docID int64) {
	o.Log = append(o.Log, LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Level:      level,
		Message:    message,
		DocumentID: docID,
	})
	if len(o.Log) > MaxLogEntries {
		o.Log = o.Log[len(o.Log)-MaxLogEntries:]
	}
}

// UpdateEstimate recomputes the estimated completion time from a linear
// projection of mean per-file elapsed time over the remaining count.
func (o *Operation) UpdateEstimate(now time.Time) {
	if o.FilesProcessed == 0 || o.StartedAt == "" {
		return
	}
	started, err := time.Parse(time.RFC3339, o.StartedAt)
	if err != nil {
		return
	}
	elapsed := now.Sub(started)
	perFile := elapsed / time.Duration(o.FilesProcessed)
	remaining := o.TotalFiles - o.FilesProcessed
	o.EstimatedCompletion = now.Add(perFile * time.Duration(remaining)).UTC().Format(time.RFC3339)
}
