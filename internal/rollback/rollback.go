// Package rollback restores a batch's captured snapshot state: the
// filesystem pass copies backup bytes over mutated paths and deletes
// paths created during the batch, the database pass removes document
// rows the batch persisted.
package rollback

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/avandermeer/docbatch/internal/batch"
	"github.com/avandermeer/docbatch/internal/snapshot"
	"github.com/avandermeer/docbatch/internal/store"
)

var (
	// ErrNoSnapshot means the batch never captured rollback protection.
	ErrNoSnapshot = errors.New("rollback: no snapshot for batch")
	// ErrSnapshotExpired means the snapshot's retention window has
	// passed; the batch is left untouched.
	ErrSnapshotExpired = errors.New("rollback: snapshot expired")
	// ErrNotEligible means the batch has can_rollback cleared, usually
	// because it was already rolled back.
	ErrNotEligible = errors.New("rollback: batch is not rollback-eligible")
)

// Result reports what a rollback did. Filesystem and database failures
// are collected separately so an operator can diagnose which side
// diverged.
type Result struct {
	SnapshotID       string   `json:"snapshot_id"`
	PathsRestored    int      `json:"paths_restored"`
	PathsDeleted     int      `json:"paths_deleted"`
	PathsSkipped     int      `json:"paths_skipped"`
	DocumentsDeleted int      `json:"documents_deleted"`
	FSErrors         []string `json:"fs_errors,omitempty"`
	DBErrors         []string `json:"db_errors,omitempty"`
}

// Success reports whether both passes completed without error.
func (r *Result) Success() bool {
	return len(r.FSErrors) == 0 && len(r.DBErrors) == 0
}

// Partial reports whether exactly one of the two passes failed.
func (r *Result) Partial() bool {
	return (len(r.FSErrors) == 0) != (len(r.DBErrors) == 0)
}

// Executor performs rollbacks against the store and filesystem.
type Executor struct {
	store *store.Store
	log   zerolog.Logger
}

func NewExecutor(st *store.Store, log zerolog.Logger) *Executor {
	return &Executor{store: st, log: log}
}

// Rollback undoes the observable effects of a batch using its stored
// snapshot. Individual path or row failures are logged and skipped; a
// single bad backup must not abort the rest of the rollback.
func (e *Executor) Rollback(batchID int64, reason string) (*Result, error) {
	op, err := e.store.GetOperation(batchID)
	if err != nil {
		return nil, err
	}

	snap, err := e.store.GetSnapshotByBatch(batchID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: batch %d", ErrNoSnapshot, batchID)
		}
		return nil, err
	}
	if snap.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: %s expired at %s", ErrSnapshotExpired, snap.ID, snap.ExpiresAt)
	}
	if !op.CanRollback {
		return nil, fmt.Errorf("%w: batch %d", ErrNotEligible, batchID)
	}

	e.log.Info().Int64("batch_id", batchID).Str("snapshot_id", snap.ID).
		Str("reason", reason).Msg("rollback started")

	result := &Result{SnapshotID: snap.ID}
	e.restoreFilesystem(snap, result)
	e.undoDatabase(batchID, result)

	now := time.Now().UTC().Format(time.RFC3339)
	op.Status = batch.StatusRolledBack
	op.RollbackReason = reason
	op.CompletedAt = now
	op.CanRollback = false
	op.AppendLog("info", fmt.Sprintf("rolled back via snapshot %s: %s", snap.ID, reason), 0)
	if !result.Success() {
		op.AppendLog("warn", fmt.Sprintf("rollback incomplete: %d filesystem, %d database errors",
			len(result.FSErrors), len(result.DBErrors)), 0)
	}
	if err := e.store.UpdateOperation(op); err != nil {
		return result, fmt.Errorf("rollback: mark operation: %w", err)
	}

	e.log.Info().Int64("batch_id", batchID).
		Int("restored", result.PathsRestored).
		Int("deleted", result.PathsDeleted).
		Int("documents_deleted", result.DocumentsDeleted).
		Bool("success", result.Success()).
		Msg("rollback finished")
	return result, nil
}

// restoreFilesystem walks the captured path map. Paths absent at
// capture time are deleted if now present; captured files are restored
// from their backups. Unchanged files (hash match) are skipped, which
// also makes a second pass over the same snapshot a no-op.
func (e *Executor) restoreFilesystem(snap *snapshot.Snapshot, result *Result) {
	for path, state := range snap.Paths {
		if !state.Exists {
			if _, err := os.Stat(path); err == nil {
				if err := os.RemoveAll(path); err != nil {
					e.fsError(result, path, err)
					continue
				}
				result.PathsDeleted++
			}
			continue
		}

		if state.IsDir {
			for filePath, fileState := range state.Files {
				e.restoreFile(filePath, fileState, result)
			}
			continue
		}
		e.restoreFile(path, state, result)
	}
}

func (e *Executor) restoreFile(path string, state snapshot.PathState, result *Result) {
	if cur, err := snapshot.HashFile(path); err == nil && cur == state.Hash {
		result.PathsSkipped++
		return
	}
	if err := snapshot.CopyFile(state.BackupPath, path, fs.FileMode(state.Mode)); err != nil {
		e.fsError(result, path, err)
		return
	}
	result.PathsRestored++
}

// undoDatabase deletes every document row the batch's files produced
// and marks the tracking records rolled back. Rows that existed before
// the batch are never touched; this is an insertion-undo, not a state
// replay.
func (e *Executor) undoDatabase(batchID int64, result *Result) {
	docs, err := e.store.ListBatchDocuments(batchID)
	if err != nil {
		result.DBErrors = append(result.DBErrors, err.Error())
		return
	}
	for _, d := range docs {
		// Files the batch never processed (skipped, still pending) have
		// nothing to undo and keep their status.
		if d.DocumentID == 0 && d.Status != batch.DocSuccess {
			continue
		}
		if d.DocumentID != 0 {
			if err := e.store.DeleteDocument(d.DocumentID); err != nil {
				result.DBErrors = append(result.DBErrors, err.Error())
				e.log.Warn().Err(err).Int64("document_id", d.DocumentID).Msg("document delete failed")
				continue
			}
			result.DocumentsDeleted++
			d.DocumentID = 0
		}
		d.Status = batch.DocRolledBack
		if err := e.store.UpdateBatchDocument(d); err != nil {
			result.DBErrors = append(result.DBErrors, err.Error())
		}
	}
}

func (e *Executor) fsError(result *Result, path string, err error) {
	result.FSErrors = append(result.FSErrors, fmt.Sprintf("%s: %v", path, err))
	e.log.Warn().Err(err).Str("path", path).Msg("path restore failed")
}
