package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avandermeer/docbatch/internal/batch"
)

const operationColumns = `id, user_id, name, total_files, pipeline, auto_rollback,
	max_retries, status, files_processed, files_succeeded, files_failed,
	current_index, started_at, completed_at, estimated_completion,
	total_processing_ms, can_rollback, snapshot_id, rollback_reason,
	error_message, log_json, stats_json, created_at`

// CreateOperation inserts a new batch operation and returns its id.
func (s *Store) CreateOperation(op *batch.Operation) (int64, error) {
	if op.CreatedAt == "" {
		op.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	logJSON, statsJSON, err := marshalBlobs(op)
	if err != nil {
		return 0, err
	}

	res, err := s.db.Exec(
		`INSERT INTO batch_operations (user_id, name, total_files, pipeline,
			auto_rollback, max_retries, status, files_processed, files_succeeded,
			files_failed, current_index, started_at, completed_at,
			estimated_completion, total_processing_ms, can_rollback, snapshot_id,
			rollback_reason, error_message, log_json, stats_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.UserID, op.Name, op.TotalFiles, op.Pipeline, op.AutoRollback,
		op.MaxRetries, string(op.Status), op.FilesProcessed, op.FilesSucceeded,
		op.FilesFailed, op.CurrentIndex, op.StartedAt, op.CompletedAt,
		op.EstimatedCompletion, op.TotalProcessingMs, op.CanRollback,
		op.SnapshotID, op.RollbackReason, op.ErrorMessage, logJSON, statsJSON,
		op.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert operation id: %w", err)
	}
	op.ID = id
	return id, nil
}

// GetOperation retrieves a batch operation by id. Returns ErrNotFound
// if it does not exist.
func (s *Store) GetOperation(id int64) (*batch.Operation, error) {
	row := s.db.QueryRow(
		`SELECT `+operationColumns+` FROM batch_operations WHERE id = ?`, id,
	)
	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get operation: %w", err)
	}
	return op, nil
}

// UpdateOperation persists the full mutable state of an operation.
func (s *Store) UpdateOperation(op *batch.Operation) error {
	logJSON, statsJSON, err := marshalBlobs(op)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(
		`UPDATE batch_operations SET status = ?, files_processed = ?,
			files_succeeded = ?, files_failed = ?, current_index = ?,
			started_at = ?, completed_at = ?, estimated_completion = ?,
			total_processing_ms = ?, can_rollback = ?, snapshot_id = ?,
			rollback_reason = ?, error_message = ?, log_json = ?, stats_json = ?
		 WHERE id = ?`,
		string(op.Status), op.FilesProcessed, op.FilesSucceeded, op.FilesFailed,
		op.CurrentIndex, op.StartedAt, op.CompletedAt, op.EstimatedCompletion,
		op.TotalProcessingMs, op.CanRollback, op.SnapshotID, op.RollbackReason,
		op.ErrorMessage, logJSON, statsJSON, op.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update operation: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOperations returns operations ordered by creation descending,
// optionally filtered by status. An empty status returns all.
func (s *Store) ListOperations(status batch.Status, limit int) ([]*batch.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM batch_operations`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list operations: %w", err)
	}
	defer rows.Close()

	var ops []*batch.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows operations: %w", err)
	}
	return ops, nil
}

// ActiveCount returns the number of operations in a non-terminal state.
func (s *Store) ActiveCount() (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM batch_operations WHERE status IN (?, ?, ?, ?)`,
		string(batch.StatusPending), string(batch.StatusValidating),
		string(batch.StatusProcessing), string(batch.StatusPaused),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: active count: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOperation(row scanner) (*batch.Operation, error) {
	var op batch.Operation
	var status, logJSON, statsJSON string
	err := row.Scan(
		&op.ID, &op.UserID, &op.Name, &op.TotalFiles, &op.Pipeline,
		&op.AutoRollback, &op.MaxRetries, &status, &op.FilesProcessed,
		&op.FilesSucceeded, &op.FilesFailed, &op.CurrentIndex, &op.StartedAt,
		&op.CompletedAt, &op.EstimatedCompletion, &op.TotalProcessingMs,
		&op.CanRollback, &op.SnapshotID, &op.RollbackReason, &op.ErrorMessage,
		&logJSON, &statsJSON, &op.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	op.Status = batch.Status(status)
	if err := json.Unmarshal([]byte(logJSON), &op.Log); err != nil {
		return nil, fmt.Errorf("decode log: %w", err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &op.Stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return &op, nil
}

func marshalBlobs(op *batch.Operation) (string, string, error) {
	logData, err := json.Marshal(op.Log)
	if err != nil {
		return "", "", fmt.Errorf("store: encode log: %w", err)
	}
	if op.Log == nil {
		logData = []byte("[]")
	}
	statsData, err := json.Marshal(op.Stats)
	if err != nil {
		return "", "", fmt.Errorf("store: encode stats: %w", err)
	}
	if op.Stats == nil {
		statsData = []byte("{}")
	}
	return string(logData), string(statsData), nil
}
