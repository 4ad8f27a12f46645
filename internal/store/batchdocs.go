package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/avandermeer/docbatch/internal/batch"
)

const documentColumns = `id, batch_id, document_id, filename, size, mime_type,
	position, status, retry_count, max_retries, confidence, category,
	processing_ms, error_message, original_path, backup_path, snapshot_state`

// CreateBatchDocument inserts one per-file tracking record and returns
// its id.
func (s *Store) CreateBatchDocument(d *batch.Document) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO batch_documents (batch_id, document_id, filename, size,
			mime_type, position, status, retry_count, max_retries, confidence,
			category, processing_ms, error_message, original_path, backup_path,
			snapshot_state)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.BatchID, d.DocumentID, d.Filename, d.Size, d.MimeType, d.Position,
		string(d.Status), d.RetryCount, d.MaxRetries, d.Confidence, d.Category,
		d.ProcessingMs, d.ErrorMessage, d.OriginalPath, d.BackupPath,
		d.SnapshotState,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert batch document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert batch document id: %w", err)
	}
	d.ID = id
	return id, nil
}

// UpdateBatchDocument persists the mutable state of a tracking record.
func (s *Store) UpdateBatchDocument(d *batch.Document) error {
	res, err := s.db.Exec(
		`UPDATE batch_documents SET document_id = ?, status = ?, retry_count = ?,
			confidence = ?, category = ?, processing_ms = ?, error_message = ?,
			backup_path = ?, snapshot_state = ?
		 WHERE id = ?`,
		d.DocumentID, string(d.Status), d.RetryCount, d.Confidence, d.Category,
		d.ProcessingMs, d.ErrorMessage, d.BackupPath, d.SnapshotState, d.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update batch document: %w", err)
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

// GetBatchDocument retrieves one tracking record by id.
func (s *Store) GetBatchDocument(id int64) (*batch.Document, error) {
	row := s.db.QueryRow(
		`SELECT `+documentColumns+` FROM batch_documents WHERE id = ?`, id,
	)
	d, err := scanBatchDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get batch document: %w", err)
	}
	return d, nil
}

// ListBatchDocuments returns all tracking records of a batch in
// processing order.
func (s *Store) ListBatchDocuments(batchID int64) ([]*batch.Document, error) {
	rows, err := s.db.Query(
		`SELECT `+documentColumns+` FROM batch_documents WHERE batch_id = ? ORDER BY position`,
		batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list batch documents: %w", err)
	}
	defer rows.Close()

	var docs []*batch.Document
	for rows.Next() {
		d, err := scanBatchDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan batch document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows batch documents: %w", err)
	}
	return docs, nil
}

func scanBatchDocument(row scanner) (*batch.Document, error) {
	var d batch.Document
	var status string
	err := row.Scan(
		&d.ID, &d.BatchID, &d.DocumentID, &d.Filename, &d.Size, &d.MimeType,
		&d.Position, &status, &d.RetryCount, &d.MaxRetries, &d.Confidence,
		&d.Category, &d.ProcessingMs, &d.ErrorMessage, &d.OriginalPath,
		&d.BackupPath, &d.SnapshotState,
	)
	if err != nil {
		return nil, err
	}
	d.Status = batch.DocStatus(status)
	return &d, nil
}
