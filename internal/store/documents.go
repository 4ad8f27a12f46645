package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Document is a persisted document produced by the processing pipeline.
// Rollback deletes rows created during a batch; it never modifies them.
type Document struct {
	ID          int64   `json:"id"`
	Filename    string  `json:"filename"`
	StoredPath  string  `json:"stored_path,omitempty"`
	ContentHash string  `json:"content_hash"`
	Size        int64   `json:"size"`
	MimeType    string  `json:"mime_type,omitempty"`
	Category    string  `json:"category,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	BatchID     int64   `json:"batch_id,omitempty"`
	CreatedAt   string  `json:"created_at"` // RFC3339
}

// UpsertDocument inserts a document row, or returns the existing row's
// id when one with the same content hash already exists. The upsert
// keeps pipeline re-invocation after a transient failure idempotent.
func (s *Store) UpsertDocument(d *Document) (int64, error) {
	if d.CreatedAt == "" {
		d.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	var existing int64
	err := s.db.QueryRow(
		`SELECT id FROM documents WHERE content_hash = ?`, d.ContentHash,
	).Scan(&existing)
	if err == nil {
		d.ID = existing
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("store: lookup document: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO documents (filename, stored_path, content_hash, size,
			mime_type, category, confidence, batch_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Filename, d.StoredPath, d.ContentHash, d.Size, d.MimeType,
		d.Category, d.Confidence, d.BatchID, d.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: insert document id: %w", err)
	}
	d.ID = id
	return id, nil
}

// GetDocument retrieves a persisted document by id.
func (s *Store) GetDocument(id int64) (*Document, error) {
	var d Document
	err := s.db.QueryRow(
		`SELECT id, filename, stored_path, content_hash, size, mime_type,
			category, confidence, batch_id, created_at
		 FROM documents WHERE id = ?`, id,
	).Scan(
		&d.ID, &d.Filename, &d.StoredPath, &d.ContentHash, &d.Size,
		&d.MimeType, &d.Category, &d.Confidence, &d.BatchID, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get document: %w", err)
	}
	return &d, nil
}

// DeleteDocument removes a persisted document row. Deleting a missing
// row is not an error, so rollback stays idempotent.
func (s *Store) DeleteDocument(id int64) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete document: %w", err)
	}
	return nil
}

// DocumentCount returns the total number of persisted documents.
func (s *Store) DocumentCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: document count: %w", err)
	}
	return n, nil
}

// OperationCount returns the total number of batch operations.
func (s *Store) OperationCount() (int64, error) {
	var n int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM batch_operations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: operation count: %w", err)
	}
	return n, nil
}
