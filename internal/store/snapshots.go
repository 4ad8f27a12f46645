package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avandermeer/docbatch/internal/snapshot"
)

// SaveSnapshot persists snapshot metadata. At most one snapshot exists
// per batch; saving a second one for the same batch is an error.
func (s *Store) SaveSnapshot(snap *snapshot.Snapshot) error {
	pathsJSON, err := json.Marshal(snap.Paths)
	if err != nil {
		return fmt.Errorf("store: encode snapshot paths: %w", err)
	}
	dbStateJSON, err := json.Marshal(snap.DBState)
	if err != nil {
		return fmt.Errorf("store: encode snapshot db state: %w", err)
	}
	if snap.CreatedAt == "" {
		snap.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	_, err = s.db.Exec(
		`INSERT INTO rollback_snapshots (id, batch_id, snapshot_type,
			paths_json, db_state_json, auto_cleanup, cleanup_after_days,
			expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.BatchID, snap.Type, string(pathsJSON), string(dbStateJSON),
		snap.AutoCleanup, snap.CleanupAfterDays, snap.ExpiresAt, snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert snapshot: %w", err)
	}
	return nil
}

// GetSnapshotByBatch retrieves the snapshot protecting a batch.
func (s *Store) GetSnapshotByBatch(batchID int64) (*snapshot.Snapshot, error) {
	row := s.db.QueryRow(
		`SELECT id, batch_id, snapshot_type, paths_json, db_state_json,
			auto_cleanup, cleanup_after_days, expires_at, created_at
		 FROM rollback_snapshots WHERE batch_id = ?`, batchID,
	)
	return scanSnapshot(row)
}

// GetSnapshot retrieves a snapshot by its id.
func (s *Store) GetSnapshot(id string) (*snapshot.Snapshot, error) {
	row := s.db.QueryRow(
		`SELECT id, batch_id, snapshot_type, paths_json, db_state_json,
			auto_cleanup, cleanup_after_days, expires_at, created_at
		 FROM rollback_snapshots WHERE id = ?`, id,
	)
	return scanSnapshot(row)
}

// ListSnapshots returns all snapshots ordered by creation descending.
func (s *Store) ListSnapshots() ([]*snapshot.Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT id, batch_id, snapshot_type, paths_json, db_state_json,
			auto_cleanup, cleanup_after_days, expires_at, created_at
		 FROM rollback_snapshots ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*snapshot.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows snapshots: %w", err)
	}
	return snaps, nil
}

// ListExpiredSnapshots returns snapshots whose retention window has
// passed and that opted into automatic cleanup.
func (s *Store) ListExpiredSnapshots(now time.Time) ([]*snapshot.Snapshot, error) {
	rows, err := s.db.Query(
		`SELECT id, batch_id, snapshot_type, paths_json, db_state_json,
			auto_cleanup, cleanup_after_days, expires_at, created_at
		 FROM rollback_snapshots
		 WHERE auto_cleanup = 1 AND expires_at < ?
		 ORDER BY expires_at`,
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("store: list expired snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*snapshot.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows expired snapshots: %w", err)
	}
	return snaps, nil
}

// DeleteSnapshot removes a snapshot metadata row.
func (s *Store) DeleteSnapshot(id string) error {
	res, err := s.db.Exec(`DELETE FROM rollback_snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete snapshot: %w", err)
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

func scanSnapshot(row scanner) (*snapshot.Snapshot, error) {
	var snap snapshot.Snapshot
	var pathsJSON, dbStateJSON string
	err := row.Scan(
		&snap.ID, &snap.BatchID, &snap.Type, &pathsJSON, &dbStateJSON,
		&snap.AutoCleanup, &snap.CleanupAfterDays, &snap.ExpiresAt,
		&snap.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(pathsJSON), &snap.Paths); err != nil {
		return nil, fmt.Errorf("store: decode snapshot paths: %w", err)
	}
	if err := json.Unmarshal([]byte(dbStateJSON), &snap.DBState); err != nil {
		return nil, fmt.Errorf("store: decode snapshot db state: %w", err)
	}
	return &snap, nil
}
