// Package snapshot captures restorable filesystem state before a batch
// mutates anything. Each monitored path is described by existence, a
// sha256 content hash, and a physical backup copy; directories are
// captured recursively to a bounded depth.
package snapshot

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Snapshot types.
const (
	TypeFilesystem = "filesystem"
	TypeDatabase   = "database"
	TypeMixed      = "mixed"
)

// MaxDirDepth bounds recursive directory capture.
const MaxDirDepth = 3

// PathState is the captured state of one monitored path. Exists=false
// means the path was absent at capture time, so rollback deletes
// whatever was later created there.
type PathState struct {
	Exists     bool   `json:"exists"`
	IsDir      bool   `json:"is_dir,omitempty"`
	Hash       string `json:"hash,omitempty"`
	BackupPath string `json:"backup_path,omitempty"`
	Size       int64  `json:"size,omitempty"`
	ModTime    string `json:"mod_time,omitempty"` // RFC3339
	Mode       uint32 `json:"mode,omitempty"`

	// Directory capture: contained files keyed by absolute path,
	// immediate subdirectory names, and whether the directory itself
	// was created during the batch (updated after capture).
	Files              map[string]PathState `json:"files,omitempty"`
	Subdirs            []string             `json:"subdirs,omitempty"`
	CreatedDuringBatch bool                 `json:"created_during_batch,omitempty"`
}

// DBState is a lightweight description of database state at capture
// time, kept for rollback diagnostics.
type DBState struct {
	BatchID        int64  `json:"batch_id"`
	CapturedAt     string `json:"captured_at"` // RFC3339
	DocumentCount  int64  `json:"document_count"`
	OperationCount int64  `json:"operation_count"`
}

// Snapshot is the restorable pre-batch state for one protected batch
// operation (1:1 with its batch).
type Snapshot struct {
	ID      string               `json:"id"`
	BatchID int64                `json:"batch_id"`
	Type    string               `json:"snapshot_type"`
	Paths   map[string]PathState `json:"paths"`
	DBState DBState              `json:"db_state"`

	AutoCleanup      bool   `json:"auto_cleanup"`
	CleanupAfterDays int    `json:"cleanup_after_days"`
	ExpiresAt        string `json:"expires_at"` // RFC3339
	CreatedAt        string `json:"created_at"` // RFC3339
}

// NewID derives a globally unique snapshot id from the batch id plus a
// random suffix.
func NewID(batchID int64) string {
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("snap-%d-%s", batchID, suffix)
}

// Expired reports whether the snapshot's retention window has passed.
// An expired snapshot is no longer rollback-eligible even if its bytes
// have not been swept yet.
func (s *Snapshot) Expired(now time.Time) bool {
	exp, err := time.Parse(time.RFC3339, s.ExpiresAt)
	if err != nil {
		return false
	}
	return now.After(exp)
}
