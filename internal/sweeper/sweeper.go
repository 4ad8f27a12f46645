// Package sweeper reclaims expired rollback snapshots: backup bytes on
// disk plus the metadata row. It only touches snapshots that opted into
// automatic cleanup, and never batch operations or their documents.
package sweeper

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/avandermeer/docbatch/internal/store"
)

// Policy controls a sweep run.
type Policy struct {
	DryRun bool // report without deleting
}

// Result tracks what was cleaned up.
type Result struct {
	SnapshotsRemoved int
	BytesFreed       int64
}

type Sweeper struct {
	store     *store.Store
	backupDir string
	log       zerolog.Logger
}

func New(st *store.Store, backupDir string, log zerolog.Logger) *Sweeper {
	return &Sweeper{store: st, backupDir: backupDir, log: log}
}

// Sweep deletes every snapshot past its expiry that allows auto
// cleanup. Runs on an external schedule; capture and rollback never
// invoke it.
func (s *Sweeper) Sweep(now time.Time, policy Policy) (*Result, error) {
	expired, err := s.store.ListExpiredSnapshots(now)
	if err != nil {
		return nil, fmt.Errorf("sweeper: %w", err)
	}

	result := &Result{}
	for _, snap := range expired {
		dir := filepath.Join(s.backupDir, snap.ID)
		size := dirSize(dir)

		if !policy.DryRun {
			if err := os.RemoveAll(dir); err != nil {
				s.log.Warn().Err(err).Str("snapshot_id", snap.ID).Msg("backup removal failed")
				continue
			}
			if err := s.store.DeleteSnapshot(snap.ID); err != nil {
				s.log.Warn().Err(err).Str("snapshot_id", snap.ID).Msg("snapshot row removal failed")
				continue
			}
		}

		result.SnapshotsRemoved++
		result.BytesFreed += size
		s.log.Info().Str("snapshot_id", snap.ID).Int64("bytes", size).
			Bool("dry_run", policy.DryRun).Msg("snapshot swept")
	}
	return result, nil
}

func dirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
