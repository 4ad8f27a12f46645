package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// CaptureError means the snapshot could not be fully built. The partial
// backup directory has already been removed; the batch must not start
// processing.
type CaptureError struct {
	Path string
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("snapshot: capture %s: %v", e.Path, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Options controls snapshot retention.
type Options struct {
	AutoCleanup      bool
	CleanupAfterDays int // default 30
}

// Capturer builds snapshots under a backup root directory. Each
// snapshot owns the subdirectory named by its id; nothing else writes
// there.
type Capturer struct {
	backupDir string
}

func NewCapturer(backupDir string) *Capturer {
	return &Capturer{backupDir: backupDir}
}

// Dir returns the backup directory a snapshot id maps to.
func (c *Capturer) Dir(snapshotID string) string {
	return filepath.Join(c.backupDir, snapshotID)
}

// Capture records the current state of every path and physically backs
// up file contents so rollback can restore bit-exact bytes. On any
// failure mid-capture the partial backup directory is deleted and a
// CaptureError is returned.
func (c *Capturer) Capture(batchID int64, paths []string, dbState DBState, opts Options) (*Snapshot, error) {
	if opts.CleanupAfterDays <= 0 {
		opts.CleanupAfterDays = 30
	}

	id := NewID(batchID)
	dir := c.Dir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &CaptureError{Path: dir, Err: err}
	}

	states := make(map[string]PathState, len(paths))
	for _, p := range paths {
		state, err := c.capturePath(p, dir, 0)
		if err != nil {
			os.RemoveAll(dir)
			return nil, &CaptureError{Path: p, Err: err}
		}
		states[p] = state
	}

	now := time.Now().UTC()
	dbState.BatchID = batchID
	if dbState.CapturedAt == "" {
		dbState.CapturedAt = now.Format(time.RFC3339)
	}

	return &Snapshot{
		ID:               id,
		BatchID:          batchID,
		Type:             TypeMixed,
		Paths:            states,
		DBState:          dbState,
		AutoCleanup:      opts.AutoCleanup,
		CleanupAfterDays: opts.CleanupAfterDays,
		ExpiresAt:        now.AddDate(0, 0, opts.CleanupAfterDays).Format(time.RFC3339),
		CreatedAt:        now.Format(time.RFC3339),
	}, nil
}

func (c *Capturer) capturePath(path, backupRoot string, depth int) (PathState, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return PathState{Exists: false}, nil
		}
		return PathState{}, err
	}
	if info.IsDir() {
		return c.captureDir(path, backupRoot, info, depth)
	}
	return c.captureFile(path, backupRoot, info)
}

func (c *Capturer) captureFile(path, backupRoot string, info os.FileInfo) (PathState, error) {
	hash, err := HashFile(path)
	if err != nil {
		return PathState{}, err
	}

	// Backup files live under a two-character hash prefix directory,
	// named by the full content hash so identical content dedupes.
	backupPath := filepath.Join(backupRoot, hash[:2], hash)
	if err := os.MkdirAll(filepath.Dir(backupPath), 0755); err != nil {
		return PathState{}, err
	}
	if err := copyFile(path, backupPath, info.Mode()); err != nil {
		return PathState{}, err
	}

	return PathState{
		Exists:     true,
		Hash:       hash,
		BackupPath: backupPath,
		Size:       info.Size(),
		ModTime:    info.ModTime().UTC().Format(time.RFC3339),
		Mode:       uint32(info.Mode().Perm()),
	}, nil
}

func (c *Capturer) captureDir(path, backupRoot string, info os.FileInfo, depth int) (PathState, error) {
	state := PathState{
		Exists: true,
		IsDir:  true,
		Mode:   uint32(info.Mode().Perm()),
		Files:  make(map[string]PathState),
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return PathState{}, err
	}

	for _, entry := range entries {
		child := filepath.Join(path, entry.Name())
		if entry.IsDir() {
			state.Subdirs = append(state.Subdirs, entry.Name())
			if depth+1 < MaxDirDepth {
				sub, err := c.capturePath(child, backupRoot, depth+1)
				if err != nil {
					return PathState{}, err
				}
				for p, s := range sub.Files {
					state.Files[p] = s
				}
			}
			continue
		}
		childInfo, err := entry.Info()
		if err != nil {
			return PathState{}, err
		}
		fileState, err := c.captureFile(child, backupRoot, childInfo)
		if err != nil {
			return PathState{}, err
		}
		state.Files[child] = fileState
	}

	return state, nil
}

// HashFile computes the sha256 digest of a file's full byte stream with
// chunked reads.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// CopyFile restores backup bytes over a destination path, creating
// parent directories as needed. Used by the rollback executor.
func CopyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return copyFile(src, dst, mode)
}
