package rollback

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avandermeer/docbatch/internal/batch"
	"github.com/avandermeer/docbatch/internal/snapshot"
	"github.com/avandermeer/docbatch/internal/store"
)

type fixture struct {
	store    *store.Store
	executor *Executor
	capturer *snapshot.Capturer
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &fixture{
		store:    s,
		executor: NewExecutor(s, zerolog.Nop()),
		capturer: snapshot.NewCapturer(filepath.Join(dir, "backups")),
		dir:      dir,
	}
}

func (f *fixture) createBatch(t *testing.T, status batch.Status) *batch.Operation {
	t.Helper()
	op := &batch.Operation{
		TotalFiles:  2,
		Pipeline:    "primary",
		MaxRetries:  3,
		Status:      status,
		CanRollback: true,
	}
	_, err := f.store.CreateOperation(op)
	require.NoError(t, err)
	return op
}

func (f *fixture) protect(t *testing.T, op *batch.Operation, paths []string) *snapshot.Snapshot {
	t.Helper()
	snap, err := f.capturer.Capture(op.ID, paths, snapshot.DBState{}, snapshot.Options{AutoCleanup: true})
	require.NoError(t, err)
	require.NoError(t, f.store.SaveSnapshot(snap))
	op.SnapshotID = snap.ID
	require.NoError(t, f.store.UpdateOperation(op))
	return snap
}

func TestRollbackRestoresFileAndDeletesCreated(t *testing.T) {
	f := newFixture(t)
	op := f.createBatch(t, batch.StatusProcessing)

	existing := filepath.Join(f.dir, "existing.txt")
	require.NoError(t, os.WriteFile(existing, []byte("before"), 0644))
	created := filepath.Join(f.dir, "created.txt")

	f.protect(t, op, []string{existing, created})

	// Simulate batch effects.
	require.NoError(t, os.WriteFile(existing, []byte("mutated by batch"), 0644))
	require.NoError(t, os.WriteFile(created, []byte("new file"), 0644))

	docID, err := f.store.UpsertDocument(&store.Document{Filename: "existing.txt", ContentHash: "h-exist"})
	require.NoError(t, err)
	bd := &batch.Document{BatchID: op.ID, Filename: "existing.txt", Status: batch.DocSuccess, DocumentID: docID}
	_, err = f.store.CreateBatchDocument(bd)
	require.NoError(t, err)

	result, err := f.executor.Rollback(op.ID, "user requested")
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, 1, result.PathsRestored)
	assert.Equal(t, 1, result.PathsDeleted)
	assert.Equal(t, 1, result.DocumentsDeleted)

	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "before", string(content))
	assert.NoFileExists(t, created)

	_, err = f.store.GetDocument(docID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := f.store.GetOperation(op.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusRolledBack, got.Status)
	assert.Equal(t, "user requested", got.RollbackReason)
	assert.False(t, got.CanRollback)
	assert.NotEmpty(t, got.CompletedAt)

	tracked, err := f.store.GetBatchDocument(bd.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.DocRolledBack, tracked.Status)
	assert.Zero(t, tracked.DocumentID)
}

func TestRollbackRoundTripByteIdentical(t *testing.T) {
	f := newFixture(t)
	op := f.createBatch(t, batch.StatusProcessing)

	path := filepath.Join(f.dir, "doc.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02, 0xff}, 0644))
	hashBefore, err := snapshot.HashFile(path)
	require.NoError(t, err)

	f.protect(t, op, []string{path})

	require.NoError(t, os.WriteFile(path, []byte("completely different"), 0644))

	_, err = f.executor.Rollback(op.ID, "verify restore")
	require.NoError(t, err)

	hashAfter, err := snapshot.HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, hashBefore, hashAfter, "restored content must be byte-identical")
}

func TestRollbackFilesystemPassIdempotent(t *testing.T) {
	f := newFixture(t)
	op := f.createBatch(t, batch.StatusProcessing)

	path := filepath.Join(f.dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0644))
	created := filepath.Join(f.dir, "made.txt")

	snap := f.protect(t, op, []string{path, created})

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0644))
	require.NoError(t, os.WriteFile(created, []byte("x"), 0644))

	first := &Result{}
	f.executor.restoreFilesystem(snap, first)
	assert.Equal(t, 1, first.PathsRestored)
	assert.Equal(t, 1, first.PathsDeleted)

	// Second pass over the same snapshot is a no-op diff.
	second := &Result{}
	f.executor.restoreFilesystem(snap, second)
	assert.Equal(t, 0, second.PathsRestored)
	assert.Equal(t, 0, second.PathsDeleted)
	assert.Equal(t, 1, second.PathsSkipped)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(content))
}

func TestRollbackDirectoryRestore(t *testing.T) {
	f := newFixture(t)
	op := f.createBatch(t, batch.StatusProcessing)

	dir := filepath.Join(f.dir, "inbox")
	require.NoError(t, os.MkdirAll(dir, 0755))
	inner := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(inner, []byte("dir content"), 0644))

	f.protect(t, op, []string{dir})

	require.NoError(t, os.WriteFile(inner, []byte("overwritten"), 0644))

	result, err := f.executor.Rollback(op.ID, "restore dir")
	require.NoError(t, err)
	assert.True(t, result.Success())

	content, err := os.ReadFile(inner)
	require.NoError(t, err)
	assert.Equal(t, "dir content", string(content))
}

func TestRollbackNoSnapshot(t *testing.T) {
	f := newFixture(t)
	op := f.createBatch(t, batch.StatusProcessing)

	_, err := f.executor.Rollback(op.ID, "nothing to restore")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestRollbackExpiredSnapshotLeavesBatchUntouched(t *testing.T) {
	f := newFixture(t)
	op := f.createBatch(t, batch.StatusCompleted)

	snap := &snapshot.Snapshot{
		ID:        snapshot.NewID(op.ID),
		BatchID:   op.ID,
		Type:      snapshot.TypeMixed,
		ExpiresAt: time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
	}
	require.NoError(t, f.store.SaveSnapshot(snap))

	_, err := f.executor.Rollback(op.ID, "too late")
	assert.ErrorIs(t, err, ErrSnapshotExpired)

	got, err := f.store.GetOperation(op.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusCompleted, got.Status, "batch status must be unchanged")
	assert.True(t, got.CanRollback)
}

func TestRollbackTwiceRefused(t *testing.T) {
	f := newFixture(t)
	op := f.createBatch(t, batch.StatusProcessing)

	path := filepath.Join(f.dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))
	f.protect(t, op, []string{path})

	_, err := f.executor.Rollback(op.ID, "first")
	require.NoError(t, err)

	_, err = f.executor.Rollback(op.ID, "second")
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestRollbackContinuesPastBadBackup(t *testing.T) {
	f := newFixture(t)
	op := f.createBatch(t, batch.StatusProcessing)

	good := filepath.Join(f.dir, "good.txt")
	bad := filepath.Join(f.dir, "bad.txt")
	require.NoError(t, os.WriteFile(good, []byte("good v1"), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("bad v1"), 0644))

	snap := f.protect(t, op, []string{good, bad})

	// Corrupt one backup by removing it.
	require.NoError(t, os.Remove(snap.Paths[bad].BackupPath))

	require.NoError(t, os.WriteFile(good, []byte("good v2"), 0644))
	require.NoError(t, os.WriteFile(bad, []byte("bad v2"), 0644))

	result, err := f.executor.Rollback(op.ID, "partial")
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.True(t, result.Partial(), "filesystem-only failure is reported distinctly")
	assert.Len(t, result.FSErrors, 1)
	assert.Empty(t, result.DBErrors)

	// The good path was still restored.
	content, err := os.ReadFile(good)
	require.NoError(t, err)
	assert.Equal(t, "good v1", string(content))
}
