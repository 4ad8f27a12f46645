package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avandermeer/docbatch/internal/batch"
	"github.com/avandermeer/docbatch/internal/snapshot"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestOperation() *batch.Operation {
	return &batch.Operation{
		UserID:     1,
		Name:       "invoice import",
		TotalFiles: 3,
		Pipeline:   "primary",
		MaxRetries: 3,
		Status:     batch.StatusPending,
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := Open(dbPath)
	require.NoError(t, err)
	require.NotNil(t, s)

	// Verify WAL mode is active.
	var journalMode string
	err = s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	require.NoError(t, err)
	assert.Equal(t, "wal", journalMode)

	assert.Equal(t, dbPath, s.Path())
	require.NoError(t, s.Close())
}

func TestCreateGetOperation(t *testing.T) {
	s := openTestStore(t)

	op := newTestOperation()
	op.AppendLog("info", "batch created", 0)

	id, err := s.CreateOperation(op)
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	got, err := s.GetOperation(id)
	require.NoError(t, err)
	assert.Equal(t, "invoice import", got.Name)
	assert.Equal(t, batch.StatusPending, got.Status)
	assert.Equal(t, 3, got.TotalFiles)
	require.Len(t, got.Log, 1)
	assert.Equal(t, "batch created", got.Log[0].Message)

	_, err = s.GetOperation(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateOperation(t *testing.T) {
	s := openTestStore(t)

	op := newTestOperation()
	_, err := s.CreateOperation(op)
	require.NoError(t, err)

	op.Status = batch.StatusProcessing
	op.FilesProcessed = 2
	op.FilesSucceeded = 2
	op.CurrentIndex = 2
	op.StartedAt = time.Now().UTC().Format(time.RFC3339)
	require.NoError(t, s.UpdateOperation(op))

	got, err := s.GetOperation(op.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusProcessing, got.Status)
	assert.Equal(t, 2, got.FilesProcessed)
	assert.Equal(t, 2, got.CurrentIndex)

	missing := newTestOperation()
	missing.ID = 9999
	assert.ErrorIs(t, s.UpdateOperation(missing), ErrNotFound)
}

func TestListOperationsAndActiveCount(t *testing.T) {
	s := openTestStore(t)

	for _, st := range []batch.Status{batch.StatusProcessing, batch.StatusCompleted, batch.StatusProcessing} {
		op := newTestOperation()
		op.Status = st
		_, err := s.CreateOperation(op)
		require.NoError(t, err)
	}

	all, err := s.ListOperations("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	processing, err := s.ListOperations(batch.StatusProcessing, 0)
	require.NoError(t, err)
	assert.Len(t, processing, 2)

	n, err := s.ActiveCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestBatchDocumentLifecycle(t *testing.T) {
	s := openTestStore(t)

	op := newTestOperation()
	batchID, err := s.CreateOperation(op)
	require.NoError(t, err)

	d := &batch.Document{
		BatchID:      batchID,
		Filename:     "a.pdf",
		Size:         1024,
		MimeType:     "application/pdf",
		Position:     0,
		Status:       batch.DocPending,
		MaxRetries:   3,
		OriginalPath: "/tmp/a.pdf",
	}
	_, err = s.CreateBatchDocument(d)
	require.NoError(t, err)

	d.Status = batch.DocSuccess
	d.Confidence = 0.92
	d.Category = "invoice"
	d.DocumentID = 11
	require.NoError(t, s.UpdateBatchDocument(d))

	got, err := s.GetBatchDocument(d.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.DocSuccess, got.Status)
	assert.Equal(t, int64(11), got.DocumentID)
	assert.InDelta(t, 0.92, got.Confidence, 0.001)

	docs, err := s.ListBatchDocuments(batchID)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a.pdf", docs[0].Filename)
}

func TestBatchDocumentsOrderedByPosition(t *testing.T) {
	s := openTestStore(t)

	op := newTestOperation()
	batchID, err := s.CreateOperation(op)
	require.NoError(t, err)

	for _, pos := range []int{2, 0, 1} {
		d := &batch.Document{BatchID: batchID, Filename: "f", Position: pos, Status: batch.DocPending}
		_, err := s.CreateBatchDocument(d)
		require.NoError(t, err)
	}

	docs, err := s.ListBatchDocuments(batchID)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, d := range docs {
		assert.Equal(t, i, d.Position)
	}
}

func TestCascadeDeleteBatchDocuments(t *testing.T) {
	s := openTestStore(t)

	op := newTestOperation()
	batchID, err := s.CreateOperation(op)
	require.NoError(t, err)

	d := &batch.Document{BatchID: batchID, Filename: "a.pdf", Status: batch.DocPending}
	_, err = s.CreateBatchDocument(d)
	require.NoError(t, err)

	_, err = s.db.Exec(`DELETE FROM batch_operations WHERE id = ?`, batchID)
	require.NoError(t, err)

	docs, err := s.ListBatchDocuments(batchID)
	require.NoError(t, err)
	assert.Empty(t, docs, "batch documents cascade-delete with their operation")
}

func TestUpsertDocumentIdempotent(t *testing.T) {
	s := openTestStore(t)

	d := &Document{Filename: "a.pdf", ContentHash: "abc123", Size: 10, BatchID: 1}
	id1, err := s.UpsertDocument(d)
	require.NoError(t, err)

	again := &Document{Filename: "a.pdf", ContentHash: "abc123", Size: 10, BatchID: 1}
	id2, err := s.UpsertDocument(again)
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "same content hash resolves to the same row")

	n, err := s.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestDeleteDocumentIdempotent(t *testing.T) {
	s := openTestStore(t)

	d := &Document{Filename: "a.pdf", ContentHash: "h1"}
	id, err := s.UpsertDocument(d)
	require.NoError(t, err)

	require.NoError(t, s.DeleteDocument(id))
	require.NoError(t, s.DeleteDocument(id), "deleting a missing row is not an error")

	_, err = s.GetDocument(id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)

	op := newTestOperation()
	batchID, err := s.CreateOperation(op)
	require.NoError(t, err)

	now := time.Now().UTC()
	snap := &snapshot.Snapshot{
		ID:      snapshot.NewID(batchID),
		BatchID: batchID,
		Type:    snapshot.TypeMixed,
		Paths: map[string]snapshot.PathState{
			"/tmp/a.pdf": {Exists: true, Hash: "h1", BackupPath: "/backups/h1", Size: 10},
			"/tmp/new":   {Exists: false},
		},
		DBState:          snapshot.DBState{BatchID: batchID, DocumentCount: 5},
		AutoCleanup:      true,
		CleanupAfterDays: 30,
		ExpiresAt:        now.AddDate(0, 0, 30).Format(time.RFC3339),
	}
	require.NoError(t, s.SaveSnapshot(snap))

	got, err := s.GetSnapshotByBatch(batchID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, got.ID)
	assert.True(t, got.Paths["/tmp/a.pdf"].Exists)
	assert.False(t, got.Paths["/tmp/new"].Exists)
	assert.Equal(t, int64(5), got.DBState.DocumentCount)

	byID, err := s.GetSnapshot(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, batchID, byID.BatchID)

	_, err = s.GetSnapshotByBatch(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListExpiredSnapshots(t *testing.T) {
	s := openTestStore(t)

	now := time.Now().UTC()

	mk := func(expires time.Time, autoCleanup bool) {
		op := newTestOperation()
		batchID, err := s.CreateOperation(op)
		require.NoError(t, err)
		snap := &snapshot.Snapshot{
			ID:          snapshot.NewID(batchID),
			BatchID:     batchID,
			Type:        snapshot.TypeMixed,
			AutoCleanup: autoCleanup,
			ExpiresAt:   expires.Format(time.RFC3339),
		}
		require.NoError(t, s.SaveSnapshot(snap))
	}

	mk(now.Add(-24*time.Hour), true)  // expired, cleanable
	mk(now.Add(-24*time.Hour), false) // expired, opted out
	mk(now.Add(24*time.Hour), true)   // not expired

	expired, err := s.ListExpiredSnapshots(now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.True(t, expired[0].AutoCleanup)
}

func TestDeleteSnapshot(t *testing.T) {
	s := openTestStore(t)

	op := newTestOperation()
	batchID, err := s.CreateOperation(op)
	require.NoError(t, err)

	snap := &snapshot.Snapshot{
		ID:        snapshot.NewID(batchID),
		BatchID:   batchID,
		Type:      snapshot.TypeFilesystem,
		ExpiresAt: time.Now().UTC().Format(time.RFC3339),
	}
	require.NoError(t, s.SaveSnapshot(snap))
	require.NoError(t, s.DeleteSnapshot(snap.ID))
	assert.ErrorIs(t, s.DeleteSnapshot(snap.ID), ErrNotFound)
}
