// Package orchestrator drives batch processing: it owns the per-batch
// state machine, walks the file list in submission order, delegates
// each file to the processing pipeline, records outcomes, and decides
// when to trigger rollback.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/avandermeer/docbatch/internal/batch"
	"github.com/avandermeer/docbatch/internal/pipeline"
	"github.com/avandermeer/docbatch/internal/progress"
	"github.com/avandermeer/docbatch/internal/rollback"
	"github.com/avandermeer/docbatch/internal/snapshot"
	"github.com/avandermeer/docbatch/internal/store"
)

var (
	// ErrValidation means the submission was rejected before a batch
	// operation was created.
	ErrValidation = errors.New("orchestrator: invalid submission")
	// ErrNotRunning is returned by Pause when no worker owns the batch.
	ErrNotRunning = errors.New("orchestrator: batch is not running")
	// ErrNotPaused is returned by Resume for a batch that is not paused.
	ErrNotPaused = errors.New("orchestrator: batch is not paused")
)

// MaxRetryCeiling bounds the per-file retry configuration.
const MaxRetryCeiling = 10

// DefaultPipelineTimeout bounds a single pipeline invocation.
const DefaultPipelineTimeout = 5 * time.Minute

// SubmitConfig is the immutable per-batch configuration.
type SubmitConfig struct {
	UserID       int64
	Name         string
	Pipeline     string // "primary" or "alternate"
	MaxRetries   int    // per-file retry ceiling, 0..10
	AutoRollback bool   // roll back the whole batch on first terminal file failure
	Protect      bool   // capture a rollback snapshot before processing
}

// Options configures an Orchestrator.
type Options struct {
	BackupDir        string
	DocumentsDir     string
	PipelineTimeout  time.Duration
	AutoCleanup      bool
	CleanupAfterDays int
	Logger           zerolog.Logger
}

type Orchestrator struct {
	store        *store.Store
	capturer     *snapshot.Capturer
	executor     *rollback.Executor
	cache        *progress.Cache
	documentsDir string
	timeout      time.Duration
	autoCleanup  bool
	cleanupDays  int
	log          zerolog.Logger

	// newProcessor is swapped in tests to inject failures.
	newProcessor func(name string) (pipeline.Processor, error)

	mu      sync.Mutex
	workers map[int64]*worker
}

type worker struct {
	pause atomic.Bool
	done  chan struct{}
}

func New(st *store.Store, opts Options) *Orchestrator {
	if opts.PipelineTimeout <= 0 {
		opts.PipelineTimeout = DefaultPipelineTimeout
	}
	o := &Orchestrator{
		store:        st,
		capturer:     snapshot.NewCapturer(opts.BackupDir),
		executor:     rollback.NewExecutor(st, opts.Logger),
		cache:        progress.NewCache(st),
		documentsDir: opts.DocumentsDir,
		timeout:      opts.PipelineTimeout,
		autoCleanup:  opts.AutoCleanup,
		cleanupDays:  opts.CleanupAfterDays,
		log:          opts.Logger,
		workers:      make(map[int64]*worker),
	}
	o.newProcessor = func(name string) (pipeline.Processor, error) {
		return pipeline.New(name, st, opts.DocumentsDir)
	}
	return o
}

// Progress exposes the low-latency progress read path.
func (o *Orchestrator) Progress() *progress.Cache { return o.cache }

// Executor exposes the rollback executor for explicit user-requested
// rollbacks.
func (o *Orchestrator) Executor() *rollback.Executor { return o.executor }

// Submit validates the submission, creates the batch operation,
// captures a snapshot when protection was requested, and starts
// asynchronous processing. It returns the batch id immediately.
func (o *Orchestrator) Submit(files []string, cfg SubmitConfig) (int64, error) {
	if len(files) == 0 {
		return 0, fmt.Errorf("%w: empty file list", ErrValidation)
	}
	if cfg.MaxRetries < 0 || cfg.MaxRetries > MaxRetryCeiling {
		return 0, fmt.Errorf("%w: max retries %d outside [0,%d]", ErrValidation, cfg.MaxRetries, MaxRetryCeiling)
	}
	if cfg.Pipeline == "" {
		cfg.Pipeline = "primary"
	}
	if _, err := o.newProcessor(cfg.Pipeline); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	op := &batch.Operation{
		UserID:       cfg.UserID,
		Name:         cfg.Name,
		TotalFiles:   len(files),
		Pipeline:     cfg.Pipeline,
		AutoRollback: cfg.AutoRollback,
		MaxRetries:   cfg.MaxRetries,
		Status:       batch.StatusPending,
	}
	op.AppendLog("info", fmt.Sprintf("batch submitted: %d files via %s pipeline", len(files), cfg.Pipeline), 0)
	if _, err := o.store.CreateOperation(op); err != nil {
		return 0, err
	}

	for i, path := range files {
		d := &batch.Document{
			BatchID:      op.ID,
			Filename:     filepath.Base(path),
			MimeType:     pipeline.MimeType(path),
			Position:     i,
			Status:       batch.DocPending,
			MaxRetries:   cfg.MaxRetries,
			OriginalPath: path,
		}
		if info, err := os.Stat(path); err == nil {
			d.Size = info.Size()
		}
		if _, err := o.store.CreateBatchDocument(d); err != nil {
			return 0, err
		}
	}

	op.Transition(batch.StatusValidating)
	if cfg.Protect {
		if err := o.protect(op, files); err != nil {
			op.Status = batch.StatusFailed
			op.ErrorMessage = err.Error()
			op.CompletedAt = time.Now().UTC().Format(time.RFC3339)
			op.AppendLog("error", "snapshot capture failed, batch aborted", 0)
			o.store.UpdateOperation(op)
			return 0, err
		}
	}

	op.Transition(batch.StatusProcessing)
	op.StartedAt = time.Now().UTC().Format(time.RFC3339)
	if err := o.store.UpdateOperation(op); err != nil {
		return 0, err
	}
	o.cache.Put(op)

	o.start(op.ID)
	return op.ID, nil
}

// protect captures the pre-processing snapshot: every input path plus
// the destination directory processing writes into.
func (o *Orchestrator) protect(op *batch.Operation, files []string) error {
	paths := make([]string, 0, len(files)+1)
	paths = append(paths, files...)
	paths = append(paths, o.documentsDir)

	docCount, _ := o.store.DocumentCount()
	opCount, _ := o.store.OperationCount()

	snap, err := o.capturer.Capture(op.ID, paths, snapshot.DBState{
		DocumentCount:  docCount,
		OperationCount: opCount,
	}, snapshot.Options{
		AutoCleanup:      o.autoCleanup,
		CleanupAfterDays: o.cleanupDays,
	})
	if err != nil {
		return err
	}
	if err := o.store.SaveSnapshot(snap); err != nil {
		os.RemoveAll(o.capturer.Dir(snap.ID))
		return err
	}
	op.SnapshotID = snap.ID
	op.CanRollback = true
	op.AppendLog("info", fmt.Sprintf("snapshot %s captured over %d paths", snap.ID, len(paths)), 0)
	return nil
}

func (o *Orchestrator) start(batchID int64) {
	w := &worker{done: make(chan struct{})}
	o.mu.Lock()
	o.workers[batchID] = w
	o.mu.Unlock()

	go func() {
		defer close(w.done)
		defer func() {
			o.mu.Lock()
			delete(o.workers, batchID)
			o.mu.Unlock()
		}()
		o.run(batchID, w)
	}()
}

// Wait blocks until the batch's worker finishes (terminal state or
// pause). It returns immediately when no worker owns the batch.
func (o *Orchestrator) Wait(batchID int64) {
	o.mu.Lock()
	w, ok := o.workers[batchID]
	o.mu.Unlock()
	if ok {
		<-w.done
	}
}

// Pause requests a cooperative stop at the next file boundary. The
// current file's outcome is always recorded before the worker yields.
func (o *Orchestrator) Pause(batchID int64) error {
	o.mu.Lock()
	w, ok := o.workers[batchID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: batch %d", ErrNotRunning, batchID)
	}
	w.pause.Store(true)
	return nil
}

// Resume continues a paused batch from its saved position.
func (o *Orchestrator) Resume(batchID int64) error {
	op, err := o.store.GetOperation(batchID)
	if err != nil {
		return err
	}
	if op.Status != batch.StatusPaused {
		return fmt.Errorf("%w: batch %d is %s", ErrNotPaused, batchID, op.Status)
	}
	if err := op.Transition(batch.StatusProcessing); err != nil {
		return err
	}
	op.AppendLog("info", fmt.Sprintf("resumed at file index %d", op.CurrentIndex), 0)
	if err := o.store.UpdateOperation(op); err != nil {
		return err
	}
	o.cache.Put(op)
	o.start(batchID)
	return nil
}

// run is the per-batch worker loop. One batch is processed by a single
// worker, file by file in processing order; multiple batches run as
// independent workers.
func (o *Orchestrator) run(batchID int64, w *worker) {
	op, err := o.store.GetOperation(batchID)
	if err != nil {
		o.log.Error().Err(err).Int64("batch_id", batchID).Msg("worker load failed")
		return
	}
	docs, err := o.store.ListBatchDocuments(batchID)
	if err != nil {
		o.log.Error().Err(err).Int64("batch_id", batchID).Msg("worker load documents failed")
		return
	}
	proc, err := o.newProcessor(op.Pipeline)
	if err != nil {
		o.fail(op, err)
		return
	}

	for i := op.CurrentIndex; i < len(docs); i++ {
		if w.pause.Load() {
			if op.Transition(batch.StatusPaused) == nil {
				op.AppendLog("info", fmt.Sprintf("paused at file index %d", op.CurrentIndex), 0)
				o.store.UpdateOperation(op)
				o.cache.Put(op)
			}
			return
		}

		d := docs[i]
		if d.IsProcessed() {
			continue
		}
		o.processDocument(op, d, proc)

		op.FilesProcessed++
		op.CurrentIndex = i + 1
		op.TotalProcessingMs += d.ProcessingMs
		op.UpdateEstimate(time.Now())
		o.store.UpdateBatchDocument(d)
		o.store.UpdateOperation(op)
		o.cache.Put(op)

		if d.Status == batch.DocFailed && op.AutoRollback {
			o.autoRollback(op, docs, i)
			return
		}
	}

	o.finish(op)
}

// processDocument runs one file through the pipeline, retrying failures
// synchronously at the same position until the ceiling is reached.
// Retries are immediate, with no back-off.
func (o *Orchestrator) processDocument(op *batch.Operation, d *batch.Document, proc pipeline.Processor) {
	d.Status = batch.DocProcessing
	o.store.UpdateBatchDocument(d)

	for {
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		res, err := proc.Process(ctx, d.OriginalPath)
		cancel()

		if err == nil {
			d.Status = batch.DocSuccess
			d.Category = res.Category
			d.Confidence = res.Confidence
			d.ProcessingMs += res.Duration.Milliseconds()
			d.DocumentID = res.DocumentID
			d.ErrorMessage = ""
			op.FilesSucceeded++
			op.AppendLog("info", fmt.Sprintf("%s processed as %s", d.Filename, d.Category), d.ID)
			return
		}

		d.ErrorMessage = err.Error()
		if d.IncrementRetry() {
			op.AppendLog("warn", fmt.Sprintf("%s failed, retry %d/%d: %v",
				d.Filename, d.RetryCount, d.MaxRetries, err), d.ID)
			o.store.UpdateBatchDocument(d)
			continue
		}

		op.FilesFailed++
		op.AppendLog("error", fmt.Sprintf("%s failed permanently after %d retries: %v",
			d.Filename, d.RetryCount, err), d.ID)
		o.log.Warn().Err(err).Int64("batch_id", op.ID).Str("file", d.Filename).
			Int("retries", d.RetryCount).Msg("document failed")
		return
	}
}

// autoRollback halts processing, marks the remaining documents skipped,
// and rolls the batch back.
func (o *Orchestrator) autoRollback(op *batch.Operation, docs []*batch.Document, failedIndex int) {
	for _, d := range docs[failedIndex+1:] {
		if d.IsProcessed() {
			continue
		}
		d.Status = batch.DocSkipped
		o.store.UpdateBatchDocument(d)
	}
	op.AppendLog("warn", "auto rollback triggered, remaining files skipped", 0)
	o.store.UpdateOperation(op)

	if _, err := o.executor.Rollback(op.ID, "auto: file failure"); err != nil {
		o.log.Error().Err(err).Int64("batch_id", op.ID).Msg("auto rollback failed")
		o.fail(op, fmt.Errorf("auto rollback failed: %w", err))
		return
	}
	o.cache.Forget(op.ID)
}

// finish moves the batch to the most specific terminal state.
func (o *Orchestrator) finish(op *batch.Operation) {
	var final batch.Status
	switch {
	case op.FilesFailed == 0:
		final = batch.StatusCompleted
	case op.FilesSucceeded > 0:
		final = batch.StatusPartialSuccess
	default:
		final = batch.StatusFailed
	}
	if final == batch.StatusFailed {
		op.ErrorMessage = "all files failed"
	}

	op.Transition(final)
	op.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	op.EstimatedCompletion = ""
	op.AppendLog("info", fmt.Sprintf("batch finished: %s (%d/%d succeeded)",
		final, op.FilesSucceeded, op.TotalFiles), 0)
	o.store.UpdateOperation(op)
	o.cache.Forget(op.ID)

	o.log.Info().Int64("batch_id", op.ID).Str("status", string(final)).
		Int("succeeded", op.FilesSucceeded).Int("failed", op.FilesFailed).
		Msg("batch finished")
}

func (o *Orchestrator) fail(op *batch.Operation, err error) {
	op.Status = batch.StatusFailed
	op.ErrorMessage = err.Error()
	op.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	op.AppendLog("error", err.Error(), 0)
	o.store.UpdateOperation(op)
	o.cache.Forget(op.ID)
}
