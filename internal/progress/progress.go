// Package progress provides a low-latency read path for batch progress.
// The cache holds derived reports for batches in flight; the durable
// batch_operations row stays the source of truth and misses fall
// through to it.
package progress

import (
	"sync"
	"time"

	"github.com/avandermeer/docbatch/internal/batch"
	"github.com/avandermeer/docbatch/internal/store"
)

// Report is a point-in-time projection of one batch's progress.
type Report struct {
	BatchID             int64        `json:"batch_id"`
	Status              batch.Status `json:"status"`
	TotalFiles          int          `json:"total_files"`
	FilesProcessed      int          `json:"files_processed"`
	FilesSucceeded      int          `json:"files_succeeded"`
	FilesFailed         int          `json:"files_failed"`
	CurrentIndex        int          `json:"current_file_index"`
	Percent             float64      `json:"progress_percentage"`
	SuccessRate         float64      `json:"success_rate"`
	EstimatedCompletion string       `json:"estimated_completion,omitempty"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// Cache caches reports for active batches, keyed by batch id.
type Cache struct {
	mu      sync.RWMutex
	store   *store.Store
	reports map[int64]Report
}

func NewCache(st *store.Store) *Cache {
	return &Cache{store: st, reports: make(map[int64]Report)}
}

func fromOperation(op *batch.Operation) Report {
	return Report{
		BatchID:             op.ID,
		Status:              op.Status,
		TotalFiles:          op.TotalFiles,
		FilesProcessed:      op.FilesProcessed,
		FilesSucceeded:      op.FilesSucceeded,
		FilesFailed:         op.FilesFailed,
		CurrentIndex:        op.CurrentIndex,
		Percent:             op.ProgressPercentage(),
		SuccessRate:         op.SuccessRate(),
		EstimatedCompletion: op.EstimatedCompletion,
		UpdatedAt:           time.Now(),
	}
}

// Put refreshes the cached report from the operation's current state.
func (c *Cache) Put(op *batch.Operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports[op.ID] = fromOperation(op)
}

// Get returns the cached report for a batch, reading through to the
// store on a miss.
func (c *Cache) Get(batchID int64) (Report, error) {
	c.mu.RLock()
	report, ok := c.reports[batchID]
	c.mu.RUnlock()
	if ok {
		return report, nil
	}

	op, err := c.store.GetOperation(batchID)
	if err != nil {
		return Report{}, err
	}
	report = fromOperation(op)

	c.mu.Lock()
	c.reports[batchID] = report
	c.mu.Unlock()
	return report, nil
}

// Forget drops a batch from the cache once it reaches a terminal state.
// Later reads fall through to the durable row.
func (c *Cache) Forget(batchID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.reports, batchID)
}

// List returns all cached reports.
func (c *Cache) List() []Report {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]Report, 0, len(c.reports))
	for _, r := range c.reports {
		result = append(result, r)
	}
	return result
}
