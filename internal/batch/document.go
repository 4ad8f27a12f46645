package batch

// DocStatus is the lifecycle state of a single document within a batch.
type DocStatus string

const (
	DocPending    DocStatus = "pending"
	DocProcessing DocStatus = "processing"
	DocSuccess    DocStatus = "success"
	DocFailed     DocStatus = "failed"
	DocSkipped    DocStatus = "skipped"
	DocRolledBack DocStatus = "rolled_back"
)

// Document is one input file of a batch. It is owned by exactly one
// Operation and cascade-deleted with it. DocumentID references, but
// does not own, the persisted document the pipeline may have produced.
type Document struct {
	ID         int64 `json:"id"`
	BatchID    int64 `json:"batch_id"`
	DocumentID int64 `json:"document_id,omitempty"` // 0 if no row was persisted

	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	Position int    `json:"position"` // 0-based processing order

	Status     DocStatus `json:"status"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"` // inherited from batch config

	Confidence   float64 `json:"confidence,omitempty"`
	Category     string  `json:"category,omitempty"`
	ProcessingMs int64   `json:"processing_ms"`
	ErrorMessage string  `json:"error_message,omitempty"`

	OriginalPath  string `json:"original_path"`
	BackupPath    string `json:"backup_path,omitempty"`
	SnapshotState string `json:"snapshot_state,omitempty"` // JSON blob of pre-processing state
}

// CanRetry reports whether a failed document has attempts left.
func (d *Document) CanRetry() bool {
	return d.Status == DocFailed && d.RetryCount < d.MaxRetries
}

// IsProcessed reports whether the document has a terminal outcome.
func (d *Document) IsProcessed() bool {
	switch d.Status {
	case DocSuccess, DocFailed, DocSkipped, DocRolledBack:
		return true
	}
	return false
}

// IncrementRetry records a failed attempt. It returns true when the
// document may be attempted again at the same position. Once the ceiling
// is reached the document is marked terminally failed; this is the only
// path by which a document becomes terminal without external
// intervention. RetryCount never exceeds MaxRetries.
func (d *Document) IncrementRetry() bool {
	if d.RetryCount < d.MaxRetries {
		d.RetryCount++
		return true
	}
	d.Status = DocFailed
	return false
}
