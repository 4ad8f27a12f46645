// Package pipeline defines the per-file processing boundary the batch
// orchestrator delegates to, and ships the two built-in variants. A
// processor must be safely retryable: re-invoking it after a transient
// failure must not corrupt state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avandermeer/docbatch/internal/store"
)

// ErrUnknownPipeline is returned for an unrecognized pipeline selector.
var ErrUnknownPipeline = errors.New("pipeline: unknown pipeline")

// Result is the outcome of processing one file.
type Result struct {
	Category   string        `json:"category"`
	Confidence float64       `json:"confidence"`
	Duration   time.Duration `json:"duration"`
	DocumentID int64         `json:"document_id,omitempty"` // 0 if nothing was persisted
}

// Processor processes a single file and optionally persists a document.
type Processor interface {
	Name() string
	Process(ctx context.Context, path string) (*Result, error)
}

// New returns the processor matching the given selector.
func New(name string, st *store.Store, documentsDir string) (Processor, error) {
	switch name {
	case "primary":
		return &primaryProcessor{store: st, documentsDir: documentsDir}, nil
	case "alternate":
		return &alternateProcessor{store: st}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPipeline, name)
}
