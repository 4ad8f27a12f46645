package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avandermeer/docbatch/internal/snapshot"
	"github.com/avandermeer/docbatch/internal/store"
)

// alternateProcessor is the metadata-only ingest path: it hashes and
// classifies the file and persists a document row, but leaves the bytes
// where they are.
type alternateProcessor struct {
	store *store.Store
}

func (p *alternateProcessor) Name() string { return "alternate" }

func (p *alternateProcessor) Process(ctx context.Context, path string) (*Result, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: stat %s: %w", path, err)
	}

	hash, err := snapshot.HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: hash %s: %w", path, err)
	}

	category, confidence := Classify(path)

	docID, err := p.store.UpsertDocument(&store.Document{
		Filename:    filepath.Base(path),
		StoredPath:  path,
		ContentHash: hash,
		Size:        info.Size(),
		MimeType:    MimeType(path),
		Category:    category,
		Confidence:  confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: persist %s: %w", path, err)
	}

	return &Result{
		Category:   category,
		Confidence: confidence,
		Duration:   time.Since(start),
		DocumentID: docID,
	}, nil
}
