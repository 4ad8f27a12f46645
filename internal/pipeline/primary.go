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

// primaryProcessor is the full ingest path: hash, classify, copy the
// bytes into the managed documents directory, and persist a document
// row. Persistence upserts on content hash, so re-invocation after a
// transient failure resolves to the same row.
type primaryProcessor struct {
	store        *store.Store
	documentsDir string
}

func (p *primaryProcessor) Name() string { return "primary" }

func (p *primaryProcessor) Process(ctx context.Context, path string) (*Result, error) {
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

	storedPath := filepath.Join(p.documentsDir, hash[:2], hash+filepath.Ext(path))
	if err := snapshot.CopyFile(path, storedPath, info.Mode()); err != nil {
		return nil, fmt.Errorf("pipeline: store %s: %w", path, err)
	}

	docID, err := p.store.UpsertDocument(&store.Document{
		Filename:    filepath.Base(path),
		StoredPath:  storedPath,
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
