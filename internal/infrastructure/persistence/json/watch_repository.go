// Package json implements the repository interfaces on single JSON
// documents. Each repository owns one file and writes it atomically via a
// temp file and rename, so a crashed save never leaves a half-written
// document behind.
package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/therudywolf/DomainsBot-sub000/internal/domain/watch"
	consts "github.com/therudywolf/DomainsBot-sub000/internal/shared/constants"
	sharedErrors "github.com/therudywolf/DomainsBot-sub000/internal/shared/errors"
)

const watchFileName = "monitoring.json"

// WatchRepository stores the whole monitoring document in one JSON file.
type WatchRepository struct {
	path string
	mu   sync.Mutex
}

// NewWatchRepository creates the data directory if needed and returns a
// repository backed by monitoring.json inside it.
func NewWatchRepository(dataDir string) (*WatchRepository, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if err := os.MkdirAll(dataDir, consts.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &WatchRepository{path: filepath.Join(dataDir, watchFileName)}, nil
}

// Load reads the full document. A missing file yields an empty document.
func (r *WatchRepository) Load(ctx context.Context) (watch.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return watch.Document{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", sharedErrors.ErrRepositoryOperation, r.path, err)
	}

	var doc watch.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	if doc == nil {
		doc = watch.Document{}
	}
	return doc, nil
}

// Save writes the full document atomically.
func (r *WatchRepository) Save(ctx context.Context, doc watch.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}
	return writeFileAtomic(r.path, data)
}

// writeFileAtomic writes to a sibling temp file and renames it over the
// target so readers never observe a torn write.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, consts.DefaultFilePerm); err != nil {
		return fmt.Errorf("%w: write %s: %v", sharedErrors.ErrRepositoryOperation, tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", sharedErrors.ErrRepositoryOperation, path, err)
	}
	return nil
}
