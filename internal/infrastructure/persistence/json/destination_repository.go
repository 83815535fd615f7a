package json

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/therudywolf/DomainsBot-sub000/internal/domain/destination"
	consts "github.com/therudywolf/DomainsBot-sub000/internal/shared/constants"
	sharedErrors "github.com/therudywolf/DomainsBot-sub000/internal/shared/errors"
)

const destinationFileName = "destinations.json"

// DestinationRepository stores the notification destination registry in one
// JSON file.
type DestinationRepository struct {
	path string
	mu   sync.Mutex
}

// NewDestinationRepository creates the data directory if needed and returns
// a repository backed by destinations.json inside it.
func NewDestinationRepository(dataDir string) (*DestinationRepository, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if err := os.MkdirAll(dataDir, consts.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &DestinationRepository{path: filepath.Join(dataDir, destinationFileName)}, nil
}

// Load reads the registry. A missing file yields an empty document.
func (r *DestinationRepository) Load(ctx context.Context) (destination.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return destination.Document{}, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", sharedErrors.ErrRepositoryOperation, r.path, err)
	}

	var doc destination.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}
	if doc == nil {
		doc = destination.Document{}
	}
	return doc, nil
}

// Save writes the registry atomically.
func (r *DestinationRepository) Save(ctx context.Context, doc destination.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}
	return writeFileAtomic(r.path, data)
}
