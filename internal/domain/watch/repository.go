package watch

import "context"

// Repository persists the whole monitoring document as a single unit.
// Callers are responsible for serializing load-modify-save sequences;
// implementations only guarantee that an individual Load or Save is atomic.
type Repository interface {
	// Load reads the full document. A missing backing file yields an empty
	// document, not an error.
	Load(ctx context.Context) (Document, error)

	// Save writes the full document atomically.
	Save(ctx context.Context, doc Document) error
}
