package destination

import "context"

// Repository persists the destination registry as a single document.
type Repository interface {
	Load(ctx context.Context) (Document, error)
	Save(ctx context.Context, doc Document) error
}
