package watch

import (
	"context"
	"time"
)

// Fetcher retrieves the current catalog snapshot for a topic.
type Fetcher interface {
	Fetch(ctx context.Context, topic Topic) (ProductMap, error)
}

// StateStore persists the last known snapshot per topic.
type StateStore interface {
	PathFor(topic Topic) string
	Load(ctx context.Context, topic Topic) (ProductMap, error)
	Save(ctx context.Context, topic Topic, products ProductMap) error
}

// BlobStore reads and writes opaque state blobs by key.
type BlobStore interface {
	GetObject(ctx context.Context, path string) ([]byte, error)
	PutObject(ctx context.Context, path string, contentType string, data []byte) error
}

// Notifier delivers added products to the notification sink.
type Notifier interface {
	Notify(ctx context.Context, products []Product) error
}

// Hasher derives hex digests from ordered string parts.
type Hasher interface {
	Sum(parts ...string) string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces cycle ids.
type IDGenerator interface {
	NewID() (string, error)
}
