package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/podcast-ingest/internal/spotify"
	"github.com/JakeFAU/podcast-ingest/internal/store"
)

// Store is the persistence gateway consumed by a run.
type Store interface {
	EnsureSchema(ctx context.Context, table store.Table) error
	FetchPending(ctx context.Context, table store.Table) ([]store.PendingItem, error)
	UpsertProfile(ctx context.Context, table store.Table, profile spotify.ShowProfile) (bool, error)
	UpsertSearchResult(ctx context.Context, table store.Table, result spotify.SearchResult) (bool, error)
}

// BlobStore keeps raw upstream responses.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher announces saved records.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Hasher names archived responses by content.
type Hasher interface {
	Short(data []byte, n int) string
}

// IDGenerator yields run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
