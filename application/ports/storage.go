package ports

import (
	"context"
	"io"
	"time"
)

// ObjectMetadata represents metadata associated with stored objects
type ObjectMetadata struct {
	ContentType  string
	LastModified time.Time
	UserMetadata map[string]string
}

// ObjectInfo represents information about a stored object
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Storage abstracts where cleaned CSV files end up (local directory or S3 bucket).
// An empty bucket means the adapter's configured default.
type Storage interface {
	// Put stores an object under key. Implementations must never expose a
	// partially written object: on error the previous object, if any, stays intact.
	Put(ctx context.Context, bucket, key string, reader io.Reader, metadata ObjectMetadata) error

	// List returns the objects whose key starts with prefix
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}
