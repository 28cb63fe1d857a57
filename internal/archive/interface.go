// Package archive stores serialized pool stats snapshots in object storage.
// Backends share one small interface so deployments can pick filesystem
// storage for single-node setups, S3 for production, or memory for tests.
package archive

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrNotSupported = errors.New("operation not supported")
	ErrInvalidKey   = errors.New("invalid object key")
)

// Store defines the interface for snapshot object storage
type Store interface {
	// Put stores an object under the given key
	Put(ctx context.Context, key string, data io.Reader, contentType string) error

	// Get retrieves an object
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// List objects with a prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectInfo contains metadata about a stored object
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ContentType  string    `json:"content_type"`
}

// Config selects and configures a backend
type Config struct {
	Backend  string // "filesystem", "memory", "s3"
	BasePath string // filesystem root
	Bucket   string // s3 bucket
	Prefix   string // s3 key prefix
	Region   string // s3 region
	Endpoint string // optional, for S3-compatible services like MinIO or SeaweedFS
}

// New creates a snapshot store for the configured backend
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "filesystem":
		basePath := cfg.BasePath
		if basePath == "" {
			basePath = "./snapshots"
		}
		return NewFilesystemStore(basePath), nil
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(S3Config{
			Bucket:   cfg.Bucket,
			Prefix:   cfg.Prefix,
			Region:   cfg.Region,
			Endpoint: cfg.Endpoint,
		})
	default:
		return nil, errors.New("unsupported archive backend: " + cfg.Backend)
	}
}
