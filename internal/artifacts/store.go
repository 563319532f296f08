// Package artifacts offloads large artifact payloads (tool outputs, research
// reports, captured blobs) to local disk or S3 so ConversationState and
// checkpoints carry a reference instead of the full content.
package artifacts

import (
	"context"
	"io"
)

// PutOptions carries metadata alongside a Put so backends (local filesystem,
// S3) can tag the stored object without requiring the caller's data type.
type PutOptions struct {
	MimeType string
	Metadata map[string]string
}

// Store is implemented by each artifact backend. Put returns a reference URI
// (file:// or s3://) suitable for models.Artifact.StorageURI.
type Store interface {
	Put(ctx context.Context, artifactID string, data io.Reader, opts PutOptions) (string, error)
	Get(ctx context.Context, artifactID string) (io.ReadCloser, error)
	Delete(ctx context.Context, artifactID string) error
	Exists(ctx context.Context, artifactID string) (bool, error)
	Close() error
}

// InlineThreshold is the size below which an artifact is kept inline in
// models.Artifact.Content instead of being offloaded to a Store.
const InlineThreshold int64 = 64 * 1024
