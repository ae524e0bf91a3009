package attachments

import (
	"context"
	"io"
	"time"
)

// BlobStore abstracts where attachment bytes live (local disk or S3).
type BlobStore interface {
	// Put writes the content under the given key.
	Put(ctx context.Context, key string, body io.Reader, contentType string) error

	// Open streams the content back along with its content type.
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)

	// Remove deletes the content. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// URL returns a link to the content, presigned when the backing store
	// requires it.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}
