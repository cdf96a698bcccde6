// Package blob stores raw uploaded documents and issues expiring download
// URLs for them.
package blob

import (
	"context"
	"io"
	"time"
)

// Object describes a stored blob.
type Object struct {
	Path        string
	ByteSize    int64
	ContentType string
}

// Store persists raw document bytes keyed by content hash.
type Store interface {
	// Put writes the object under a path derived from the content hash and
	// file name, returning the storage path.
	Put(ctx context.Context, contentHash, fileName, contentType string, r io.Reader) (Object, error)
	// Open returns a reader for a previously stored object.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// SignedURL returns a URL granting read access to the object until the
	// expiry elapses.
	SignedURL(path string, expiry time.Duration) (string, error)
}
