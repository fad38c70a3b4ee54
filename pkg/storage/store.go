// Package storage persists binary blobs: uploaded documents, image
// attachments, and generated images.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the narrow blob interface the research pipeline needs.
// URL returns an externally reachable address for a stored object,
// either from a public base URL or presigned.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// ImageKey returns the canonical object key for a generated image.
func ImageKey(userID, imageID string) string {
	return fmt.Sprintf("users/%s/images/%s.png", userID, imageID)
}

// UploadKey returns the canonical object key for an uploaded file.
func UploadKey(userID, documentID, filename string) string {
	return fmt.Sprintf("users/%s/uploads/%s/%s", userID, documentID, filename)
}
