// Package storage uploads and links binary assets (X-rays, medical images)
// through an S3-compatible object store. The sync layer does not replicate
// binary content offline: an unreachable endpoint fails the call.
package storage

import "context"

// UploadInput describes one object to store.
type UploadInput struct {
	Key         string
	Body        []byte
	ContentType string
}

// UploadResult describes the stored object.
type UploadResult struct {
	URL  string
	ETag string
}

// ObjectStore is the boundary UI code uses for medical images.
type ObjectStore interface {
	// Upload stores the object and returns its location.
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
	// PresignGet returns a time-limited download URL for the key.
	PresignGet(key string, expirySeconds int) (string, error)
}
