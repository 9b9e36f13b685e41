// Package storage abstracts the object store that catalog artifacts are
// mirrored through. Implementations cover S3-compatible services and the
// local filesystem for testing and single-host setups.
package storage

import "context"

// ObjectStorage holds built catalog artifacts. Object paths are
// slash-separated keys relative to the store's root.
type ObjectStorage interface {
	// Upload copies a local file to objectPath.
	Upload(ctx context.Context, localPath, objectPath string) error

	// Download copies the object at objectPath to localPath. A missing
	// object is reported with the OBJECT_NOT_FOUND code.
	Download(ctx context.Context, objectPath, localPath string) error

	// Exists reports whether an object is present.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// Delete removes an object. Deleting a missing object is a no-op.
	Delete(ctx context.Context, objectPath string) error

	// ListObjects returns every object path under the given prefix.
	ListObjects(ctx context.Context, prefix string) ([]string, error)
}
