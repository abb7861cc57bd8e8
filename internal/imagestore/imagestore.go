// Package imagestore uploads and deletes image assets in the external object store.
package imagestore

import "context"

// UploadResult describes a stored asset.
type UploadResult struct {
	URL      string
	PublicID string
	Bytes    int64
}

// Client is the object store collaborator used by the upload pipeline and the
// deletion cascades. Implementations must be safe for concurrent use.
type Client interface {
	// Upload stores the given encoded image bytes under publicID and returns
	// the public URL of the asset.
	Upload(ctx context.Context, data []byte, publicID string) (*UploadResult, error)
	// Delete removes the asset with the given publicID. Deleting an unknown
	// asset is not an error.
	Delete(ctx context.Context, publicID string) error
}
