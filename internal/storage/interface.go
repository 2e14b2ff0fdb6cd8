package storage

import "context"

// Client is the thumbnail storage boundary. Implementations return the
// public url of the stored object.
type Client interface {
	UploadThumbnail(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
