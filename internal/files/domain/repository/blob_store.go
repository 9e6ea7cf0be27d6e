package repository

import (
	"context"
	"io"

	"filestore/internal/files/domain/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BlobStore abstracts the chunked binary object store. Implementations
// stream file contents; callers own the readers and writers they pass in.
type BlobStore interface {
	// Upload streams source into the store under the given object name and
	// returns the store-assigned identifier.
	Upload(ctx context.Context, filename string, metadata model.BlobMetadata, source io.Reader) (primitive.ObjectID, error)

	// OpenDownload opens the stored object for reading and reports its
	// length in bytes. The caller must close the returned stream.
	OpenDownload(ctx context.Context, id primitive.ObjectID) (io.ReadCloser, int64, error)

	// Delete removes the object and its chunks.
	Delete(ctx context.Context, id primitive.ObjectID) error
}
