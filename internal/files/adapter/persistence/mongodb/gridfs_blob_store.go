package mongodb

import (
	"context"
	"fmt"
	"io"

	"filestore/internal/files/domain/model"
	apperrors "filestore/internal/shared/errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// bucketName is the GridFS bucket holding uploaded blobs. Chunked storage
// keeps individual documents under the BSON size limit regardless of blob size.
const bucketName = "uploads"

// GridFSBlobStore stores file contents as chunked GridFS blobs.
// File metadata lives in a separate collection managed by FileMetadataRepository;
// the bucket only carries the bytes plus the owner/name/type metadata document.
type GridFSBlobStore struct {
	bucket *gridfs.Bucket
}

// NewGridFSBlobStore opens the uploads bucket on the given database.
func NewGridFSBlobStore(db *mongo.Database) (*GridFSBlobStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(bucketName))
	if err != nil {
		return nil, fmt.Errorf("failed to open GridFS bucket: %w", err)
	}
	return &GridFSBlobStore{bucket: bucket}, nil
}

// Upload streams source into a new blob and returns the store-assigned ID.
// The ID is generated by the driver, so concurrent uploads of files with the
// same name never collide.
func (s *GridFSBlobStore) Upload(ctx context.Context, filename string, metadata model.BlobMetadata, source io.Reader) (primitive.ObjectID, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.bucket.SetWriteDeadline(deadline); err != nil {
			return primitive.NilObjectID, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	uploadOpts := options.GridFSUpload().SetMetadata(metadata)
	id, err := s.bucket.UploadFromStream(filename, source, uploadOpts)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("failed to upload blob %q: %w", filename, err)
	}
	return id, nil
}

// OpenDownload returns a reader over the blob contents plus the blob length.
// The caller owns the returned stream and must close it.
func (s *GridFSBlobStore) OpenDownload(ctx context.Context, id primitive.ObjectID) (io.ReadCloser, int64, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.bucket.SetReadDeadline(deadline); err != nil {
			return nil, 0, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	stream, err := s.bucket.OpenDownloadStream(id)
	if err != nil {
		if err == gridfs.ErrFileNotFound {
			return nil, 0, apperrors.ErrFileNotFound
		}
		return nil, 0, fmt.Errorf("failed to open blob %s: %w", id.Hex(), err)
	}
	return stream, stream.GetFile().Length, nil
}

// Delete removes the blob and its chunks.
func (s *GridFSBlobStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := s.bucket.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if err := s.bucket.Delete(id); err != nil {
		if err == gridfs.ErrFileNotFound {
			return apperrors.ErrFileNotFound
		}
		return fmt.Errorf("failed to delete blob %s: %w", id.Hex(), err)
	}
	return nil
}
