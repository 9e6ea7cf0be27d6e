package repository

import (
	"context"

	"filestore/internal/files/domain/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileRepository persists StoredFile metadata records.
type FileRepository interface {
	// Insert creates the metadata record for a stored object.
	Insert(ctx context.Context, file *model.StoredFile) error

	// FindByID returns the record for a store identifier, or
	// errors.ErrFileNotFound when absent.
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.StoredFile, error)

	// ListByOwner returns all records owned by a user, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*model.StoredFile, error)

	// Delete removes the metadata record.
	Delete(ctx context.Context, id primitive.ObjectID) error
}
