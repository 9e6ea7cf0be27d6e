package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filestore/internal/files/domain/model"
	apperrors "filestore/internal/shared/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const fileCollectionName = "files"

// FileMetadataRepository persists StoredFile metadata in MongoDB.
// The blob bytes themselves live in GridFS under the same ObjectID.
type FileMetadataRepository struct {
	collection *mongo.Collection
}

// NewFileMetadataRepository creates the repository and ensures its indexes.
func NewFileMetadataRepository(db *mongo.Database) (*FileMetadataRepository, error) {
	collection := db.Collection(fileCollectionName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "ownerId", Value: 1},
				{Key: "uploadedAt", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "filename", Value: 1}},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, fmt.Errorf("failed to create file metadata indexes: %w", err)
	}

	return &FileMetadataRepository{collection: collection}, nil
}

// Insert stores the metadata document for a newly uploaded file.
func (r *FileMetadataRepository) Insert(ctx context.Context, file *model.StoredFile) error {
	if file == nil {
		return errors.New("file cannot be nil")
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctx, file); err != nil {
		return fmt.Errorf("failed to insert file metadata: %w", err)
	}
	return nil
}

// FindByID returns the metadata for the given blob ID.
func (r *FileMetadataRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.StoredFile, error) {
	var file model.StoredFile
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&file)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to find file %s: %w", id.Hex(), err)
	}
	return &file, nil
}

// ListByOwner returns all files owned by ownerID, newest first.
func (r *FileMetadataRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.StoredFile, error) {
	if ownerID == "" {
		return nil, errors.New("owner ID cannot be empty")
	}
	opts := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list files for owner %s: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	var files []*model.StoredFile
	if err := cursor.All(ctx, &files); err != nil {
		return nil, fmt.Errorf("failed to decode file list: %w", err)
	}
	return files, nil
}

// Delete removes the metadata document for the given blob ID.
func (r *FileMetadataRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete file metadata %s: %w", id.Hex(), err)
	}
	if result.DeletedCount == 0 {
		return apperrors.ErrFileNotFound
	}
	return nil
}
