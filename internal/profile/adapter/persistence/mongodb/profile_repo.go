package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filestore/internal/profile/domain/model"
	apperrors "filestore/internal/shared/errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const profileCollectionName = "profiles"

// ProfileRepository stores profile documents in MongoDB, keyed by the auth
// provider's user identifier.
type ProfileRepository struct {
	collection *mongo.Collection
}

// NewProfileRepository creates the repository on the given database.
func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{
		collection: db.Collection(profileCollectionName),
	}
}

// FindByUserID returns the profile document for a user.
func (r *ProfileRepository) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	var profile model.Profile
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to find profile for user %s: %w", userID, err)
	}
	return &profile, nil
}

// Upsert writes the profile document, creating it when absent.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *model.Profile) (bool, error) {
	if profile == nil {
		return false, errors.New("profile cannot be nil")
	}
	if profile.UserID == "" {
		return false, errors.New("profile user ID cannot be empty")
	}
	profile.UpdatedAt = time.Now().UTC()

	result, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": profile.UserID},
		profile,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert profile for user %s: %w", profile.UserID, err)
	}
	return result.UpsertedCount > 0, nil
}

// Delete removes the profile document.
func (r *ProfileRepository) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user ID cannot be empty")
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete profile for user %s: %w", userID, err)
	}
	if result.DeletedCount == 0 {
		return apperrors.ErrProfileNotFound
	}
	return nil
}
