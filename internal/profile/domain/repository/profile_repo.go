package repository

import (
	"context"

	"filestore/internal/profile/domain/model"
)

// ProfileRepository persists profile documents.
type ProfileRepository interface {
	// FindByUserID returns the profile for a user, or
	// errors.ErrProfileNotFound when absent.
	FindByUserID(ctx context.Context, userID string) (*model.Profile, error)

	// Upsert writes the profile document, creating it when absent.
	// It reports whether the document was created.
	Upsert(ctx context.Context, profile *model.Profile) (created bool, err error)

	// Delete removes the profile document.
	Delete(ctx context.Context, userID string) error
}
