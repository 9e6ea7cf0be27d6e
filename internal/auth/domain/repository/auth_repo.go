package repository

import (
	"context"

	"filestore/internal/auth/domain/model"
)

// UserRepository defines the interface for account persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}
