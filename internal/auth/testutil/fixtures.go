package testutil

import (
	"time"

	"filestore/internal/auth/domain/model"

	"golang.org/x/crypto/bcrypt"
)

// FixturePassword is the plaintext behind every fixture user's hash.
const FixturePassword = "SuperSecurePassword123"

// UserFixture provides test data for the User model
type UserFixture struct{}

// NewUserFixture creates a new UserFixture instance
func NewUserFixture() *UserFixture {
	return &UserFixture{}
}

// ValidUser returns a valid user for testing
func (f *UserFixture) ValidUser() *model.User {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(FixturePassword), bcrypt.DefaultCost)
	now := time.Now().UTC()
	return &model.User{
		ID:           "test-user-id-123",
		Email:        "test@example.com",
		DisplayName:  "Test User",
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// UserWithEmail returns a fixture user registered under the given email.
func (f *UserFixture) UserWithEmail(id, email string) *model.User {
	user := f.ValidUser()
	user.ID = id
	user.Email = model.NormalizeEmail(email)
	return user
}
