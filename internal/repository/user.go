package repository

import (
	"context"

	"github.com/rakib-sikder/shared-doc-editor/internal/domain"
)

// UserRepository stores registered principals.
type UserRepository interface {
	// FindByUsername returns the user or ErrUserNotFound.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// FindByEmail returns the user or ErrUserNotFound. Used to resolve the
	// grantee of a share-by-email request.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// FindByID returns the user or ErrUserNotFound.
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// Save creates the user when its ID is zero, updates it otherwise.
	// Returns ErrDuplicateEntry when username or email is already taken.
	Save(ctx context.Context, user *domain.User) error
}
