// Package users declares the user repository contract and its SQLite and
// PostgreSQL implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/bookkeeper/internal/server/models"
)

// Repository persists user accounts.
type Repository interface {
	// Create inserts user, assigning a new ID when user.ID is empty.
	// A duplicate email yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail and GetByID return common.ErrorNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)

	// List returns all users ordered by email.
	List(ctx context.Context) ([]models.User, error)

	// Update changes name and email. common.ErrorNotFound when the user is
	// absent, common.ErrorAlreadyExists when the email is taken.
	Update(ctx context.Context, user *models.User) error

	// Delete removes the user row and reports how many rows went away.
	// Dependent rows must already be gone.
	Delete(ctx context.Context, id string) (int64, error)
}
