// Package books declares the book repository contract. Every read and write
// except Create is scoped by the owning user's id.
package books

import (
	"context"

	"github.com/dmitrijs2005/bookkeeper/internal/server/models"
)

type Repository interface {
	// Create inserts book, assigning a new ID when book.ID is empty.
	Create(ctx context.Context, book *models.Book) (*models.Book, error)

	// ListByUser returns the books of userID ordered by title.
	ListByUser(ctx context.Context, userID string) ([]models.Book, error)

	// GetForUser returns common.ErrorNotFound when the book is absent or
	// belongs to someone else.
	GetForUser(ctx context.Context, id, userID string) (*models.Book, error)

	// UpdateForUser replaces title and author of a book owned by book.UserID.
	UpdateForUser(ctx context.Context, book *models.Book) error

	// DeleteForUser removes one owned book, common.ErrorNotFound otherwise.
	DeleteForUser(ctx context.Context, id, userID string) error

	// DeleteByUser removes every book of userID.
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}
