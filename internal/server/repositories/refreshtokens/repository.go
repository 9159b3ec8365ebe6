// Package refreshtokens declares the repository contract for persisted
// refresh tokens (sessions) and its SQLite and PostgreSQL implementations.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/bookkeeper/internal/server/models"
)

// Repository defines operations for storing, rotating and listing refresh tokens.
type Repository interface {
	// Create stores token for userID, stamped with createdAt.
	Create(ctx context.Context, userID string, token string, createdAt time.Time) error

	// Find looks up a row by its token string. Returns common.ErrorNotFound
	// when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes the row holding token and reports the number of rows
	// removed. Deleting a non-existent token is not an error.
	Delete(ctx context.Context, token string) (int64, error)

	// ListByUser returns all rows of userID, oldest first.
	ListByUser(ctx context.Context, userID string) ([]models.RefreshToken, error)

	// DeleteByUser removes every row of userID.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// DeleteCreatedBefore removes rows created strictly before t.
	DeleteCreatedBefore(ctx context.Context, t time.Time) (int64, error)
}
