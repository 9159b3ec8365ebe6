package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bookkeeper/internal/common"
	"github.com/dmitrijs2005/bookkeeper/internal/dbx"
	"github.com/dmitrijs2005/bookkeeper/internal/server/models"
	"github.com/google/uuid"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, book *models.Book) (*models.Book, error) {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}

	query := `INSERT INTO books (id, title, author, user_id) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, book.ID, book.Title, book.Author, book.UserID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return book, nil
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]models.Book, error) {
	query := `SELECT id, title, author, user_id FROM books WHERE user_id = ? ORDER BY title, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanBooks(rows)
}

func (r *SQLiteRepository) GetForUser(ctx context.Context, id, userID string) (*models.Book, error) {
	query := `SELECT id, title, author, user_id FROM books WHERE id = ? AND user_id = ?`
	b := &models.Book{}
	if err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&b.ID, &b.Title, &b.Author, &b.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) UpdateForUser(ctx context.Context, book *models.Book) error {
	res, err := r.db.ExecContext(ctx, `UPDATE books SET title = ?, author = ? WHERE id = ? AND user_id = ?`,
		book.Title, book.Author, book.ID, book.UserID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) DeleteForUser(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLiteRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE user_id = ?`, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
