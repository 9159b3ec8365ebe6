package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bookkeeper/internal/common"
	"github.com/dmitrijs2005/bookkeeper/internal/dbx"
	"github.com/dmitrijs2005/bookkeeper/internal/server/models"
	"github.com/dmitrijs2005/bookkeeper/internal/timex"
	"github.com/google/uuid"
)

// SQLiteRepository implements Repository on the embedded store. Timestamps
// are kept as unix milliseconds.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Create(ctx context.Context, userID string, token string, createdAt time.Time) error {
	query := `INSERT INTO refresh_tokens (id, user_id, token, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID, token, timex.ToMillis(createdAt)); err != nil {
		return fmt.Errorf("error performing sql request: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `SELECT id, user_id, token, created_at FROM refresh_tokens WHERE token = ?`

	var (
		rt models.RefreshToken
		ms int64
	)
	if err := r.db.QueryRowContext(ctx, query, token).Scan(&rt.ID, &rt.UserID, &rt.Token, &ms); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	rt.CreatedAt = timex.FromMillis(ms)
	return &rt, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, token string) (int64, error) {
	return r.exec(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, token)
}

func (r *SQLiteRepository) ListByUser(ctx context.Context, userID string) ([]models.RefreshToken, error) {
	query := `SELECT id, user_id, token, created_at FROM refresh_tokens WHERE user_id = ? ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.RefreshToken{}
	for rows.Next() {
		var (
			rt models.RefreshToken
			ms int64
		)
		if err := rows.Scan(&rt.ID, &rt.UserID, &rt.Token, &ms); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		rt.CreatedAt = timex.FromMillis(ms)
		result = append(result, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
}

func (r *SQLiteRepository) DeleteCreatedBefore(ctx context.Context, t time.Time) (int64, error) {
	return r.exec(ctx, `DELETE FROM refresh_tokens WHERE created_at < ?`, timex.ToMillis(t))
}

func (r *SQLiteRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
