// Package services contains server-side business logic. This file implements
// UserService: registration, login, refresh token rotation, logout, session
// listing and self-service profile management.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/bookkeeper/internal/common"
	"github.com/dmitrijs2005/bookkeeper/internal/dbx"
	"github.com/dmitrijs2005/bookkeeper/internal/logging"
	"github.com/dmitrijs2005/bookkeeper/internal/server/auth"
	"github.com/dmitrijs2005/bookkeeper/internal/server/models"
	"github.com/dmitrijs2005/bookkeeper/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserService owns the session lifecycle. Refresh tokens are one-time use:
// a successful Refresh deletes the presented row and stores its successor in
// the same transaction.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	hasher      *auth.Hasher
	logger      logging.Logger
}

// NewUserService constructs a UserService. A nil logger discards output.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, issuer *auth.Issuer, hasher *auth.Hasher, logger logging.Logger) *UserService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &UserService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		hasher:      hasher,
		logger:      logger.With("module", "users"),
	}
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, common.ErrorValidation
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, common.ErrorValidation) {
			return nil, err
		}
		s.logger.Error(ctx, "hash password", "err", err)
		return nil, common.ErrorInternal
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{Name: name, Email: email, PasswordHash: digest})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		s.logger.Error(ctx, "create user", "err", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and opens a new session.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "find user", "err", err)
		return nil, common.ErrorInternal
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, common.ErrorUnauthorized
	}

	return s.generateTokenPair(ctx, auth.Claims{ID: user.ID, Email: user.Email}, s.db)
}

// Refresh rotates refreshToken. Every failure (absent or malformed token,
// bad signature, expiry, a row already consumed, a row owned by another
// user) yields common.ErrorForbidden.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, common.ErrorForbidden
	}

	claims, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, common.ErrorForbidden
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)

		row, err := repoTx.Find(ctx, refreshToken)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorForbidden
			}
			s.logger.Error(ctx, "find refresh token", "err", err)
			return common.ErrorInternal
		}
		if row.UserID != claims.ID {
			s.logger.Warn(ctx, "refresh token owner mismatch", "row_user_id", row.UserID, "claims_user_id", claims.ID)
			return common.ErrorForbidden
		}

		n, err := repoTx.Delete(ctx, refreshToken)
		if err != nil {
			s.logger.Error(ctx, "delete refresh token", "err", err)
			return common.ErrorInternal
		}
		// lost a race with a concurrent rotation of the same token
		if n != 1 {
			return common.ErrorForbidden
		}

		var genErr error
		pair, genErr = s.generateTokenPair(ctx, claims, tx)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout deletes the session holding refreshToken. An empty token and an
// unknown token both succeed.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if _, err := s.repomanager.RefreshTokens(s.db).Delete(ctx, refreshToken); err != nil {
		s.logger.Error(ctx, "delete refresh token", "err", err)
		return common.ErrorInternal
	}
	return nil
}

// ListSessions returns the sessions of userID, oldest first.
func (s *UserService) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	rows, err := s.repomanager.RefreshTokens(s.db).ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "list refresh tokens", "err", err)
		return nil, common.ErrorInternal
	}

	sessions := make([]models.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, models.Session{Token: r.Token, CreatedAt: r.CreatedAt})
	}
	return sessions, nil
}

// PruneExpiredSessions deletes sessions whose refresh token can no longer
// verify at now.
func (s *UserService) PruneExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repomanager.RefreshTokens(s.db).DeleteCreatedBefore(ctx, now.Add(-s.issuer.RefreshTTL()))
	if err != nil {
		s.logger.Error(ctx, "prune refresh tokens", "err", err)
		return 0, common.ErrorInternal
	}
	if n > 0 {
		s.logger.Info(ctx, "pruned expired sessions", "count", n)
	}
	return n, nil
}

// GetUser returns the user with id, common.ErrorNotFound when absent.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(ctx, "get user", err)
	}
	return user, nil
}

// GetUserByEmail is GetUser keyed by email.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, s.storeError(ctx, "get user", err)
	}
	return user, nil
}

// ListUsers returns the public view of every user.
func (s *UserService) ListUsers(ctx context.Context) ([]models.PublicUser, error) {
	list, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, s.storeError(ctx, "list users", err)
	}

	out := make([]models.PublicUser, 0, len(list))
	for i := range list {
		out = append(out, list[i].Public())
	}
	return out, nil
}

// UpdateUser changes name and email of id. Only the user themself may do so.
func (s *UserService) UpdateUser(ctx context.Context, actorID, id, name, email string) (*models.User, error) {
	if actorID != id {
		return nil, common.ErrorForbidden
	}
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" {
		return nil, common.ErrorValidation
	}

	repo := s.repomanager.Users(s.db)
	if err := repo.Update(ctx, &models.User{ID: id, Name: name, Email: email}); err != nil {
		return nil, s.storeError(ctx, "update user", err)
	}

	user, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(ctx, "get user", err)
	}
	return user, nil
}

// DeleteUser removes id together with its books and sessions. Only the user
// themself may do so.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id string) error {
	if actorID != id {
		return common.ErrorForbidden
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Books(tx).DeleteByUser(ctx, id); err != nil {
			return s.storeError(ctx, "delete books", err)
		}
		if _, err := s.repomanager.RefreshTokens(tx).DeleteByUser(ctx, id); err != nil {
			return s.storeError(ctx, "delete refresh tokens", err)
		}
		n, err := s.repomanager.Users(tx).Delete(ctx, id)
		if err != nil {
			return s.storeError(ctx, "delete user", err)
		}
		if n == 0 {
			return common.ErrorNotFound
		}
		s.logger.Info(ctx, "user deleted", "user_id", id)
		return nil
	})
}

// storeError passes sentinel repository errors through and hides the rest
// behind common.ErrorInternal.
func (s *UserService) storeError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return common.ErrorNotFound
	case errors.Is(err, common.ErrorAlreadyExists):
		return common.ErrorAlreadyExists
	default:
		s.logger.Error(ctx, op, "err", err)
		return common.ErrorInternal
	}
}

func (s *UserService) generateTokenPair(ctx context.Context, claims auth.Claims, db dbx.DBTX) (*TokenPair, error) {
	access, err := s.issuer.IssueAccessToken(claims)
	if err != nil {
		s.logger.Error(ctx, "issue access token", "err", err)
		return nil, common.ErrorInternal
	}
	refresh, err := s.issuer.IssueRefreshToken(claims)
	if err != nil {
		s.logger.Error(ctx, "issue refresh token", "err", err)
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.RefreshTokens(db).Create(ctx, claims.ID, refresh, s.issuer.Now()); err != nil {
		s.logger.Error(ctx, "store refresh token", "err", err)
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
