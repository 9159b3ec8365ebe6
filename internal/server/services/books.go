package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dmitrijs2005/bookkeeper/internal/common"
	"github.com/dmitrijs2005/bookkeeper/internal/logging"
	"github.com/dmitrijs2005/bookkeeper/internal/server/models"
	"github.com/dmitrijs2005/bookkeeper/internal/server/repositories/repomanager"
)

// BookService manages the books of the authenticated user. A book owned by
// someone else is indistinguishable from a missing one.
type BookService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewBookService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *BookService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &BookService{db: db, repomanager: m, logger: logger.With("module", "books")}
}

func (s *BookService) Create(ctx context.Context, userID, title, author string) (*models.Book, error) {
	title, author = strings.TrimSpace(title), strings.TrimSpace(author)
	if title == "" || author == "" {
		return nil, common.ErrorValidation
	}

	b, err := s.repomanager.Books(s.db).Create(ctx, &models.Book{Title: title, Author: author, UserID: userID})
	if err != nil {
		return nil, s.storeError(ctx, "create book", err)
	}
	return b, nil
}

func (s *BookService) List(ctx context.Context, userID string) ([]models.Book, error) {
	list, err := s.repomanager.Books(s.db).ListByUser(ctx, userID)
	if err != nil {
		return nil, s.storeError(ctx, "list books", err)
	}
	return list, nil
}

func (s *BookService) Get(ctx context.Context, userID, id string) (*models.Book, error) {
	b, err := s.repomanager.Books(s.db).GetForUser(ctx, id, userID)
	if err != nil {
		return nil, s.storeError(ctx, "get book", err)
	}
	return b, nil
}

func (s *BookService) Update(ctx context.Context, userID, id, title, author string) (*models.Book, error) {
	title, author = strings.TrimSpace(title), strings.TrimSpace(author)
	if title == "" || author == "" {
		return nil, common.ErrorValidation
	}

	b := &models.Book{ID: id, Title: title, Author: author, UserID: userID}
	if err := s.repomanager.Books(s.db).UpdateForUser(ctx, b); err != nil {
		return nil, s.storeError(ctx, "update book", err)
	}
	return b, nil
}

func (s *BookService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repomanager.Books(s.db).DeleteForUser(ctx, id, userID); err != nil {
		return s.storeError(ctx, "delete book", err)
	}
	return nil
}

func (s *BookService) storeError(ctx context.Context, op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorNotFound
	}
	s.logger.Error(ctx, op, "err", err)
	return common.ErrorInternal
}
