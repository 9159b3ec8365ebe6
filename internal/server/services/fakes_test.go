package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bookkeeper/internal/common"
	"github.com/dmitrijs2005/bookkeeper/internal/dbx"
	"github.com/dmitrijs2005/bookkeeper/internal/server/models"
	booksrepo "github.com/dmitrijs2005/bookkeeper/internal/server/repositories/books"
	refreshtokensrepo "github.com/dmitrijs2005/bookkeeper/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/bookkeeper/internal/server/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type fakeUsersRepo struct {
	rows    map[string]models.User
	nextID  int
	err     error
	listErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{rows: map[string]models.User{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.rows {
		if r.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	if u.ID == "" {
		f.nextID++
		u.ID = fmt.Sprintf("u%d", f.nextID)
	}
	f.rows[u.ID] = *u
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.rows {
		if r.Email == email {
			r := r
			return &r, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &r, nil
}

func (f *fakeUsersRepo) List(context.Context) ([]models.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []models.User{}
	for _, r := range f.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (f *fakeUsersRepo) Update(_ context.Context, u *models.User) error {
	if f.err != nil {
		return f.err
	}
	cur, ok := f.rows[u.ID]
	if !ok {
		return common.ErrorNotFound
	}
	for id, r := range f.rows {
		if id != u.ID && r.Email == u.Email {
			return common.ErrorAlreadyExists
		}
	}
	cur.Name, cur.Email = u.Name, u.Email
	f.rows[u.ID] = cur
	return nil
}

func (f *fakeUsersRepo) Delete(_ context.Context, id string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	if _, ok := f.rows[id]; !ok {
		return 0, nil
	}
	delete(f.rows, id)
	return 1, nil
}

type fakeRefreshRepo struct {
	rows map[string]models.RefreshToken

	createErr error
	findErr   error
	delErr    error
	listErr   error
	pruneErr  error

	// forceDeleted overrides the rows-affected count of Delete when >= 0.
	forceDeleted int64
	prunedBefore time.Time
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{rows: map[string]models.RefreshToken{}, forceDeleted: -1}
}

func (f *fakeRefreshRepo) Create(_ context.Context, userID, token string, createdAt time.Time) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.rows[token] = models.RefreshToken{ID: token, UserID: userID, Token: token, CreatedAt: createdAt}
	return nil
}

func (f *fakeRefreshRepo) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	r, ok := f.rows[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &r, nil
}

func (f *fakeRefreshRepo) Delete(_ context.Context, token string) (int64, error) {
	if f.delErr != nil {
		return 0, f.delErr
	}
	_, ok := f.rows[token]
	delete(f.rows, token)
	if f.forceDeleted >= 0 {
		return f.forceDeleted, nil
	}
	if !ok {
		return 0, nil
	}
	return 1, nil
}

func (f *fakeRefreshRepo) ListByUser(_ context.Context, userID string) ([]models.RefreshToken, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []models.RefreshToken{}
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeRefreshRepo) DeleteByUser(_ context.Context, userID string) (int64, error) {
	if f.delErr != nil {
		return 0, f.delErr
	}
	var n int64
	for tok, r := range f.rows {
		if r.UserID == userID {
			delete(f.rows, tok)
			n++
		}
	}
	return n, nil
}

func (f *fakeRefreshRepo) DeleteCreatedBefore(_ context.Context, t time.Time) (int64, error) {
	f.prunedBefore = t
	if f.pruneErr != nil {
		return 0, f.pruneErr
	}
	var n int64
	for tok, r := range f.rows {
		if r.CreatedAt.Before(t) {
			delete(f.rows, tok)
			n++
		}
	}
	return n, nil
}

type fakeBooksRepo struct {
	rows   map[string]models.Book
	nextID int
	err    error
}

func newFakeBooksRepo() *fakeBooksRepo {
	return &fakeBooksRepo{rows: map[string]models.Book{}}
}

func (f *fakeBooksRepo) Create(_ context.Context, b *models.Book) (*models.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	if b.ID == "" {
		f.nextID++
		b.ID = fmt.Sprintf("b%d", f.nextID)
	}
	f.rows[b.ID] = *b
	return b, nil
}

func (f *fakeBooksRepo) ListByUser(_ context.Context, userID string) ([]models.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Book{}
	for _, b := range f.rows {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (f *fakeBooksRepo) GetForUser(_ context.Context, id, userID string) (*models.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.rows[id]
	if !ok || b.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return &b, nil
}

func (f *fakeBooksRepo) UpdateForUser(_ context.Context, b *models.Book) error {
	if f.err != nil {
		return f.err
	}
	cur, ok := f.rows[b.ID]
	if !ok || cur.UserID != b.UserID {
		return common.ErrorNotFound
	}
	f.rows[b.ID] = *b
	return nil
}

func (f *fakeBooksRepo) DeleteForUser(_ context.Context, id, userID string) error {
	if f.err != nil {
		return f.err
	}
	cur, ok := f.rows[id]
	if !ok || cur.UserID != userID {
		return common.ErrorNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeBooksRepo) DeleteByUser(_ context.Context, userID string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for id, b := range f.rows {
		if b.UserID == userID {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRefreshRepo
	b *fakeBooksRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), r: newFakeRefreshRepo(), b: newFakeBooksRepo()}
}

func (m *fakeRepoManager) Driver() string                                         { return dbx.DriverSQLite }
func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }
func (m *fakeRepoManager) Books(db dbx.DBTX) booksrepo.Repository                 { return m.b }

type sqlMock struct {
	sqlmock.Sqlmock
}

func (m *sqlMock) assertDone(t *testing.T) {
	t.Helper()
	if err := m.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
