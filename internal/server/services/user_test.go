package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/bookkeeper/internal/common"
	"github.com/dmitrijs2005/bookkeeper/internal/server/auth"
	"github.com/dmitrijs2005/bookkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

type userFixture struct {
	svc    *UserService
	rm     *fakeRepoManager
	clock  *testClock
	issuer *auth.Issuer
}

func newUserFixture(t *testing.T) (*userFixture, *sqlMock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	clock := &testClock{t: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	issuer := auth.NewIssuer("access", "refresh", 15*time.Minute, 7*24*time.Hour, auth.WithClock(clock.Now))
	rm := newFakeRepoManager()
	svc := NewUserService(db, rm, issuer, auth.NewHasher(bcrypt.MinCost), nil)
	return &userFixture{svc: svc, rm: rm, clock: clock, issuer: issuer}, &sqlMock{mock}
}

func (f *userFixture) registerAndLogin(t *testing.T) (*models.User, *TokenPair) {
	t.Helper()
	ctx := context.Background()
	u, err := f.svc.Register(ctx, "Alice", "alice@example.com", "pw")
	require.NoError(t, err)
	pair, err := f.svc.Login(ctx, "alice@example.com", "pw")
	require.NoError(t, err)
	return u, pair
}

func TestRegister(t *testing.T) {
	f, _ := newUserFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, " Alice ", " Alice@Example.COM ", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEqual(t, "pw", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("pw")))

	_, err = f.svc.Register(ctx, "Other", "alice@example.com", "pw2")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = f.svc.Register(ctx, "", "x@example.com", "pw")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = f.svc.Register(ctx, "Long", "long@example.com", strings.Repeat("p", 73))
	assert.ErrorIs(t, err, common.ErrorValidation)

	f.rm.u.err = errors.New("disk full")
	_, err = f.svc.Register(ctx, "Bob", "bob@example.com", "pw")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestLogin(t *testing.T) {
	f, _ := newUserFixture(t)
	ctx := context.Background()
	u, pair := f.registerAndLogin(t)

	claims, err := f.issuer.VerifyAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.Claims{ID: u.ID, Email: u.Email}, claims)

	row, ok := f.rm.r.rows[pair.RefreshToken]
	require.True(t, ok, "refresh row persisted")
	assert.Equal(t, u.ID, row.UserID)
	assert.Equal(t, f.clock.t, row.CreatedAt)

	_, err = f.svc.Login(ctx, "ALICE@example.com", "pw")
	assert.NoError(t, err, "email lookup is case-insensitive")

	_, err = f.svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.svc.Login(ctx, "ghost@example.com", "pw")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	f.rm.r.createErr = errors.New("db down")
	_, err = f.svc.Login(ctx, "alice@example.com", "pw")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestRefresh_RotatesOnce(t *testing.T) {
	f, mock := newUserFixture(t)
	ctx := context.Background()
	u, pair := f.registerAndLogin(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	f.clock.t = f.clock.t.Add(time.Minute)
	next, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	claims, err := f.issuer.VerifyAccessToken(next.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.ID)

	_, oldLeft := f.rm.r.rows[pair.RefreshToken]
	assert.False(t, oldLeft)
	_, newStored := f.rm.r.rows[next.RefreshToken]
	assert.True(t, newStored)

	// the consumed token is now absent from the store
	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorForbidden)

	mock.assertDone(t)
}

func TestRefresh_Forbidden(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		f, _ := newUserFixture(t)
		_, err := f.svc.Refresh(ctx, "")
		assert.ErrorIs(t, err, common.ErrorForbidden)
	})

	t.Run("garbage", func(t *testing.T) {
		f, _ := newUserFixture(t)
		_, err := f.svc.Refresh(ctx, "not.a.jwt")
		assert.ErrorIs(t, err, common.ErrorForbidden)
	})

	t.Run("access token presented as refresh", func(t *testing.T) {
		f, _ := newUserFixture(t)
		_, pair := f.registerAndLogin(t)
		_, err := f.svc.Refresh(ctx, pair.AccessToken)
		assert.ErrorIs(t, err, common.ErrorForbidden)
	})

	t.Run("expired", func(t *testing.T) {
		f, _ := newUserFixture(t)
		_, pair := f.registerAndLogin(t)
		f.clock.t = f.clock.t.Add(7*24*time.Hour + time.Second)
		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, common.ErrorForbidden)
	})

	t.Run("owner mismatch", func(t *testing.T) {
		f, mock := newUserFixture(t)
		_, pair := f.registerAndLogin(t)
		row := f.rm.r.rows[pair.RefreshToken]
		row.UserID = "someone-else"
		f.rm.r.rows[pair.RefreshToken] = row

		mock.ExpectBegin()
		mock.ExpectRollback()
		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, common.ErrorForbidden)
		mock.assertDone(t)
	})

	t.Run("lost concurrent rotation", func(t *testing.T) {
		f, mock := newUserFixture(t)
		_, pair := f.registerAndLogin(t)
		f.rm.r.forceDeleted = 0

		mock.ExpectBegin()
		mock.ExpectRollback()
		_, err := f.svc.Refresh(ctx, pair.RefreshToken)
		assert.ErrorIs(t, err, common.ErrorForbidden)
		mock.assertDone(t)
	})
}

func TestRefresh_StoreFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		fail func(r *fakeRefreshRepo)
	}{
		{name: "find", fail: func(r *fakeRefreshRepo) { r.findErr = errors.New("boom") }},
		{name: "delete", fail: func(r *fakeRefreshRepo) { r.delErr = errors.New("boom") }},
		{name: "create", fail: func(r *fakeRefreshRepo) { r.createErr = errors.New("boom") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, mock := newUserFixture(t)
			_, pair := f.registerAndLogin(t)
			tt.fail(f.rm.r)

			mock.ExpectBegin()
			mock.ExpectRollback()
			_, err := f.svc.Refresh(ctx, pair.RefreshToken)
			assert.ErrorIs(t, err, common.ErrorInternal)
			mock.assertDone(t)
		})
	}
}

func TestLogout(t *testing.T) {
	f, _ := newUserFixture(t)
	ctx := context.Background()
	_, pair := f.registerAndLogin(t)

	assert.NoError(t, f.svc.Logout(ctx, ""))
	assert.NoError(t, f.svc.Logout(ctx, pair.RefreshToken))
	assert.Empty(t, f.rm.r.rows)
	assert.NoError(t, f.svc.Logout(ctx, pair.RefreshToken), "unknown token is not an error")

	f.rm.r.delErr = errors.New("io")
	assert.ErrorIs(t, f.svc.Logout(ctx, "x"), common.ErrorInternal)
}

func TestListSessions(t *testing.T) {
	f, _ := newUserFixture(t)
	ctx := context.Background()
	u, first := f.registerAndLogin(t)

	f.clock.t = f.clock.t.Add(time.Hour)
	second, err := f.svc.Login(ctx, "alice@example.com", "pw")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "Bob", "bob@example.com", "pw")
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "bob@example.com", "pw")
	require.NoError(t, err)

	sessions, err := f.svc.ListSessions(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, first.RefreshToken, sessions[0].Token)
	assert.Equal(t, second.RefreshToken, sessions[1].Token)

	f.rm.r.listErr = errors.New("io")
	_, err = f.svc.ListSessions(ctx, u.ID)
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestPruneExpiredSessions(t *testing.T) {
	f, _ := newUserFixture(t)
	ctx := context.Background()
	f.registerAndLogin(t)

	now := f.clock.t.Add(8 * 24 * time.Hour)
	n, err := f.svc.PruneExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, now.Add(-7*24*time.Hour), f.rm.r.prunedBefore)

	f.rm.r.pruneErr = errors.New("io")
	_, err = f.svc.PruneExpiredSessions(ctx, now)
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestUserProfile(t *testing.T) {
	f, _ := newUserFixture(t)
	ctx := context.Background()
	alice, _ := f.registerAndLogin(t)
	bob, err := f.svc.Register(ctx, "Bob", "bob@example.com", "pw")
	require.NoError(t, err)

	got, err := f.svc.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)

	_, err = f.svc.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	byEmail, err := f.svc.GetUserByEmail(ctx, "BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, byEmail.ID)

	list, err := f.svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.PublicUser{alice.Public(), bob.Public()}, list)

	_, err = f.svc.UpdateUser(ctx, bob.ID, alice.ID, "Mallory", "m@example.com")
	assert.ErrorIs(t, err, common.ErrorForbidden)

	_, err = f.svc.UpdateUser(ctx, alice.ID, alice.ID, "Alice", "bob@example.com")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = f.svc.UpdateUser(ctx, alice.ID, alice.ID, "", "a@example.com")
	assert.ErrorIs(t, err, common.ErrorValidation)

	updated, err := f.svc.UpdateUser(ctx, alice.ID, alice.ID, "Alice B", "Alice.B@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice.b@example.com", updated.Email)

	f.rm.u.listErr = errors.New("io")
	_, err = f.svc.ListUsers(ctx)
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestDeleteUser(t *testing.T) {
	f, mock := newUserFixture(t)
	ctx := context.Background()
	alice, _ := f.registerAndLogin(t)
	f.rm.b.rows["b1"] = models.Book{ID: "b1", Title: "Dune", Author: "Herbert", UserID: alice.ID}
	f.rm.b.rows["b2"] = models.Book{ID: "b2", Title: "Emma", Author: "Austen", UserID: "other"}

	assert.ErrorIs(t, f.svc.DeleteUser(ctx, "other", alice.ID), common.ErrorForbidden)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, f.svc.DeleteUser(ctx, alice.ID, alice.ID))

	assert.Empty(t, f.rm.r.rows)
	assert.Len(t, f.rm.b.rows, 1)
	_, err := f.svc.GetUser(ctx, alice.ID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectBegin()
	mock.ExpectRollback()
	assert.ErrorIs(t, f.svc.DeleteUser(ctx, alice.ID, alice.ID), common.ErrorNotFound)

	mock.assertDone(t)
}
