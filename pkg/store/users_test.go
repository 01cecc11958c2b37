package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtool-infra/dtool-config-generator/pkg/models"
)

func newTestStore(t *testing.T) *GORMStore {
	t.Helper()
	st, err := New(&Config{
		Type:   DatabaseTypeSQLite,
		SQLite: SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedUser(t *testing.T, st *GORMStore, id int, username string) *models.User {
	t.Helper()
	user := &models.User{
		ID:       id,
		Username: username,
		DN:       "uid=" + username + ",ou=people,dc=example,dc=com",
	}
	require.NoError(t, st.CreateUser(context.Background(), user))
	return user
}

func TestCreateAndGetUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedUser(t, st, 1130, "jh1130")

	user, err := st.GetUser(ctx, "jh1130")
	require.NoError(t, err)
	assert.Equal(t, 1130, user.ID)
	assert.True(t, user.Activated, "new users start activated")
	assert.False(t, user.Confirmed, "new users start unconfirmed")
	assert.False(t, user.IsAdmin)

	byID, err := st.GetUserByID(ctx, 1130)
	require.NoError(t, err)
	assert.Equal(t, "jh1130", byID.Username)
}

func TestGetUserNotFound(t *testing.T) {
	st := newTestStore(t)

	_, err := st.GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	_, err = st.GetUserByID(context.Background(), 999)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestCreateDuplicateUser(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, 1130, "jh1130")

	err := st.CreateUser(context.Background(), &models.User{ID: 1130, Username: "jh1130"})
	assert.ErrorIs(t, err, models.ErrDuplicateUser)
}

func TestCreateUserValidation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, st.CreateUser(ctx, &models.User{ID: 1}))
	assert.Error(t, st.CreateUser(ctx, &models.User{Username: "jh1130"}))
}

func TestListUsersOrderedByID(t *testing.T) {
	st := newTestStore(t)
	seedUser(t, st, 2000, "zz2000")
	seedUser(t, st, 1000, "aa1000")

	users, err := st.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, 1000, users[0].ID)
	assert.Equal(t, 2000, users[1].ID)
}

func TestUpdateUserWritesZeroValues(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, st, 1130, "jh1130")

	user.Name = "Jessica Hoyle"
	user.Email = "jh1130@example.com"
	require.NoError(t, st.UpdateUser(ctx, user))

	user.Email = ""
	require.NoError(t, st.UpdateUser(ctx, user))

	got, err := st.GetUserByID(ctx, 1130)
	require.NoError(t, err)
	assert.Equal(t, "Jessica Hoyle", got.Name)
	assert.Empty(t, got.Email, "cleared fields must be persisted")
}

func TestUpdateUserNotFound(t *testing.T) {
	st := newTestStore(t)

	err := st.UpdateUser(context.Background(), &models.User{ID: 999, Username: "ghost"})
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestSetConfirmedAndActivated(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedUser(t, st, 1130, "jh1130")

	require.NoError(t, st.SetConfirmed(ctx, 1130, true))
	require.NoError(t, st.SetActivated(ctx, 1130, false))

	user, err := st.GetUserByID(ctx, 1130)
	require.NoError(t, err)
	assert.True(t, user.Confirmed)
	assert.False(t, user.Activated)
	assert.False(t, user.CanGenerateCredentials())

	assert.ErrorIs(t, st.SetConfirmed(ctx, 999, true), models.ErrUserNotFound)
	assert.ErrorIs(t, st.SetActivated(ctx, 999, false), models.ErrUserNotFound)
}

func TestDeleteUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedUser(t, st, 1130, "jh1130")

	require.NoError(t, st.DeleteUser(ctx, 1130))
	_, err := st.GetUserByID(ctx, 1130)
	assert.ErrorIs(t, err, models.ErrUserNotFound)

	assert.ErrorIs(t, st.DeleteUser(ctx, 1130), models.ErrUserNotFound)
}

func TestEnsureBootstrapAdminCreates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.EnsureBootstrapAdmin(ctx, 1, "admin"))

	admin, err := st.GetUser(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, admin.Confirmed)
	assert.True(t, admin.IsAdmin)
}

func TestEnsureBootstrapAdminFlagsExisting(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	seedUser(t, st, 1130, "jh1130")

	require.NoError(t, st.EnsureBootstrapAdmin(ctx, 1130, "jh1130"))

	admin, err := st.GetUserByID(ctx, 1130)
	require.NoError(t, err)
	assert.True(t, admin.Confirmed)
	assert.True(t, admin.IsAdmin)

	users, err := st.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestEnsureBootstrapAdminUnconfigured(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.EnsureBootstrapAdmin(context.Background(), 0, ""))

	users, err := st.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}
